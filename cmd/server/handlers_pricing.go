package main

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/bookhive/pricing/pricing"
)

var oneHundred = decimal.NewFromInt(100)

func decodeEvaluateRequest(w http.ResponseWriter, r *http.Request) (*EvaluateRequest, bool) {
	// UseNumber keeps attribute values as json.Number so band matching
	// happens on exact decimals, not float64 approximations.
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var req EvaluateRequest
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return nil, false
	}
	if req.ServiceID == "" {
		respondError(w, http.StatusBadRequest, "serviceId is required", nil)
		return nil, false
	}
	if req.Attributes == nil {
		req.Attributes = map[string]any{}
	}
	return &req, true
}

// handleEvaluate returns the raw evaluation result: the adjustment and
// matched rules, or the custom-quote trigger, with no fee composition.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvaluateRequest(w, r)
	if !ok {
		return
	}

	result, err := s.evaluator.Evaluate(req.ServiceID, req.Attributes)
	if err != nil {
		s.respondDomainError(w, "evaluation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handlePrice composes the booking price the UI displays: base price +
// rule adjustment + platform fee. A custom-quote outcome short-circuits
// the composition and tells the UI to redirect into the quote request
// flow.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvaluateRequest(w, r)
	if !ok {
		return
	}

	svc, err := s.catalog.GetService(req.ServiceID)
	if err != nil {
		s.respondDomainError(w, "service not found", err)
		return
	}

	result, err := s.evaluator.Evaluate(req.ServiceID, req.Attributes)
	if err != nil {
		s.respondDomainError(w, "evaluation failed", err)
		return
	}

	if result.Outcome == pricing.OutcomeCustomQuoteRequired {
		respondJSON(w, http.StatusOK, PriceResponse{
			Outcome:             result.Outcome,
			TriggeringRuleID:    result.TriggeringRuleID,
			TriggeringAttribute: result.TriggeringAttribute,
		})
		return
	}

	subtotal := svc.BasePrice.Add(result.TotalAdjustment)
	fee := subtotal.Mul(s.feePercent).Div(oneHundred).Round(2)
	total := subtotal.Add(fee)

	respondJSON(w, http.StatusOK, PriceResponse{
		Outcome:        result.Outcome,
		BasePrice:      &svc.BasePrice,
		Adjustment:     &result.TotalAdjustment,
		PlatformFee:    &fee,
		Total:          &total,
		MatchedRuleIDs: result.MatchedRuleIDs,
	})
}

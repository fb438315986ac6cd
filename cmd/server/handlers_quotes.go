package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookhive/pricing/quotes"
)

func (s *Server) handleListQuoteRequests(w http.ResponseWriter, r *http.Request) {
	var (
		list []*quotes.QuoteRequest
		err  error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := quotes.Status(raw)
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "unknown status", nil)
			return
		}
		list, err = s.quotes.ListByStatus(status)
	} else {
		list, err = s.quotes.List()
	}
	if err != nil {
		s.respondDomainError(w, "failed to list quote requests", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"quoteRequests": list})
}

func (s *Server) handleCreateQuoteRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ServiceID == "" || req.CustomerName == "" || req.CustomerEmail == "" {
		respondError(w, http.StatusBadRequest, "serviceId, customerName and customerEmail are required", nil)
		return
	}

	// The service must exist so an admin can quote against it.
	if _, err := s.catalog.GetService(req.ServiceID); err != nil {
		s.respondDomainError(w, "service not found", err)
		return
	}

	q := &quotes.QuoteRequest{
		ID:               uuid.New().String(),
		ServiceID:        req.ServiceID,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		Details:          req.Details,
		Status:           quotes.StatusPending,
		TriggeringRuleID: req.TriggeringRuleID,
	}
	if err := s.quotes.Add(q); err != nil {
		s.respondDomainError(w, "failed to create quote request", err)
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

func (s *Server) handleGetQuoteRequest(w http.ResponseWriter, r *http.Request) {
	q, err := s.quotes.Get(chi.URLParam(r, "requestId"))
	if err != nil {
		s.respondDomainError(w, "quote request not found", err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleQuoteRequestStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	next := quotes.Status(req.Status)
	if !next.Valid() {
		respondError(w, http.StatusBadRequest, "unknown status", nil)
		return
	}

	q, err := s.quotes.UpdateStatus(chi.URLParam(r, "requestId"), next)
	if err != nil {
		s.respondDomainError(w, "failed to update quote request status", err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleDeleteQuoteRequest(w http.ResponseWriter, r *http.Request) {
	if err := s.quotes.Delete(chi.URLParam(r, "requestId")); err != nil {
		s.respondDomainError(w, "quote request not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

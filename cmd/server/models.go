package main

import (
	"github.com/shopspring/decimal"

	"github.com/bookhive/pricing/pricing"
)

// API request and response models.

// CreateServiceRequest is the body for registering a priceable service.
type CreateServiceRequest struct {
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"basePrice"`
}

// GroupRequest is the body for creating or updating a rule group.
type GroupRequest struct {
	AttributeName string `json:"attributeName"`
	DisplayName   string `json:"displayName"`
}

// RuleRequest is the body for creating or updating a rule. MinValue and
// MaxValue apply to numeric rules, OptionKey/OptionLabel to option
// rules; the authoring validator rejects mixed shapes.
type RuleRequest struct {
	Kind        pricing.RuleKind `json:"kind"`
	MinValue    decimal.Decimal  `json:"minValue"`
	MaxValue    decimal.Decimal  `json:"maxValue"`
	OptionKey   string           `json:"optionKey"`
	OptionLabel string           `json:"optionLabel"`
	ExtraPrice  decimal.Decimal  `json:"extraPrice"`
	CustomQuote bool             `json:"customQuote"`
}

// RuleResponse is a stored rule plus any non-fatal authoring warnings
// (overlapping bands) raised while saving it.
type RuleResponse struct {
	Rule     *pricing.Rule `json:"rule"`
	Warnings []string      `json:"warnings,omitempty"`
}

// EvaluateRequest is the body for /price and /evaluate.
type EvaluateRequest struct {
	ServiceID  string         `json:"serviceId"`
	Attributes map[string]any `json:"attributes"`
}

// PriceResponse is the composed booking price. When Outcome is
// custom_quote_required only the triggering fields are set and the UI
// should redirect into the quote request flow.
type PriceResponse struct {
	Outcome             pricing.Outcome  `json:"outcome"`
	BasePrice           *decimal.Decimal `json:"basePrice,omitempty"`
	Adjustment          *decimal.Decimal `json:"adjustment,omitempty"`
	PlatformFee         *decimal.Decimal `json:"platformFee,omitempty"`
	Total               *decimal.Decimal `json:"total,omitempty"`
	MatchedRuleIDs      []string         `json:"matchedRuleIds,omitempty"`
	TriggeringRuleID    string           `json:"triggeringRuleId,omitempty"`
	TriggeringAttribute string           `json:"triggeringAttribute,omitempty"`
}

// CreateQuoteRequestBody is the body for submitting a quote request.
type CreateQuoteRequestBody struct {
	ServiceID        string `json:"serviceId"`
	CustomerName     string `json:"customerName"`
	CustomerEmail    string `json:"customerEmail"`
	CustomerPhone    string `json:"customerPhone"`
	Details          string `json:"details"`
	TriggeringRuleID string `json:"triggeringRuleId"`
}

// StatusRequest is the body for advancing a quote request's workflow.
type StatusRequest struct {
	Status string `json:"status"`
}

// errorResponse is the uniform error body. Field is set for authoring
// validation failures so admin forms can attach the message to an input.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

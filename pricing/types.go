package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Service is the priceable entity rules attach to. The engine only needs
// its identity and base price; everything else about a service lives in
// the booking application.
type Service struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"basePrice"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// RuleGroup is one priceable attribute dimension for one service, e.g.
// "floor_count" for a cleaning service. AttributeName is a free-form
// label that must match the key the booking flow supplies at evaluation
// time; it carries no other semantics.
type RuleGroup struct {
	ID            string    `json:"id"`
	ServiceID     string    `json:"serviceId"`
	AttributeName string    `json:"attributeName"`
	DisplayName   string    `json:"displayName"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RuleKind discriminates the two rule shapes. A rule is exactly one of
// numeric band or discrete option.
type RuleKind string

const (
	RuleKindNumeric RuleKind = "numeric"
	RuleKindOption  RuleKind = "option"
)

// Rule is one tier within a RuleGroup: either an inclusive numeric band
// [MinValue, MaxValue] or a discrete option keyed by OptionKey. ExtraPrice
// is a signed delta; zero and negative values are valid. A rule with
// CustomQuote set forces the whole evaluation into manual quoting when it
// matches.
type Rule struct {
	ID          string          `json:"id"`
	RuleGroupID string          `json:"ruleGroupId"`
	Kind        RuleKind        `json:"kind"`
	MinValue    decimal.Decimal `json:"minValue"`
	MaxValue    decimal.Decimal `json:"maxValue"`
	OptionKey   string          `json:"optionKey,omitempty"`
	OptionLabel string          `json:"optionLabel,omitempty"`
	ExtraPrice  decimal.Decimal `json:"extraPrice"`
	CustomQuote bool            `json:"customQuote"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MatchesValue reports whether a numeric rule's band contains v. Bounds
// are inclusive on both ends. Always false for option rules.
func (r *Rule) MatchesValue(v decimal.Decimal) bool {
	if r.Kind != RuleKindNumeric {
		return false
	}
	return v.GreaterThanOrEqual(r.MinValue) && v.LessThanOrEqual(r.MaxValue)
}

// MatchesOption reports whether an option rule matches the supplied key.
// Always false for numeric rules.
func (r *Rule) MatchesOption(key string) bool {
	if r.Kind != RuleKindOption {
		return false
	}
	return r.OptionKey == key
}

// Outcome is the terminal state of one evaluation.
type Outcome string

const (
	OutcomePriced              Outcome = "priced"
	OutcomeCustomQuoteRequired Outcome = "custom_quote_required"
)

// EvaluationResult is the outcome of matching one booking's attributes
// against every rule group of a service. When Outcome is
// OutcomeCustomQuoteRequired, TotalAdjustment and MatchedRuleIDs are
// meaningless and left zero; the triggering fields identify the rule and
// attribute that forced manual quoting.
type EvaluationResult struct {
	Outcome             Outcome         `json:"outcome"`
	TotalAdjustment     decimal.Decimal `json:"totalAdjustment"`
	MatchedRuleIDs      []string        `json:"matchedRuleIds,omitempty"`
	TriggeringRuleID    string          `json:"triggeringRuleId,omitempty"`
	TriggeringAttribute string          `json:"triggeringAttribute,omitempty"`
}

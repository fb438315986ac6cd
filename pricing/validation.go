package pricing

import (
	"fmt"
	"strings"
)

// ValidateRuleGroup checks a rule group before it is stored. Attribute
// names are free-form labels, so validation is limited to shape: present,
// trimmed, and bounded in length.
func ValidateRuleGroup(g *RuleGroup) error {
	if g.ServiceID == "" {
		return &ValidationError{Field: "serviceId", Message: "service id is required"}
	}
	if err := validateLabel("attributeName", g.AttributeName); err != nil {
		return err
	}
	return validateLabel("displayName", g.DisplayName)
}

// duplicateAttributeErr is the authoring conflict for a second rule
// group claiming an attribute already owned by another group of the
// same service. Raised on create, on update, and when Postgres reports
// a unique violation that raced past the pre-check.
func duplicateAttributeErr(attr string) *ValidationError {
	return &ValidationError{
		Field:   "attributeName",
		Message: fmt.Sprintf("attribute %q already has a rule group for this service", attr),
	}
}

func validateLabel(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "cannot be empty"}
	}
	if strings.TrimSpace(value) != value {
		return &ValidationError{Field: field, Message: "cannot have leading or trailing whitespace"}
	}
	if len(value) > 100 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("length %d exceeds maximum of 100 characters", len(value))}
	}
	return nil
}

// ValidateRule checks a candidate rule against its siblings in the same
// group before create or update. Siblings must not include the candidate
// itself (on update, the caller filters it out by ID).
//
// Hard rejections (returned as *ValidationError):
//   - rule is neither a numeric band nor a discrete option, or both
//   - numeric band with minValue > maxValue
//   - numeric band exactly duplicating a sibling's [min, max]
//   - option rule duplicating a sibling's option key
//
// Partial band overlaps are accepted but returned as warnings: the
// evaluator resolves them deterministically (smallest rule ID wins), so
// they are an authoring smell rather than a fatal defect.
func ValidateRule(candidate *Rule, siblings []*Rule) ([]string, error) {
	switch candidate.Kind {
	case RuleKindNumeric:
		return validateNumericRule(candidate, siblings)
	case RuleKindOption:
		return nil, validateOptionRule(candidate, siblings)
	default:
		return nil, &ValidationError{Field: "kind", Message: fmt.Sprintf("must be %q or %q", RuleKindNumeric, RuleKindOption)}
	}
}

func validateNumericRule(candidate *Rule, siblings []*Rule) ([]string, error) {
	if candidate.OptionKey != "" {
		return nil, &ValidationError{Field: "optionKey", Message: "numeric rules cannot carry an option key"}
	}
	if candidate.MinValue.GreaterThan(candidate.MaxValue) {
		return nil, &ValidationError{
			Field:   "minValue",
			Message: fmt.Sprintf("minValue %s is greater than maxValue %s", candidate.MinValue, candidate.MaxValue),
		}
	}

	var warnings []string
	for _, sib := range siblings {
		if sib.Kind != RuleKindNumeric {
			continue
		}
		if sib.MinValue.Equal(candidate.MinValue) && sib.MaxValue.Equal(candidate.MaxValue) {
			return nil, &ValidationError{
				Field:   "minValue",
				Message: fmt.Sprintf("band [%s, %s] duplicates existing rule %s", candidate.MinValue, candidate.MaxValue, sib.ID),
			}
		}
		if bandsOverlap(candidate, sib) {
			warnings = append(warnings, fmt.Sprintf(
				"band [%s, %s] overlaps rule %s [%s, %s]; the lower rule id wins at evaluation time",
				candidate.MinValue, candidate.MaxValue, sib.ID, sib.MinValue, sib.MaxValue))
		}
	}
	return warnings, nil
}

func validateOptionRule(candidate *Rule, siblings []*Rule) error {
	if candidate.OptionKey == "" {
		return &ValidationError{Field: "optionKey", Message: "option rules require an option key"}
	}
	if !candidate.MinValue.IsZero() || !candidate.MaxValue.IsZero() {
		return &ValidationError{Field: "minValue", Message: "option rules cannot carry a numeric band"}
	}
	for _, sib := range siblings {
		if sib.Kind == RuleKindOption && sib.OptionKey == candidate.OptionKey {
			return &ValidationError{
				Field:   "optionKey",
				Message: fmt.Sprintf("option %q duplicates existing rule %s", candidate.OptionKey, sib.ID),
			}
		}
	}
	return nil
}

// bandsOverlap reports whether two inclusive numeric bands share any
// value. Touching endpoints count: a value equal to one rule's max and
// another's min matches both.
func bandsOverlap(a, b *Rule) bool {
	return a.MinValue.LessThanOrEqual(b.MaxValue) && b.MinValue.LessThanOrEqual(a.MaxValue)
}

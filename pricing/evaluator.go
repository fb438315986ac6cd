package pricing

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Evaluator turns a service's configured rule groups and one booking's
// attributes into a deterministic price adjustment, or detects that the
// booking must be routed to manual quoting.
//
// The evaluator itself is stateless and safe for concurrent use; all
// mutable state lives in the catalog and the snapshot cache.
type Evaluator struct {
	catalog Catalog
	cache   SnapshotCache
	log     *slog.Logger
}

// NewEvaluator creates an evaluator with a default in-memory snapshot
// cache (no TTL, invalidated on catalog mutations via Invalidate).
func NewEvaluator(catalog Catalog) *Evaluator {
	return NewEvaluatorWithCache(catalog, NewInMemorySnapshotCache(DefaultCacheConfig()))
}

// NewEvaluatorWithCache creates an evaluator with a caller-supplied
// snapshot cache.
func NewEvaluatorWithCache(catalog Catalog, cache SnapshotCache) *Evaluator {
	return &Evaluator{
		catalog: catalog,
		cache:   cache,
		log:     slog.Default(),
	}
}

// Invalidate drops the cached snapshot for a service. Catalog write
// paths call this so the next evaluation sees the edited rule set.
func (e *Evaluator) Invalidate(serviceID string) {
	e.cache.Invalidate(serviceID)
}

// Evaluate matches the supplied attributes against every rule group of
// the service and returns either a priced adjustment or a
// custom-quote-required outcome.
//
// Group order is rule-group ID ascending, so identical inputs against an
// unchanged catalog always produce identical results. Per group, the
// single matching rule is chosen; when overlapping bands make several
// rules match, the smallest rule ID wins. A matched rule with the
// custom-quote flag stops evaluation immediately and takes precedence
// over any adjustment accumulated so far.
//
// None of the following are errors: a service with no rule groups, a
// group whose attribute is absent from the request, and a supplied value
// that falls outside every band. Each contributes zero. Errors are
// reserved for an unknown service id and for catalog infrastructure
// failures.
func (e *Evaluator) Evaluate(serviceID string, attributes map[string]any) (*EvaluationResult, error) {
	snap, err := e.snapshot(serviceID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	matched := make([]string, 0, len(snap.Groups))

	for i := range snap.Groups {
		group := &snap.Groups[i]

		value, ok := attributes[group.Group.AttributeName]
		if !ok {
			// Not every booking flow supplies every attribute; an absent
			// one contributes nothing.
			continue
		}

		rule := matchRule(group, value)
		if rule == nil {
			e.log.Debug("attribute value matched no rule",
				"serviceId", serviceID,
				"ruleGroupId", group.Group.ID,
				"attribute", group.Group.AttributeName)
			continue
		}

		if rule.CustomQuote {
			return &EvaluationResult{
				Outcome:             OutcomeCustomQuoteRequired,
				TriggeringRuleID:    rule.ID,
				TriggeringAttribute: group.Group.AttributeName,
			}, nil
		}

		total = total.Add(rule.ExtraPrice)
		matched = append(matched, rule.ID)
	}

	return &EvaluationResult{
		Outcome:         OutcomePriced,
		TotalAdjustment: total,
		MatchedRuleIDs:  matched,
	}, nil
}

func (e *Evaluator) snapshot(serviceID string) (*Snapshot, error) {
	if snap := e.cache.Get(serviceID); snap != nil {
		return snap, nil
	}

	snap, err := e.catalog.Snapshot(serviceID)
	if err != nil {
		return nil, fmt.Errorf("snapshot for service %s: %w", serviceID, err)
	}
	e.cache.Set(serviceID, snap)
	return snap, nil
}

// matchRule selects the single rule in a group that matches the supplied
// attribute value, or nil. When several rules match, the smallest rule
// ID wins so overlapping bands resolve the same way on every evaluation.
func matchRule(group *GroupRules, value any) *Rule {
	num, numOK := toDecimal(value)
	key, keyOK := toOptionKey(value)

	var winner *Rule
	for i := range group.Rules {
		rule := &group.Rules[i]

		var matches bool
		switch rule.Kind {
		case RuleKindNumeric:
			matches = numOK && rule.MatchesValue(num)
		case RuleKindOption:
			matches = keyOK && rule.MatchesOption(key)
		}
		if !matches {
			continue
		}

		if winner == nil || rule.ID < winner.ID {
			winner = rule
		}
	}
	return winner
}

// toDecimal coerces the attribute value shapes a JSON or native caller
// can supply into a decimal. A value that cannot be read as a number
// simply fails to match numeric bands; it is not an error.
func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// toOptionKey coerces an attribute value into the string key option
// rules match on. Numbers are normalized through decimal so 2 and "2"
// compare equal.
func toOptionKey(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		if d, ok := toDecimal(value); ok {
			return d.String(), true
		}
		return "", false
	}
}

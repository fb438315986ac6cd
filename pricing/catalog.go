package pricing

import (
	"errors"
	"fmt"
)

// Sentinel errors for the catalog error taxonomy. Handlers map these to
// transport-level responses with errors.Is.
var (
	// ErrUnknownService means the serviceId itself is not registered in
	// the catalog. This is a caller error; it is never converted into a
	// zero-adjustment result.
	ErrUnknownService = errors.New("unknown service")

	// ErrGroupNotFound means a rule group id does not exist.
	ErrGroupNotFound = errors.New("rule group not found")

	// ErrRuleNotFound means a rule id does not exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrCatalogUnavailable wraps infrastructure failures (connection
	// loss, query errors). Callers may retry with backoff.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// ValidationError is a field-level authoring rejection, surfaced to the
// admin surface as a validation message rather than a server fault.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GroupRules pairs one rule group with its rules, ordered for
// deterministic evaluation: numeric rules by MinValue ascending, option
// rules after them by creation time.
type GroupRules struct {
	Group RuleGroup
	Rules []Rule
}

// Snapshot is a consistent read of everything the evaluator needs for
// one service: all rule groups (ID ascending) with their rules. One
// snapshot is taken per evaluation so a booking price never mixes
// pre-edit and post-edit rule sets.
type Snapshot struct {
	ServiceID string
	Groups    []GroupRules
}

// Catalog is the durable store of services, rule groups and rules.
//
// Read methods return ErrUnknownService / ErrGroupNotFound /
// ErrRuleNotFound for missing identifiers and wrap infrastructure
// failures in ErrCatalogUnavailable. An empty group or rule list is a
// valid state, not an error.
//
// Deleting a service cascades to its rule groups, and deleting a rule
// group cascades to its rules. Rule mutations run the authoring
// validator and may return non-fatal warnings (overlapping bands).
type Catalog interface {
	CreateService(s *Service) error
	GetService(id string) (*Service, error)
	ListServices() ([]*Service, error)
	UpdateService(s *Service) error
	DeleteService(id string) error

	CreateRuleGroup(g *RuleGroup) error
	GetRuleGroup(id string) (*RuleGroup, error)
	GetRuleGroupsForService(serviceID string) ([]*RuleGroup, error)
	UpdateRuleGroup(g *RuleGroup) error
	DeleteRuleGroup(id string) error

	CreateRule(r *Rule) (warnings []string, err error)
	GetRule(id string) (*Rule, error)
	GetRulesForGroup(groupID string) ([]*Rule, error)
	UpdateRule(r *Rule) (warnings []string, err error)
	DeleteRule(id string) error

	// Snapshot fetches all groups and rules for a service in one
	// consistent batch read.
	Snapshot(serviceID string) (*Snapshot, error)
}

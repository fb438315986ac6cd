package pricing

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryCatalog implements Catalog with in-memory maps. Thread-safe
// with an RWMutex; useful for tests and single-process deployments.
type InMemoryCatalog struct {
	services map[string]*Service
	groups   map[string]*RuleGroup
	rules    map[string]*Rule
	mu       sync.RWMutex
}

// NewInMemoryCatalog creates an empty in-memory catalog.
func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		services: make(map[string]*Service),
		groups:   make(map[string]*RuleGroup),
		rules:    make(map[string]*Rule),
	}
}

func (c *InMemoryCatalog) CreateService(s *Service) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.services[s.ID]; exists {
		return fmt.Errorf("service %s already exists", s.ID)
	}

	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	c.services[s.ID] = s
	return nil
}

func (c *InMemoryCatalog) GetService(id string) (*Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, exists := c.services[id]
	if !exists {
		return nil, fmt.Errorf("service %s: %w", id, ErrUnknownService)
	}
	return s, nil
}

func (c *InMemoryCatalog) ListServices() ([]*Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	services := make([]*Service, 0, len(c.services))
	for _, s := range c.services {
		services = append(services, s)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	return services, nil
}

func (c *InMemoryCatalog) UpdateService(s *Service) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.services[s.ID]
	if !exists {
		return fmt.Errorf("service %s: %w", s.ID, ErrUnknownService)
	}

	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now()
	c.services[s.ID] = s
	return nil
}

// DeleteService removes a service and cascades to its rule groups and,
// transitively, their rules.
func (c *InMemoryCatalog) DeleteService(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.services[id]; !exists {
		return fmt.Errorf("service %s: %w", id, ErrUnknownService)
	}

	for groupID, g := range c.groups {
		if g.ServiceID == id {
			c.deleteGroupLocked(groupID)
		}
	}
	delete(c.services, id)
	return nil
}

func (c *InMemoryCatalog) CreateRuleGroup(g *RuleGroup) error {
	if err := ValidateRuleGroup(g); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.groups[g.ID]; exists {
		return fmt.Errorf("rule group %s already exists", g.ID)
	}
	if _, exists := c.services[g.ServiceID]; !exists {
		return fmt.Errorf("service %s: %w", g.ServiceID, ErrUnknownService)
	}
	for _, existing := range c.groups {
		if existing.ServiceID == g.ServiceID && existing.AttributeName == g.AttributeName {
			return duplicateAttributeErr(g.AttributeName)
		}
	}

	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	c.groups[g.ID] = g
	return nil
}

func (c *InMemoryCatalog) GetRuleGroup(id string) (*RuleGroup, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, exists := c.groups[id]
	if !exists {
		return nil, fmt.Errorf("rule group %s: %w", id, ErrGroupNotFound)
	}
	return g, nil
}

func (c *InMemoryCatalog) GetRuleGroupsForService(serviceID string) ([]*RuleGroup, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, exists := c.services[serviceID]; !exists {
		return nil, fmt.Errorf("service %s: %w", serviceID, ErrUnknownService)
	}
	return c.groupsForServiceLocked(serviceID), nil
}

func (c *InMemoryCatalog) groupsForServiceLocked(serviceID string) []*RuleGroup {
	groups := []*RuleGroup{}
	for _, g := range c.groups {
		if g.ServiceID == serviceID {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

func (c *InMemoryCatalog) UpdateRuleGroup(g *RuleGroup) error {
	if err := ValidateRuleGroup(g); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.groups[g.ID]
	if !exists {
		return fmt.Errorf("rule group %s: %w", g.ID, ErrGroupNotFound)
	}

	// One group per attribute per service, on update as on create.
	for _, other := range c.groups {
		if other.ID != g.ID && other.ServiceID == existing.ServiceID && other.AttributeName == g.AttributeName {
			return duplicateAttributeErr(g.AttributeName)
		}
	}

	// A group belongs to exactly one service for its whole lifetime.
	g.ServiceID = existing.ServiceID
	g.CreatedAt = existing.CreatedAt
	g.UpdatedAt = time.Now()
	c.groups[g.ID] = g
	return nil
}

// DeleteRuleGroup removes a group and cascades to its rules.
func (c *InMemoryCatalog) DeleteRuleGroup(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.groups[id]; !exists {
		return fmt.Errorf("rule group %s: %w", id, ErrGroupNotFound)
	}
	c.deleteGroupLocked(id)
	return nil
}

func (c *InMemoryCatalog) deleteGroupLocked(id string) {
	for ruleID, r := range c.rules {
		if r.RuleGroupID == id {
			delete(c.rules, ruleID)
		}
	}
	delete(c.groups, id)
}

func (c *InMemoryCatalog) CreateRule(r *Rule) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.rules[r.ID]; exists {
		return nil, fmt.Errorf("rule %s already exists", r.ID)
	}
	if _, exists := c.groups[r.RuleGroupID]; !exists {
		return nil, fmt.Errorf("rule group %s: %w", r.RuleGroupID, ErrGroupNotFound)
	}

	warnings, err := ValidateRule(r, c.rulesForGroupLocked(r.RuleGroupID))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	c.rules[r.ID] = r
	return warnings, nil
}

func (c *InMemoryCatalog) GetRule(id string) (*Rule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, exists := c.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	return r, nil
}

func (c *InMemoryCatalog) GetRulesForGroup(groupID string) ([]*Rule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, exists := c.groups[groupID]; !exists {
		return nil, fmt.Errorf("rule group %s: %w", groupID, ErrGroupNotFound)
	}
	return c.rulesForGroupLocked(groupID), nil
}

// rulesForGroupLocked returns a group's rules ordered for display and
// evaluation: numeric rules by MinValue ascending, then option rules by
// creation time, with rule ID as the final tie key.
func (c *InMemoryCatalog) rulesForGroupLocked(groupID string) []*Rule {
	rules := []*Rule{}
	for _, r := range c.rules {
		if r.RuleGroupID == groupID {
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Kind != b.Kind {
			return a.Kind == RuleKindNumeric
		}
		if a.Kind == RuleKindNumeric {
			if !a.MinValue.Equal(b.MinValue) {
				return a.MinValue.LessThan(b.MinValue)
			}
		} else if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return rules
}

func (c *InMemoryCatalog) UpdateRule(r *Rule) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.rules[r.ID]
	if !exists {
		return nil, fmt.Errorf("rule %s: %w", r.ID, ErrRuleNotFound)
	}

	// A rule cannot move between groups.
	r.RuleGroupID = existing.RuleGroupID

	siblings := []*Rule{}
	for _, sib := range c.rulesForGroupLocked(r.RuleGroupID) {
		if sib.ID != r.ID {
			siblings = append(siblings, sib)
		}
	}
	warnings, err := ValidateRule(r, siblings)
	if err != nil {
		return nil, err
	}

	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now()
	c.rules[r.ID] = r
	return warnings, nil
}

func (c *InMemoryCatalog) DeleteRule(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.rules[id]; !exists {
		return fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	delete(c.rules, id)
	return nil
}

// Snapshot assembles the full rule set for one service under a single
// read lock, so an evaluation never observes a half-applied edit.
func (c *InMemoryCatalog) Snapshot(serviceID string) (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, exists := c.services[serviceID]; !exists {
		return nil, fmt.Errorf("service %s: %w", serviceID, ErrUnknownService)
	}

	snap := &Snapshot{ServiceID: serviceID, Groups: []GroupRules{}}
	for _, g := range c.groupsForServiceLocked(serviceID) {
		gr := GroupRules{Group: *g}
		for _, r := range c.rulesForGroupLocked(g.ID) {
			gr.Rules = append(gr.Rules, *r)
		}
		snap.Groups = append(snap.Groups, gr)
	}
	return snap, nil
}

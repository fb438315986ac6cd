package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresCatalog implements Catalog backed by PostgreSQL. Referential
// integrity and cascade deletes are enforced by the schema (foreign keys
// with ON DELETE CASCADE); this layer adds the authoring validation and
// the error taxonomy.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog creates a PostgreSQL-backed catalog.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func infraErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrCatalogUnavailable, err)
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (c *PostgresCatalog) CreateService(s *Service) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := c.db.Exec(`
		INSERT INTO services (id, name, base_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.Name, s.BasePrice, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return infraErr("insert service", err)
	}
	return nil
}

func (c *PostgresCatalog) GetService(id string) (*Service, error) {
	var s Service
	err := c.db.QueryRow(`
		SELECT id, name, base_price, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.BasePrice, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %s: %w", id, ErrUnknownService)
	}
	if err != nil {
		return nil, infraErr("get service", err)
	}
	return &s, nil
}

func (c *PostgresCatalog) ListServices() ([]*Service, error) {
	rows, err := c.db.Query(`
		SELECT id, name, base_price, created_at, updated_at
		FROM services
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, infraErr("list services", err)
	}
	defer rows.Close()

	services := []*Service{}
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.BasePrice, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, infraErr("scan service", err)
		}
		services = append(services, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("iterate services", err)
	}
	return services, nil
}

func (c *PostgresCatalog) UpdateService(s *Service) error {
	s.UpdatedAt = time.Now()

	result, err := c.db.Exec(`
		UPDATE services
		SET name = $1, base_price = $2, updated_at = $3
		WHERE id = $4
	`, s.Name, s.BasePrice, s.UpdatedAt, s.ID)
	if err != nil {
		return infraErr("update service", err)
	}
	return c.requireRow(result, fmt.Errorf("service %s: %w", s.ID, ErrUnknownService))
}

// DeleteService removes a service; the schema cascades the delete to
// its rule groups and rules.
func (c *PostgresCatalog) DeleteService(id string) error {
	result, err := c.db.Exec(`DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return infraErr("delete service", err)
	}
	return c.requireRow(result, fmt.Errorf("service %s: %w", id, ErrUnknownService))
}

func (c *PostgresCatalog) CreateRuleGroup(g *RuleGroup) error {
	if err := ValidateRuleGroup(g); err != nil {
		return err
	}
	if _, err := c.GetService(g.ServiceID); err != nil {
		return err
	}

	var exists bool
	err := c.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rule_groups WHERE service_id = $1 AND attribute_name = $2)
	`, g.ServiceID, g.AttributeName).Scan(&exists)
	if err != nil {
		return infraErr("check rule group uniqueness", err)
	}
	if exists {
		return duplicateAttributeErr(g.AttributeName)
	}

	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err = c.db.Exec(`
		INSERT INTO rule_groups (id, service_id, attribute_name, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, g.ID, g.ServiceID, g.AttributeName, g.DisplayName, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		// A concurrent create can slip past the pre-check; the UNIQUE
		// constraint still decides, and it is an authoring conflict, not
		// an outage.
		if isUniqueViolation(err) {
			return duplicateAttributeErr(g.AttributeName)
		}
		return infraErr("insert rule group", err)
	}
	return nil
}

func (c *PostgresCatalog) GetRuleGroup(id string) (*RuleGroup, error) {
	var g RuleGroup
	err := c.db.QueryRow(`
		SELECT id, service_id, attribute_name, display_name, created_at, updated_at
		FROM rule_groups
		WHERE id = $1
	`, id).Scan(&g.ID, &g.ServiceID, &g.AttributeName, &g.DisplayName, &g.CreatedAt, &g.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule group %s: %w", id, ErrGroupNotFound)
	}
	if err != nil {
		return nil, infraErr("get rule group", err)
	}
	return &g, nil
}

func (c *PostgresCatalog) GetRuleGroupsForService(serviceID string) ([]*RuleGroup, error) {
	if _, err := c.GetService(serviceID); err != nil {
		return nil, err
	}

	rows, err := c.db.Query(`
		SELECT id, service_id, attribute_name, display_name, created_at, updated_at
		FROM rule_groups
		WHERE service_id = $1
		ORDER BY id ASC
	`, serviceID)
	if err != nil {
		return nil, infraErr("list rule groups", err)
	}
	defer rows.Close()

	return scanGroups(rows)
}

func scanGroups(rows *sql.Rows) ([]*RuleGroup, error) {
	groups := []*RuleGroup{}
	for rows.Next() {
		var g RuleGroup
		if err := rows.Scan(&g.ID, &g.ServiceID, &g.AttributeName, &g.DisplayName, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, infraErr("scan rule group", err)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("iterate rule groups", err)
	}
	return groups, nil
}

func (c *PostgresCatalog) UpdateRuleGroup(g *RuleGroup) error {
	if err := ValidateRuleGroup(g); err != nil {
		return err
	}

	// One group per attribute per service, on update as on create.
	var taken bool
	err := c.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1
			FROM rule_groups other
			JOIN rule_groups g ON g.id = $1
			WHERE other.service_id = g.service_id
			  AND other.attribute_name = $2
			  AND other.id <> g.id
		)
	`, g.ID, g.AttributeName).Scan(&taken)
	if err != nil {
		return infraErr("check rule group uniqueness", err)
	}
	if taken {
		return duplicateAttributeErr(g.AttributeName)
	}

	g.UpdatedAt = time.Now()

	// service_id deliberately not updatable: a group belongs to exactly
	// one service for its whole lifetime.
	result, err := c.db.Exec(`
		UPDATE rule_groups
		SET attribute_name = $1, display_name = $2, updated_at = $3
		WHERE id = $4
	`, g.AttributeName, g.DisplayName, g.UpdatedAt, g.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateAttributeErr(g.AttributeName)
		}
		return infraErr("update rule group", err)
	}
	return c.requireRow(result, fmt.Errorf("rule group %s: %w", g.ID, ErrGroupNotFound))
}

// DeleteRuleGroup removes a group; the schema cascades to its rules.
func (c *PostgresCatalog) DeleteRuleGroup(id string) error {
	result, err := c.db.Exec(`DELETE FROM rule_groups WHERE id = $1`, id)
	if err != nil {
		return infraErr("delete rule group", err)
	}
	return c.requireRow(result, fmt.Errorf("rule group %s: %w", id, ErrGroupNotFound))
}

func (c *PostgresCatalog) CreateRule(r *Rule) ([]string, error) {
	siblings, err := c.GetRulesForGroup(r.RuleGroupID)
	if err != nil {
		return nil, err
	}
	warnings, err := ValidateRule(r, siblings)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err = c.db.Exec(`
		INSERT INTO pricing_rules
			(id, rule_group_id, kind, min_value, max_value, option_key, option_label,
			 extra_price, custom_quote, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.ID, r.RuleGroupID, r.Kind, r.MinValue, r.MaxValue, r.OptionKey, r.OptionLabel,
		r.ExtraPrice, r.CustomQuote, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, infraErr("insert rule", err)
	}
	return warnings, nil
}

func (c *PostgresCatalog) GetRule(id string) (*Rule, error) {
	row := c.db.QueryRow(`
		SELECT id, rule_group_id, kind, min_value, max_value, option_key, option_label,
		       extra_price, custom_quote, created_at, updated_at
		FROM pricing_rules
		WHERE id = $1
	`, id)

	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	if err != nil {
		return nil, infraErr("get rule", err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var r Rule
	err := row.Scan(&r.ID, &r.RuleGroupID, &r.Kind, &r.MinValue, &r.MaxValue,
		&r.OptionKey, &r.OptionLabel, &r.ExtraPrice, &r.CustomQuote,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ruleOrder keeps numeric rules first by ascending band start, then
// option rules by creation time. Matches InMemoryCatalog ordering.
const ruleOrder = `
	ORDER BY CASE r.kind WHEN 'numeric' THEN 0 ELSE 1 END,
	         r.min_value ASC, r.created_at ASC, r.id ASC`

func (c *PostgresCatalog) GetRulesForGroup(groupID string) ([]*Rule, error) {
	if _, err := c.GetRuleGroup(groupID); err != nil {
		return nil, err
	}

	rows, err := c.db.Query(`
		SELECT r.id, r.rule_group_id, r.kind, r.min_value, r.max_value, r.option_key,
		       r.option_label, r.extra_price, r.custom_quote, r.created_at, r.updated_at
		FROM pricing_rules r
		WHERE r.rule_group_id = $1`+ruleOrder, groupID)
	if err != nil {
		return nil, infraErr("list rules", err)
	}
	defer rows.Close()

	rules := []*Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, infraErr("scan rule", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("iterate rules", err)
	}
	return rules, nil
}

func (c *PostgresCatalog) UpdateRule(r *Rule) ([]string, error) {
	existing, err := c.GetRule(r.ID)
	if err != nil {
		return nil, err
	}

	// A rule cannot move between groups.
	r.RuleGroupID = existing.RuleGroupID

	all, err := c.GetRulesForGroup(r.RuleGroupID)
	if err != nil {
		return nil, err
	}
	siblings := []*Rule{}
	for _, sib := range all {
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

	result, err := c.db.Exec(`
		UPDATE pricing_rules
		SET kind = $1, min_value = $2, max_value = $3, option_key = $4,
		    option_label = $5, extra_price = $6, custom_quote = $7, updated_at = $8
		WHERE id = $9
	`, r.Kind, r.MinValue, r.MaxValue, r.OptionKey, r.OptionLabel,
		r.ExtraPrice, r.CustomQuote, r.UpdatedAt, r.ID)
	if err != nil {
		return nil, infraErr("update rule", err)
	}
	if err := c.requireRow(result, fmt.Errorf("rule %s: %w", r.ID, ErrRuleNotFound)); err != nil {
		return nil, err
	}
	return warnings, nil
}

func (c *PostgresCatalog) DeleteRule(id string) error {
	result, err := c.db.Exec(`DELETE FROM pricing_rules WHERE id = $1`, id)
	if err != nil {
		return infraErr("delete rule", err)
	}
	return c.requireRow(result, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound))
}

// Snapshot reads a service's whole rule set inside one repeatable-read
// transaction, so an evaluation never mixes pre-edit and post-edit rows
// even while an administrator is saving changes.
func (c *PostgresCatalog) Snapshot(serviceID string) (*Snapshot, error) {
	tx, err := c.db.BeginTx(context.Background(), &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, infraErr("begin snapshot", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM services WHERE id = $1)`, serviceID).Scan(&exists); err != nil {
		return nil, infraErr("check service", err)
	}
	if !exists {
		return nil, fmt.Errorf("service %s: %w", serviceID, ErrUnknownService)
	}

	groupRows, err := tx.Query(`
		SELECT id, service_id, attribute_name, display_name, created_at, updated_at
		FROM rule_groups
		WHERE service_id = $1
		ORDER BY id ASC
	`, serviceID)
	if err != nil {
		return nil, infraErr("snapshot rule groups", err)
	}
	groups, err := scanGroups(groupRows)
	groupRows.Close()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{ServiceID: serviceID, Groups: []GroupRules{}}
	byGroup := make(map[string]int, len(groups))
	for _, g := range groups {
		byGroup[g.ID] = len(snap.Groups)
		snap.Groups = append(snap.Groups, GroupRules{Group: *g})
	}

	ruleRows, err := tx.Query(`
		SELECT r.id, r.rule_group_id, r.kind, r.min_value, r.max_value, r.option_key,
		       r.option_label, r.extra_price, r.custom_quote, r.created_at, r.updated_at
		FROM pricing_rules r
		JOIN rule_groups g ON g.id = r.rule_group_id
		WHERE g.service_id = $1`+ruleOrder, serviceID)
	if err != nil {
		return nil, infraErr("snapshot rules", err)
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		r, err := scanRule(ruleRows)
		if err != nil {
			return nil, infraErr("scan rule", err)
		}
		if idx, ok := byGroup[r.RuleGroupID]; ok {
			snap.Groups[idx].Rules = append(snap.Groups[idx].Rules, *r)
		}
	}
	if err := ruleRows.Err(); err != nil {
		return nil, infraErr("iterate rules", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, infraErr("commit snapshot", err)
	}
	return snap, nil
}

func (c *PostgresCatalog) requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return infraErr("rows affected", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

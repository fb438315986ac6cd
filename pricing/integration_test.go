//go:build integration
// +build integration

package pricing_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bookhive/pricing/pricing"
	"github.com/bookhive/pricing/quotes"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container and returns a connection
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "pricing_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=pricing_test sslmode=disable", host, port.Port())

	// Wait for connection to be available
	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		migrationSQL, err = os.ReadFile(filepath.Join("migrations", "000001_initial_schema.up.sql"))
		if err != nil {
			t.Fatalf("Failed to read migration file: %v", err)
		}
	}

	_, err = db.Exec(string(migrationSQL))
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}

	return db, cleanup
}

func createTestService(t *testing.T, catalog *pricing.PostgresCatalog, name string, basePrice int64) *pricing.Service {
	t.Helper()
	svc := &pricing.Service{
		ID:        uuid.New().String(),
		Name:      name,
		BasePrice: decimal.NewFromInt(basePrice),
	}
	if err := catalog.CreateService(svc); err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc
}

func createTestGroup(t *testing.T, catalog *pricing.PostgresCatalog, serviceID, attr string) *pricing.RuleGroup {
	t.Helper()
	g := &pricing.RuleGroup{
		ID:            uuid.New().String(),
		ServiceID:     serviceID,
		AttributeName: attr,
		DisplayName:   attr,
	}
	if err := catalog.CreateRuleGroup(g); err != nil {
		t.Fatalf("Failed to create rule group: %v", err)
	}
	return g
}

func createTestBand(t *testing.T, catalog *pricing.PostgresCatalog, groupID string, min, max, extra int64, customQuote bool) *pricing.Rule {
	t.Helper()
	r := &pricing.Rule{
		ID:          uuid.New().String(),
		RuleGroupID: groupID,
		Kind:        pricing.RuleKindNumeric,
		MinValue:    decimal.NewFromInt(min),
		MaxValue:    decimal.NewFromInt(max),
		ExtraPrice:  decimal.NewFromInt(extra),
		CustomQuote: customQuote,
	}
	if _, err := catalog.CreateRule(r); err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}
	return r
}

func TestPostgresCatalog_ServiceCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	catalog := pricing.NewPostgresCatalog(db)
	svc := createTestService(t, catalog, "Window cleaning", 100)

	retrieved, err := catalog.GetService(svc.ID)
	if err != nil {
		t.Fatalf("Failed to get service: %v", err)
	}
	if retrieved.Name != "Window cleaning" {
		t.Errorf("Expected name 'Window cleaning', got '%s'", retrieved.Name)
	}
	if !retrieved.BasePrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected base price 100, got %s", retrieved.BasePrice)
	}

	svc.Name = "Window cleaning deluxe"
	svc.BasePrice = decimal.NewFromInt(150)
	if err := catalog.UpdateService(svc); err != nil {
		t.Fatalf("Failed to update service: %v", err)
	}

	updated, err := catalog.GetService(svc.ID)
	if err != nil {
		t.Fatalf("Failed to get updated service: %v", err)
	}
	if updated.Name != "Window cleaning deluxe" {
		t.Errorf("Expected updated name, got '%s'", updated.Name)
	}

	if err := catalog.DeleteService(svc.ID); err != nil {
		t.Fatalf("Failed to delete service: %v", err)
	}
	if _, err := catalog.GetService(svc.ID); !errors.Is(err, pricing.ErrUnknownService) {
		t.Errorf("Expected ErrUnknownService after delete, got %v", err)
	}
}

func TestPostgresCatalog_RuleCRUDAndValidation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	catalog := pricing.NewPostgresCatalog(db)
	svc := createTestService(t, catalog, "Window cleaning", 100)
	group := createTestGroup(t, catalog, svc.ID, "floors")

	rule := createTestBand(t, catalog, group.ID, 1, 5, 10, false)

	retrieved, err := catalog.GetRule(rule.ID)
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if !retrieved.MinValue.Equal(decimal.NewFromInt(1)) || !retrieved.MaxValue.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected band [1,5], got [%s,%s]", retrieved.MinValue, retrieved.MaxValue)
	}

	// Exact duplicate band rejected by the authoring validator.
	dup := &pricing.Rule{
		ID:          uuid.New().String(),
		RuleGroupID: group.ID,
		Kind:        pricing.RuleKindNumeric,
		MinValue:    decimal.NewFromInt(1),
		MaxValue:    decimal.NewFromInt(5),
	}
	var ve *pricing.ValidationError
	if _, err := catalog.CreateRule(dup); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for duplicate band, got %v", err)
	}

	// Partial overlap accepted with a warning.
	overlapping := &pricing.Rule{
		ID:          uuid.New().String(),
		RuleGroupID: group.ID,
		Kind:        pricing.RuleKindNumeric,
		MinValue:    decimal.NewFromInt(4),
		MaxValue:    decimal.NewFromInt(8),
		ExtraPrice:  decimal.NewFromInt(20),
	}
	warnings, err := catalog.CreateRule(overlapping)
	if err != nil {
		t.Fatalf("Failed to create overlapping rule: %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("Expected 1 overlap warning, got %v", warnings)
	}

	rule.ExtraPrice = decimal.NewFromInt(15)
	if _, err := catalog.UpdateRule(rule); err != nil {
		t.Fatalf("Failed to update rule: %v", err)
	}
	updated, err := catalog.GetRule(rule.ID)
	if err != nil {
		t.Fatalf("Failed to get updated rule: %v", err)
	}
	if !updated.ExtraPrice.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Expected extra price 15, got %s", updated.ExtraPrice)
	}

	if err := catalog.DeleteRule(rule.ID); err != nil {
		t.Fatalf("Failed to delete rule: %v", err)
	}
	if _, err := catalog.GetRule(rule.ID); !errors.Is(err, pricing.ErrRuleNotFound) {
		t.Errorf("Expected ErrRuleNotFound after delete, got %v", err)
	}
}

func TestPostgresCatalog_DuplicateAttributeGroup(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	catalog := pricing.NewPostgresCatalog(db)
	svc := createTestService(t, catalog, "Window cleaning", 100)
	createTestGroup(t, catalog, svc.ID, "floors")

	dup := &pricing.RuleGroup{
		ID:            uuid.New().String(),
		ServiceID:     svc.ID,
		AttributeName: "floors",
		DisplayName:   "Floors again",
	}
	var ve *pricing.ValidationError
	if err := catalog.CreateRuleGroup(dup); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for duplicate attribute group, got %v", err)
	}

	// The update path enforces the same uniqueness.
	other := createTestGroup(t, catalog, svc.ID, "windows")
	other.AttributeName = "floors"
	if err := catalog.UpdateRuleGroup(other); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError when renaming onto an existing attribute, got %v", err)
	}

	retrieved, err := catalog.GetRuleGroup(other.ID)
	if err != nil {
		t.Fatalf("Failed to get rule group: %v", err)
	}
	if retrieved.AttributeName != "windows" {
		t.Errorf("Expected rejected update to leave attribute 'windows', got '%s'", retrieved.AttributeName)
	}
}

func TestPostgresCatalog_CascadingDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	catalog := pricing.NewPostgresCatalog(db)
	svc := createTestService(t, catalog, "Window cleaning", 100)
	group := createTestGroup(t, catalog, svc.ID, "floors")
	rule := createTestBand(t, catalog, group.ID, 1, 5, 10, false)

	if err := catalog.DeleteService(svc.ID); err != nil {
		t.Fatalf("Failed to delete service: %v", err)
	}

	if _, err := catalog.GetRuleGroup(group.ID); !errors.Is(err, pricing.ErrGroupNotFound) {
		t.Errorf("Expected group to be cascade-deleted, got %v", err)
	}
	if _, err := catalog.GetRule(rule.ID); !errors.Is(err, pricing.ErrRuleNotFound) {
		t.Errorf("Expected rule to be cascade-deleted, got %v", err)
	}
}

func TestPostgresCatalog_SnapshotOrdering(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	catalog := pricing.NewPostgresCatalog(db)
	svc := createTestService(t, catalog, "Window cleaning", 100)
	group := createTestGroup(t, catalog, svc.ID, "floors")

	// Created out of band order on purpose.
	high := createTestBand(t, catalog, group.ID, 20, 30, 50, false)
	low := createTestBand(t, catalog, group.ID, 1, 9, 10, false)
	mid := createTestBand(t, catalog, group.ID, 10, 19, 25, false)

	snap, err := catalog.Snapshot(svc.ID)
	if err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}
	if len(snap.Groups) != 1 {
		t.Fatalf("Expected 1 group in snapshot, got %d", len(snap.Groups))
	}
	rules := snap.Groups[0].Rules
	if len(rules) != 3 {
		t.Fatalf("Expected 3 rules in snapshot, got %d", len(rules))
	}
	if rules[0].ID != low.ID || rules[1].ID != mid.ID || rules[2].ID != high.ID {
		t.Errorf("Rules not ordered by ascending band start: %s, %s, %s", rules[0].ID, rules[1].ID, rules[2].ID)
	}

	if _, err := catalog.Snapshot(uuid.New().String()); !errors.Is(err, pricing.ErrUnknownService) {
		t.Errorf("Expected ErrUnknownService for unknown snapshot, got %v", err)
	}
}

func TestEvaluatorAgainstPostgres(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	catalog := pricing.NewPostgresCatalog(db)
	svc := createTestService(t, catalog, "Window cleaning", 100)
	group := createTestGroup(t, catalog, svc.ID, "floors")
	createTestBand(t, catalog, group.ID, 1, 3, 0, false)
	matched := createTestBand(t, catalog, group.ID, 4, 10, 50, false)
	trigger := createTestBand(t, catalog, group.ID, 11, 999, 0, true)

	evaluator := pricing.NewEvaluator(catalog)

	result, err := evaluator.Evaluate(svc.ID, map[string]any{"floors": 5})
	if err != nil {
		t.Fatalf("Failed to evaluate: %v", err)
	}
	if result.Outcome != pricing.OutcomePriced {
		t.Fatalf("Expected priced outcome, got %s", result.Outcome)
	}
	if !result.TotalAdjustment.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected adjustment 50, got %s", result.TotalAdjustment)
	}
	if len(result.MatchedRuleIDs) != 1 || result.MatchedRuleIDs[0] != matched.ID {
		t.Errorf("Expected matched rule %s, got %v", matched.ID, result.MatchedRuleIDs)
	}

	result, err = evaluator.Evaluate(svc.ID, map[string]any{"floors": 12})
	if err != nil {
		t.Fatalf("Failed to evaluate custom quote case: %v", err)
	}
	if result.Outcome != pricing.OutcomeCustomQuoteRequired {
		t.Fatalf("Expected custom_quote_required outcome, got %s", result.Outcome)
	}
	if result.TriggeringRuleID != trigger.ID {
		t.Errorf("Expected triggering rule %s, got %s", trigger.ID, result.TriggeringRuleID)
	}

	// Edits reach the evaluator after cache invalidation.
	matched.ExtraPrice = decimal.NewFromInt(80)
	if _, err := catalog.UpdateRule(matched); err != nil {
		t.Fatalf("Failed to update rule: %v", err)
	}
	evaluator.Invalidate(svc.ID)

	result, err = evaluator.Evaluate(svc.ID, map[string]any{"floors": 5})
	if err != nil {
		t.Fatalf("Failed to re-evaluate: %v", err)
	}
	if !result.TotalAdjustment.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Expected adjustment 80 after update, got %s", result.TotalAdjustment)
	}
}

func TestPostgresQuoteStore_Workflow(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	catalog := pricing.NewPostgresCatalog(db)
	svc := createTestService(t, catalog, "Window cleaning", 100)

	store := quotes.NewPostgresStore(db)
	q := &quotes.QuoteRequest{
		ID:            uuid.New().String(),
		ServiceID:     svc.ID,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Details:       "12-floor office block",
	}
	if err := store.Add(q); err != nil {
		t.Fatalf("Failed to add quote request: %v", err)
	}
	if q.Status != quotes.StatusPending {
		t.Errorf("Expected pending status, got %s", q.Status)
	}

	retrieved, err := store.Get(q.ID)
	if err != nil {
		t.Fatalf("Failed to get quote request: %v", err)
	}
	if retrieved.CustomerEmail != "ada@example.com" {
		t.Errorf("Expected customer email, got '%s'", retrieved.CustomerEmail)
	}

	if _, err := store.UpdateStatus(q.ID, quotes.StatusQuoted); !errors.Is(err, quotes.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition when skipping a step, got %v", err)
	}

	for _, next := range []quotes.Status{quotes.StatusReviewed, quotes.StatusQuoted, quotes.StatusAssigned} {
		if _, err := store.UpdateStatus(q.ID, next); err != nil {
			t.Fatalf("Failed to transition to %s: %v", next, err)
		}
	}

	assigned, err := store.ListByStatus(quotes.StatusAssigned)
	if err != nil {
		t.Fatalf("Failed to list by status: %v", err)
	}
	if len(assigned) != 1 {
		t.Errorf("Expected 1 assigned quote request, got %d", len(assigned))
	}

	if err := store.Delete(q.ID); err != nil {
		t.Fatalf("Failed to delete quote request: %v", err)
	}
	if _, err := store.Get(q.ID); !errors.Is(err, quotes.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresQuoteStore_CascadeOnServiceDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	catalog := pricing.NewPostgresCatalog(db)
	svc := createTestService(t, catalog, "Window cleaning", 100)

	store := quotes.NewPostgresStore(db)
	q := &quotes.QuoteRequest{
		ID:            uuid.New().String(),
		ServiceID:     svc.ID,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
	}
	if err := store.Add(q); err != nil {
		t.Fatalf("Failed to add quote request: %v", err)
	}

	if err := catalog.DeleteService(svc.ID); err != nil {
		t.Fatalf("Failed to delete service: %v", err)
	}

	if _, err := store.Get(q.ID); !errors.Is(err, quotes.ErrNotFound) {
		t.Errorf("Expected quote request to be cascade-deleted, got %v", err)
	}
}

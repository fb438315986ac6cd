package quotes

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed quote request store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const quoteColumns = `id, service_id, customer_name, customer_email, customer_phone,
	details, status, triggering_rule_id, created_at, updated_at`

func (s *PostgresStore) Add(q *QuoteRequest) error {
	if q.Status == "" {
		q.Status = StatusPending
	}
	if !q.Status.Valid() {
		return fmt.Errorf("unknown status %q", q.Status)
	}

	now := time.Now()
	q.CreatedAt = now
	q.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO quote_requests
			(id, service_id, customer_name, customer_email, customer_phone,
			 details, status, triggering_rule_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, q.ID, q.ServiceID, q.CustomerName, q.CustomerEmail, q.CustomerPhone,
		q.Details, q.Status, q.TriggeringRuleID, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert quote request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(id string) (*QuoteRequest, error) {
	var q QuoteRequest
	err := s.db.QueryRow(`
		SELECT `+quoteColumns+`
		FROM quote_requests
		WHERE id = $1
	`, id).Scan(&q.ID, &q.ServiceID, &q.CustomerName, &q.CustomerEmail, &q.CustomerPhone,
		&q.Details, &q.Status, &q.TriggeringRuleID, &q.CreatedAt, &q.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quote request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote request: %w", err)
	}
	return &q, nil
}

func (s *PostgresStore) List() ([]*QuoteRequest, error) {
	return s.query(`
		SELECT `+quoteColumns+`
		FROM quote_requests
		ORDER BY created_at DESC, id ASC
	`)
}

func (s *PostgresStore) ListByStatus(status Status) ([]*QuoteRequest, error) {
	return s.query(`
		SELECT `+quoteColumns+`
		FROM quote_requests
		WHERE status = $1
		ORDER BY created_at DESC, id ASC
	`, status)
}

func (s *PostgresStore) query(sqlText string, args ...any) ([]*QuoteRequest, error) {
	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quote requests: %w", err)
	}
	defer rows.Close()

	out := []*QuoteRequest{}
	for rows.Next() {
		var q QuoteRequest
		if err := rows.Scan(&q.ID, &q.ServiceID, &q.CustomerName, &q.CustomerEmail,
			&q.CustomerPhone, &q.Details, &q.Status, &q.TriggeringRuleID,
			&q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote request: %w", err)
		}
		out = append(out, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quote requests: %w", err)
	}
	return out, nil
}

// UpdateStatus advances the workflow inside a transaction with a row
// lock, so concurrent admin actions cannot both apply the same step.
func (s *PostgresStore) UpdateStatus(id string, next Status) (*QuoteRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var q QuoteRequest
	err = tx.QueryRow(`
		SELECT `+quoteColumns+`
		FROM quote_requests
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&q.ID, &q.ServiceID, &q.CustomerName, &q.CustomerEmail, &q.CustomerPhone,
		&q.Details, &q.Status, &q.TriggeringRuleID, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quote request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock quote request: %w", err)
	}

	if err := q.Transition(next); err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		UPDATE quote_requests
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, q.Status, q.UpdatedAt, q.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update quote request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &q, nil
}

func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM quote_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quote request: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("quote request %s: %w", id, ErrNotFound)
	}
	return nil
}

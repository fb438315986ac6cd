// Package quotes holds the custom-quote request entity: the record a
// customer lands on when pricing evaluation decides a booking cannot be
// priced automatically.
package quotes

import (
	"errors"
	"fmt"
	"time"
)

// Status is the workflow state of a quote request. Transitions move
// strictly forward: pending -> reviewed -> quoted -> assigned.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReviewed Status = "reviewed"
	StatusQuoted   Status = "quoted"
	StatusAssigned Status = "assigned"
)

// ErrInvalidTransition is returned when a status change skips a step or
// moves backwards.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound is returned when a quote request id does not exist.
var ErrNotFound = errors.New("quote request not found")

var statusOrder = map[Status]int{
	StatusPending:  0,
	StatusReviewed: 1,
	StatusQuoted:   2,
	StatusAssigned: 3,
}

// Valid reports whether s is one of the known workflow states.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransitionTo reports whether next is the immediate successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	cur, ok := statusOrder[s]
	if !ok {
		return false
	}
	nxt, ok := statusOrder[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// QuoteRequest is a customer's ask for a manual quote, created when the
// evaluator returns a custom-quote outcome (TriggeringRuleID records
// which rule forced it) or submitted directly from the booking flow.
type QuoteRequest struct {
	ID               string    `json:"id"`
	ServiceID        string    `json:"serviceId"`
	CustomerName     string    `json:"customerName"`
	CustomerEmail    string    `json:"customerEmail"`
	CustomerPhone    string    `json:"customerPhone,omitempty"`
	Details          string    `json:"details"`
	Status           Status    `json:"status"`
	TriggeringRuleID string    `json:"triggeringRuleId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Transition advances the request to next, enforcing the forward-only
// workflow.
func (q *QuoteRequest) Transition(next Status) error {
	if !q.Status.CanTransitionTo(next) {
		return fmt.Errorf("%s -> %s: %w", q.Status, next, ErrInvalidTransition)
	}
	q.Status = next
	q.UpdatedAt = time.Now()
	return nil
}

package quotes

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store manages quote request persistence.
type Store interface {
	// Add a new quote request
	Add(q *QuoteRequest) error

	// Get a quote request by ID
	Get(id string) (*QuoteRequest, error)

	// List all quote requests, newest first
	List() ([]*QuoteRequest, error)

	// ListByStatus filters quote requests by workflow state
	ListByStatus(status Status) ([]*QuoteRequest, error)

	// UpdateStatus advances a quote request through the workflow
	UpdateStatus(id string, next Status) (*QuoteRequest, error)

	// Delete a quote request
	Delete(id string) error
}

// InMemoryStore implements Store using an in-memory map. Thread-safe
// with an RWMutex.
type InMemoryStore struct {
	requests map[string]*QuoteRequest
	mu       sync.RWMutex
}

// NewInMemoryStore creates a new in-memory quote request store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[string]*QuoteRequest),
	}
}

func (s *InMemoryStore) Add(q *QuoteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[q.ID]; exists {
		return fmt.Errorf("quote request %s already exists", q.ID)
	}

	if q.Status == "" {
		q.Status = StatusPending
	}
	if !q.Status.Valid() {
		return fmt.Errorf("unknown status %q", q.Status)
	}

	now := time.Now()
	q.CreatedAt = now
	q.UpdatedAt = now
	s.requests[q.ID] = q
	return nil
}

func (s *InMemoryStore) Get(id string) (*QuoteRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, exists := s.requests[id]
	if !exists {
		return nil, fmt.Errorf("quote request %s: %w", id, ErrNotFound)
	}
	return q, nil
}

func (s *InMemoryStore) List() ([]*QuoteRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listLocked(func(*QuoteRequest) bool { return true }), nil
}

func (s *InMemoryStore) ListByStatus(status Status) ([]*QuoteRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listLocked(func(q *QuoteRequest) bool { return q.Status == status }), nil
}

func (s *InMemoryStore) listLocked(keep func(*QuoteRequest) bool) []*QuoteRequest {
	out := []*QuoteRequest{}
	for _, q := range s.requests {
		if keep(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *InMemoryStore) UpdateStatus(id string, next Status) (*QuoteRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, exists := s.requests[id]
	if !exists {
		return nil, fmt.Errorf("quote request %s: %w", id, ErrNotFound)
	}
	if err := q.Transition(next); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[id]; !exists {
		return fmt.Errorf("quote request %s: %w", id, ErrNotFound)
	}
	delete(s.requests, id)
	return nil
}

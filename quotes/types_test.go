package quotes

import (
	"errors"
	"testing"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusReviewed, StatusQuoted, StatusAssigned} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("rejected").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestStatusCanTransitionTo(t *testing.T) {
	testCases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusReviewed, true},
		{StatusReviewed, StatusQuoted, true},
		{StatusQuoted, StatusAssigned, true},
		{StatusPending, StatusQuoted, false},  // no skipping
		{StatusReviewed, StatusPending, false}, // no moving back
		{StatusAssigned, StatusAssigned, false},
		{StatusAssigned, StatusPending, false},
		{Status("bogus"), StatusReviewed, false},
		{StatusPending, Status("bogus"), false},
	}

	for _, tc := range testCases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestQuoteRequestTransition(t *testing.T) {
	q := &QuoteRequest{ID: "q1", Status: StatusPending}

	if err := q.Transition(StatusReviewed); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}
	if q.Status != StatusReviewed {
		t.Errorf("Status = %s, want reviewed", q.Status)
	}
	if q.UpdatedAt.IsZero() {
		t.Error("Transition should stamp UpdatedAt")
	}

	err := q.Transition(StatusAssigned)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("skipping a step: error = %v, want ErrInvalidTransition", err)
	}
	if q.Status != StatusReviewed {
		t.Errorf("Status = %s, failed transition must not change state", q.Status)
	}
}

package ledger

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a checkout session as seen by the ledger.
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned by Get when the session is unknown.
var ErrNotFound = errors.New("ledger: session not found")

// ErrInvalidStatus is returned when a transition names an unknown status.
var ErrInvalidStatus = errors.New("ledger: invalid status")

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusCompleted, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether an entry in status from may move to status to.
// Completed is terminal. A session that expired or failed may still complete
// when a late asynchronous payment succeeds.
func CanTransition(from, to Status) bool {
	if from == to || !to.Valid() {
		return false
	}
	switch from {
	case StatusOpen:
		return true
	case StatusExpired, StatusFailed:
		return to == StatusCompleted
	default:
		return false
	}
}

// Entry is one checkout session in the ledger.
type Entry struct {
	SessionID      string    `json:"session_id"`
	Quantity       int64     `json:"quantity"`
	DonationMinor  int64     `json:"donation_minor"`
	BookTotalMinor int64     `json:"book_total_minor"`
	AmountTotal    int64     `json:"amount_total"`
	Status         Status    `json:"status"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store persists checkout sessions keyed by provider session id.
type Store interface {
	// Backend names the storage for logs and metrics.
	Backend() string
	// Record inserts e when no entry exists for e.SessionID. A bare entry
	// left by Transition gets e's amounts but keeps its status.
	Record(ctx context.Context, e Entry) error
	// Transition moves the session to status, creating a bare entry when the
	// session is unknown. changed is false when the move was a no-op.
	Transition(ctx context.Context, sessionID string, status Status) (changed bool, err error)
	Get(ctx context.Context, sessionID string) (Entry, error)
}

// Nop discards every write. It is used when no ledger backend is configured.
type Nop struct{}

func (Nop) Backend() string { return "none" }

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Get(context.Context, string) (Entry, error) { return Entry{}, ErrNotFound }

func (Nop) Transition(_ context.Context, _ string, status Status) (bool, error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}
	return false, nil
}

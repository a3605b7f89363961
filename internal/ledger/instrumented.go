package ledger

import (
	"context"

	"github.com/noah-isme/preorder-api/internal/obs"
)

// Instrumented counts writes against the wrapped store.
type Instrumented struct {
	Store
}

// Record records e and counts the outcome.
func (s Instrumented) Record(ctx context.Context, e Entry) error {
	err := s.Store.Record(ctx, e)
	s.observe(err)
	return err
}

// Transition applies the status change and counts the outcome.
func (s Instrumented) Transition(ctx context.Context, sessionID string, status Status) (bool, error) {
	changed, err := s.Store.Transition(ctx, sessionID, status)
	s.observe(err)
	return changed, err
}

func (s Instrumented) observe(err error) {
	if obs.LedgerWriteTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.LedgerWriteTotal.WithLabelValues(s.Store.Backend(), result).Inc()
}

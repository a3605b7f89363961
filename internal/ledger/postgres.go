package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps sessions in the checkout_sessions table.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func (s *PostgresStore) Backend() string { return "postgres" }

const insertSessionSQL = `INSERT INTO checkout_sessions
	(session_id, quantity, donation_minor, book_total_minor, amount_total, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (session_id) DO NOTHING`

// A bare row left by an early webhook has quantity 0; recording fills its
// amounts and keeps the status the webhook set.
const recordSessionSQL = `INSERT INTO checkout_sessions
	(session_id, quantity, donation_minor, book_total_minor, amount_total, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (session_id) DO UPDATE SET
	quantity = EXCLUDED.quantity,
	donation_minor = EXCLUDED.donation_minor,
	book_total_minor = EXCLUDED.book_total_minor,
	amount_total = EXCLUDED.amount_total
WHERE checkout_sessions.quantity = 0`

// Record inserts e, or fills the amounts of a bare entry created by Transition.
func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.SessionID) == "" {
		return errors.New("ledger: session id required")
	}
	if e.Status == "" {
		e.Status = StatusOpen
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, recordSessionSQL,
		e.SessionID, e.Quantity, e.DonationMinor, e.BookTotalMinor, e.AmountTotal, string(e.Status), e.UpdatedAt)
	return err
}

// Transition moves the session to status inside a transaction holding the row lock.
func (s *PostgresStore) Transition(ctx context.Context, sessionID string, status Status) (bool, error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, insertSessionSQL, sessionID, 0, 0, 0, 0, string(status), now)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, tx.Commit(ctx)
	}

	var current string
	if err := tx.QueryRow(ctx, `SELECT status FROM checkout_sessions WHERE session_id = $1 FOR UPDATE`, sessionID).Scan(&current); err != nil {
		return false, err
	}
	if !CanTransition(Status(current), status) {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE checkout_sessions SET status = $2, updated_at = $3 WHERE session_id = $1`, sessionID, string(status), now); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Get returns the entry for sessionID.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (Entry, error) {
	var (
		e      Entry
		status string
	)
	err := s.Pool.QueryRow(ctx, `SELECT session_id, quantity, donation_minor, book_total_minor, amount_total, status, updated_at
FROM checkout_sessions WHERE session_id = $1`, sessionID).
		Scan(&e.SessionID, &e.Quantity, &e.DonationMinor, &e.BookTotalMinor, &e.AmountTotal, &status, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	e.Status = Status(status)
	return e, nil
}

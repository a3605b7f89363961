package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/preorder-api/internal/lock"
)

const defaultRedisPrefix = "preorder:session:"

// RedisStore keeps one hash per session. Transitions are serialised per
// session with a short-lived Redis lock.
type RedisStore struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
	Locker lock.Locker
	now    func() time.Time
}

// NewRedisStore builds a store on client. A zero ttl keeps entries forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		R:      client,
		Prefix: defaultRedisPrefix,
		TTL:    ttl,
		Locker: lock.Locker{R: client, RetryBackoff: 20 * time.Millisecond, MaxWait: 2 * time.Second},
		now:    time.Now,
	}
}

func (s *RedisStore) Backend() string { return "redis" }

// Record inserts e, or fills the amounts of a bare entry created by Transition.
// Status and updated_at of an existing entry are kept.
func (s *RedisStore) Record(ctx context.Context, e Entry) error {
	if s.R == nil {
		return errors.New("ledger: redis client not configured")
	}
	if strings.TrimSpace(e.SessionID) == "" {
		return errors.New("ledger: session id required")
	}
	if e.Status == "" {
		e.Status = StatusOpen
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.clock()
	}
	key := s.key(e.SessionID)
	return s.Locker.WithLock(ctx, key+":lock", 5*time.Second, func(ctx context.Context) error {
		current, err := s.read(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			return s.write(ctx, key, e)
		case err != nil:
			return err
		case current.Quantity != 0:
			return nil
		}
		current.Quantity = e.Quantity
		current.DonationMinor = e.DonationMinor
		current.BookTotalMinor = e.BookTotalMinor
		current.AmountTotal = e.AmountTotal
		return s.write(ctx, key, current)
	})
}

// Transition moves the session to status when allowed.
func (s *RedisStore) Transition(ctx context.Context, sessionID string, status Status) (bool, error) {
	if s.R == nil {
		return false, errors.New("ledger: redis client not configured")
	}
	if !status.Valid() {
		return false, ErrInvalidStatus
	}
	key := s.key(sessionID)
	changed := false
	err := s.Locker.WithLock(ctx, key+":lock", 5*time.Second, func(ctx context.Context) error {
		current, err := s.read(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			current = Entry{SessionID: sessionID, Status: StatusOpen}
			if status == StatusOpen {
				changed = true
				current.UpdatedAt = s.clock()
				return s.write(ctx, key, current)
			}
		case err != nil:
			return err
		}
		if !CanTransition(current.Status, status) {
			return nil
		}
		current.Status = status
		current.UpdatedAt = s.clock()
		changed = true
		return s.write(ctx, key, current)
	})
	return changed, err
}

// Get returns the entry for sessionID.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (Entry, error) {
	if s.R == nil {
		return Entry{}, errors.New("ledger: redis client not configured")
	}
	return s.read(ctx, s.key(sessionID))
}

func (s *RedisStore) read(ctx context.Context, key string) (Entry, error) {
	fields, err := s.R.HGetAll(ctx, key).Result()
	if err != nil {
		return Entry{}, err
	}
	if len(fields) == 0 {
		return Entry{}, ErrNotFound
	}
	e := Entry{
		SessionID: fields["session_id"],
		Status:    Status(fields["status"]),
	}
	var parseErr error
	parse := func(name string) int64 {
		v, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil && fields[name] != "" && parseErr == nil {
			parseErr = fmt.Errorf("ledger: field %s: %w", name, err)
		}
		return v
	}
	e.Quantity = parse("quantity")
	e.DonationMinor = parse("donation_minor")
	e.BookTotalMinor = parse("book_total_minor")
	e.AmountTotal = parse("amount_total")
	if unix := parse("updated_at"); unix > 0 {
		e.UpdatedAt = time.Unix(unix, 0).UTC()
	}
	return e, parseErr
}

func (s *RedisStore) write(ctx context.Context, key string, e Entry) error {
	_, err := s.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"session_id":       e.SessionID,
			"quantity":         e.Quantity,
			"donation_minor":   e.DonationMinor,
			"book_total_minor": e.BookTotalMinor,
			"amount_total":     e.AmountTotal,
			"status":           string(e.Status),
			"updated_at":       e.UpdatedAt.Unix(),
		})
		if s.TTL > 0 {
			pipe.Expire(ctx, key, s.TTL)
		}
		return nil
	})
	return err
}

func (s *RedisStore) key(sessionID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return prefix + sessionID
}

func (s *RedisStore) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

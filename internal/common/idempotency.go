package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader carries the client supplied idempotency key.
const IdempotencyHeader = "Idempotency-Key"

type idemKey struct{}

// WithIdempotencyKey stores the request idempotency key on the context.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idemKey{}, key)
}

// IdempotencyKey returns the idempotency key stored by Idem.Middleware, if any.
func IdempotencyKey(ctx context.Context) string {
	if v, ok := ctx.Value(idemKey{}).(string); ok {
		return v
	}
	return ""
}

// Idem provides an Idempotency-Key middleware backed by Redis.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// hashKey keeps raw client keys out of Redis.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency semantics for write endpoints: a key that
// produced a 2xx answer is refused with 409 for TTL. Without a Redis client
// the key is still forwarded on the context.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := WithIdempotencyKey(r.Context(), header)
		r = r.WithContext(ctx)
		if i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := hashKey(header)
		ok, err := i.R.SetNX(ctx, key, "locked", i.ttl()).Result()
		if err != nil {
			commonJSONError(w, err)
			return
		}
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, "{\"error\":\"duplicate request\",\"code\":\"IDEMPOTENT_REPLAY\"}")
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			// Only a successful answer keeps the key; a failed attempt can be
			// resubmitted with the same key. A panic leaves the status at 0.
			release := context.WithoutCancel(ctx)
			if status := ww.Status(); status < 200 || status > 299 {
				_ = i.R.Del(release, key).Err()
				return
			}
			_ = i.R.Expire(release, key, i.ttl()).Err()
		}()
		next.ServeHTTP(ww, r)
	})
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

func commonJSONError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	JSONError(w, http.StatusInternalServerError, CodeInternal, "idempotency store error", map[string]any{"error": err.Error()})
}

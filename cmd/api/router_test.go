package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/preorder-api/internal/checkout"
	"github.com/noah-isme/preorder-api/internal/common"
	"github.com/noah-isme/preorder-api/internal/config"
	"github.com/noah-isme/preorder-api/internal/health"
	"github.com/noah-isme/preorder-api/internal/ledger"
	"github.com/noah-isme/preorder-api/internal/payment"
	"github.com/noah-isme/preorder-api/internal/ratelimit"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadForTests(map[string]string{
		"APP_ENV":                 "development",
		"FRONTEND_URL":            "http://localhost:5173",
		"STRIPE_SECRET_KEY":       "",
		"STRIPE_WEBHOOK_SECRET":   "",
		"LEDGER_BACKEND":          "",
		"REDIS_URL":               "",
		"DATABASE_URL":            "",
		"RATE_LIMIT_CHECKOUT_MAX": "3",
	})
	require.NoError(t, err)
	return cfg
}

func testRouter(t *testing.T, cfg *config.Config, store ledger.Store, rdb *redis.Client) http.Handler {
	t.Helper()
	gateway := payment.Stub{BaseURL: cfg.FrontendURL}
	var limiter ratelimit.Allower = ratelimit.NewMemory()
	if rdb != nil {
		limiter = ratelimit.Limiter{Client: rdb, Prefix: "test:rl:"}
	}
	return newRouter(routerDeps{
		Config: cfg,
		Logger: zerolog.Nop(),
		Checkout: &checkout.Handler{Svc: &checkout.Service{
			Gateway:    gateway,
			Ledger:     store,
			Title:      cfg.BookTitle,
			SuccessURL: cfg.SuccessURL(),
			CancelURL:  cfg.CancelURL(),
			Logger:     zerolog.Nop(),
		}},
		Webhook:     payment.Webhook{AllowUnsigned: !cfg.IsProduction(), Ledger: store, Logger: zerolog.Nop()},
		Health:      health.Handler{Checker: readinessChecker{}},
		Idem:        common.Idem{R: rdb, TTL: time.Hour},
		RateLimiter: limiter,
	})
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPreflightEveryEndpoint(t *testing.T) {
	h := testRouter(t, testConfig(t), ledger.Nop{}, nil)
	for _, path := range []string{"/api/health", "/api/create-checkout-session", "/api/checkout-session", "/api/webhook"} {
		rec := do(h, http.MethodOptions, path, "", map[string]string{
			"Origin":                        "http://localhost:5173",
			"Access-Control-Request-Method": http.MethodPost,
		})
		require.Equalf(t, http.StatusNoContent, rec.Code, "path %s", path)
		require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	}
}

func TestCORSScopedToFrontendOrigin(t *testing.T) {
	h := testRouter(t, testConfig(t), ledger.Nop{}, nil)

	rec := do(h, http.MethodGet, "/api/health", "", map[string]string{"Origin": "http://localhost:5173"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(h, http.MethodGet, "/api/health", "", map[string]string{"Origin": "https://evil.example"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	h := testRouter(t, testConfig(t), ledger.Nop{}, nil)
	cases := map[string]string{
		"/api/create-checkout-session": http.MethodGet,
		"/api/checkout-session":        http.MethodPost,
		"/api/webhook":                 http.MethodGet,
		"/api/health":                  http.MethodDelete,
	}
	for path, method := range cases {
		rec := do(h, method, path, "", nil)
		require.Equalf(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", method, path)
		var body common.ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "Method not allowed", body.Error)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := testRouter(t, testConfig(t), ledger.Nop{}, nil)

	rec := do(h, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	_, err := time.Parse(time.RFC3339, body["timestamp"])
	require.NoError(t, err)

	rec = do(h, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"db":"disabled","redis":"disabled"}`, rec.Body.String())
}

func TestCheckoutFlowWithStubGateway(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	store := ledger.NewRedisStore(rdb, time.Hour)
	h := testRouter(t, cfg, store, rdb)

	rec := do(h, http.MethodPost, "/api/create-checkout-session", `{"quantity":3,"donation":5}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created checkout.SessionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, strings.HasPrefix(created.ID, "cs_stub_"))
	require.Equal(t, "http://localhost:5173/pay/"+created.ID, created.SessionURL)

	entry, err := store.Get(t.Context(), created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), entry.Quantity)
	require.Equal(t, int64(5900), entry.AmountTotal)
	require.Equal(t, ledger.StatusOpen, entry.Status)

	rec = do(h, http.MethodGet, "/api/checkout-session?sessionId="+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), created.ID)

	event := `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"` + created.ID + `","payment_status":"paid"}}}`
	rec = do(h, http.MethodPost, "/api/webhook", event, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"received":true}`, rec.Body.String())

	entry, err = store.Get(t.Context(), created.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusCompleted, entry.Status)
}

func TestCheckoutValidationAndReplay(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := testRouter(t, testConfig(t), ledger.Nop{}, rdb)

	rec := do(h, http.MethodPost, "/api/create-checkout-session", `{"quantity":0}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid quantity. Must be an integer >= 1.")

	headers := map[string]string{common.IdempotencyHeader: "same-key"}
	rec = do(h, http.MethodPost, "/api/create-checkout-session", `{"quantity":1}`, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(h, http.MethodPost, "/api/create-checkout-session", `{"quantity":1}`, headers)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(h, http.MethodPost, "/api/create-checkout-session", `{"quantity":1}`, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestWebhookProductionRejectsUnsigned(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"APP_ENV":               "production",
		"STRIPE_SECRET_KEY":     "sk_live_x",
		"STRIPE_WEBHOOK_SECRET": "",
		"LEDGER_BACKEND":        "",
	})
	require.NoError(t, err)
	h := testRouter(t, cfg, ledger.Nop{}, nil)

	rec := do(h, http.MethodPost, "/api/webhook", `{"type":"checkout.session.completed"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body common.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Error)
}

func TestPprofRequiresBasicAuth(t *testing.T) {
	r := chi.NewRouter()
	r.Mount("/debug", protectPprof(middleware.Profiler(), "ops", "s3cret"))

	rec := do(r, http.MethodGet, "/debug/pprof/cmdline", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil)
	req.SetBasicAuth("ops", "s3cret")
	authed := httptest.NewRecorder()
	r.ServeHTTP(authed, req)
	require.Equal(t, http.StatusOK, authed.Code)
}

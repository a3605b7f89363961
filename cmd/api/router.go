package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/preorder-api/internal/checkout"
	"github.com/noah-isme/preorder-api/internal/common"
	"github.com/noah-isme/preorder-api/internal/config"
	"github.com/noah-isme/preorder-api/internal/health"
	"github.com/noah-isme/preorder-api/internal/obs"
	"github.com/noah-isme/preorder-api/internal/payment"
	"github.com/noah-isme/preorder-api/internal/ratelimit"
	"github.com/noah-isme/preorder-api/internal/security"
)

type routerDeps struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Checkout    *checkout.Handler
	Webhook     payment.Webhook
	Health      health.Handler
	Idem        common.Idem
	RateLimiter ratelimit.Allower
	HTTPMetrics *obs.HTTPMetrics
	Tracing     bool
	Metrics     bool
	Pprof       http.Handler
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeaders,
		EnableHSTS:            cfg.IsProduction(),
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{cfg.FrontendURL},
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type", payment.SignatureHeader, common.IdempotencyHeader},
		MaxAge:             300,
		OptionsPassthrough: true,
	}))
	r.Use(security.Preflight)
	r.MethodNotAllowed(common.MethodNotAllowed)

	if d.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Pprof != nil {
		r.Mount("/debug", d.Pprof)
	}

	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	limit := ratelimit.Handler{
		Limiter: d.RateLimiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP,
			Window: windowOrDefault(cfg.RateLimitWindow),
			Max:    cfg.RateLimitCheckoutMax,
		},
		OnError: func(err error) {
			d.Logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", d.Health.Health)
		api.With(limit.Middleware, d.Idem.Middleware).Post("/create-checkout-session", d.Checkout.CreateSession)
		api.Get("/checkout-session", d.Checkout.GetSession)
		api.Post("/webhook", d.Webhook.Handle)
	})

	return r
}

func windowOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}

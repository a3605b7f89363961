package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/preorder-api/internal/resilience"
)

// Stripe implements Gateway on top of Stripe Checkout.
type Stripe struct {
	api *client.API
}

// NewHTTPClient builds the outbound client used for provider calls: traced,
// guarded by breaker, bounded by timeout.
func NewHTTPClient(timeout time.Duration, breaker *resilience.Breaker) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(resilience.Transport{
			Base:    http.DefaultTransport,
			Breaker: breaker,
		}),
	}
}

// StripeConfig configures the Stripe gateway.
type StripeConfig struct {
	SecretKey  string
	HTTPClient *http.Client
	// APIURL overrides the API base URL. Empty uses the live endpoint.
	APIURL string
	Logger zerolog.Logger
}

// NewStripe returns a Stripe gateway. The SDK's own network retries are
// disabled; a failed call is reported to the buyer.
func NewStripe(cfg StripeConfig) *Stripe {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 80 * time.Second}
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     stripeLogger{logger: cfg.Logger.With().Str("component", "stripe").Logger()},
	}
	if url := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"); url != "" {
		backendCfg.URL = stripe.String(url)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &Stripe{api: api}
}

// Name identifies the provider in logs and metrics.
func (s *Stripe) Name() string { return "stripe" }

// CreateSession opens a payment-mode Checkout Session with inline price data.
func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if len(req.LineItems) == 0 {
		return Session{}, errors.New("at least one line item is required")
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		if len(item.Images) > 0 {
			product.Images = stripe.StringSlice(item.Images)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// GetSession retrieves a Checkout Session with line items and payment intent expanded.
func (s *Stripe) GetSession(ctx context.Context, id string) (json.RawMessage, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("payment_intent")

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, err
	}
	if sess.LastResponse != nil && len(sess.LastResponse.RawJSON) > 0 {
		return json.RawMessage(sess.LastResponse.RawJSON), nil
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return raw, nil
}

// stripeLogger routes SDK logs through zerolog.
type stripeLogger struct {
	logger zerolog.Logger
}

func (l stripeLogger) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }

func (l stripeLogger) Infof(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }

func (l stripeLogger) Warnf(format string, v ...interface{}) { l.logger.Warn().Msgf(format, v...) }

func (l stripeLogger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }

package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/preorder-api/internal/common"
	"github.com/noah-isme/preorder-api/internal/ledger"
	"github.com/noah-isme/preorder-api/internal/obs"
	"github.com/noah-isme/preorder-api/internal/payment"
	"github.com/noah-isme/preorder-api/internal/pricing"
)

// SessionResult is returned to the client after a session is created.
type SessionResult struct {
	SessionURL string `json:"sessionUrl"`
	ID         string `json:"id"`
}

// Service prices orders and opens checkout sessions with the gateway.
type Service struct {
	Gateway    payment.Gateway
	Ledger     ledger.Store
	Title      string
	Images     []string
	SuccessURL string
	CancelURL  string
	Logger     zerolog.Logger
}

// CreateSession prices req and opens a hosted checkout session for it.
// Provider failures are returned as PaymentGatewayError carrying the
// provider's message. The ledger write is best effort.
func (s *Service) CreateSession(ctx context.Context, req OrderRequest) (SessionResult, error) {
	if s.Gateway == nil {
		return SessionResult{}, common.PaymentGatewayError("payment gateway not configured", nil)
	}
	order := pricing.Price(req.Quantity, req.Donation)

	sess, err := s.Gateway.CreateSession(ctx, payment.SessionRequest{
		Currency:       pricing.Currency,
		LineItems:      order.LineItems(s.Title, s.Images...),
		SuccessURL:     s.SuccessURL,
		CancelURL:      s.CancelURL,
		IdempotencyKey: common.IdempotencyKey(ctx),
		Metadata: map[string]string{
			"quantity":         strconv.FormatInt(order.Quantity, 10),
			"donation_minor":   strconv.FormatInt(order.DonationMinorUnits, 10),
			"book_total_minor": strconv.FormatInt(order.BookPriceTotal, 10),
		},
	})
	if err != nil {
		countSession(s.Gateway.Name(), "error")
		s.loggerFor(ctx).Error().Err(err).Int64("quantity", order.Quantity).Msg("create checkout session")
		return SessionResult{}, common.PaymentGatewayError(payment.ErrorMessage(err), err)
	}
	countSession(s.Gateway.Name(), "ok")
	if obs.CheckoutQuantityTotal != nil {
		obs.CheckoutQuantityTotal.Add(float64(order.Quantity))
	}

	if s.Ledger != nil {
		entry := ledger.Entry{
			SessionID:      sess.ID,
			Quantity:       order.Quantity,
			DonationMinor:  order.DonationMinorUnits,
			BookTotalMinor: order.BookPriceTotal,
			AmountTotal:    order.Total(),
			Status:         ledger.StatusOpen,
		}
		if err := s.Ledger.Record(ctx, entry); err != nil {
			s.loggerFor(ctx).Error().Err(err).Str("session_id", sess.ID).Str("backend", s.Ledger.Backend()).Msg("record checkout session")
		}
	}

	s.loggerFor(ctx).Info().
		Str("session_id", sess.ID).
		Int64("quantity", order.Quantity).
		Int64("amount_total", order.Total()).
		Msg("checkout session created")
	return SessionResult{SessionURL: sess.URL, ID: sess.ID}, nil
}

// GetSession fetches a session by id with line items and payment intent
// expanded, returning the provider document unchanged.
func (s *Service) GetSession(ctx context.Context, id string) (json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, common.InvalidInput("Missing sessionId query parameter")
	}
	if s.Gateway == nil {
		return nil, common.PaymentGatewayError("payment gateway not configured", nil)
	}
	raw, err := s.Gateway.GetSession(ctx, id)
	if err != nil {
		s.loggerFor(ctx).Error().Err(err).Str("session_id", id).Msg("retrieve checkout session")
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, common.PaymentGatewayError(payment.ErrorMessage(err), err)
	}
	return raw, nil
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}

func countSession(provider, result string) {
	if obs.CheckoutSessionTotal != nil {
		obs.CheckoutSessionTotal.WithLabelValues(provider, result).Inc()
	}
}

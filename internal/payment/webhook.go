package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/noah-isme/preorder-api/internal/common"
	"github.com/noah-isme/preorder-api/internal/ledger"
	"github.com/noah-isme/preorder-api/internal/obs"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "Stripe-Signature"

// Event types the receiver acts on.
const (
	EventSessionCompleted      = "checkout.session.completed"
	EventSessionExpired        = "checkout.session.expired"
	EventSessionAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventSessionAsyncFailed    = "checkout.session.async_payment_failed"
	EventIntentSucceeded       = "payment_intent.succeeded"
	EventIntentFailed          = "payment_intent.payment_failed"
)

const maxWebhookBody = 64 << 10

// Webhook verifies and dispatches provider events.
type Webhook struct {
	// Secret is the endpoint signing secret. When empty and AllowUnsigned is
	// set, bodies are parsed without authentication.
	Secret        string
	AllowUnsigned bool
	Tolerance     time.Duration
	Ledger        ledger.Store
	Logger        zerolog.Logger
}

// Handle receives one delivery and acknowledges it with {received: true}.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		h.reject(w, r, common.WebhookVerificationError("Could not read webhook body", err))
		return
	}
	if len(body) > maxWebhookBody {
		h.reject(w, r, common.WebhookVerificationError("Webhook payload too large", nil))
		return
	}

	event, err := h.Verify(body, r.Header.Get(SignatureHeader))
	if err != nil {
		h.reject(w, r, err)
		return
	}

	h.Dispatch(r.Context(), event)
	common.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// Verify authenticates body against the signature header and decodes the event.
func (h Webhook) Verify(body []byte, signature string) (stripe.Event, error) {
	if strings.TrimSpace(h.Secret) == "" {
		if !h.AllowUnsigned {
			return stripe.Event{}, common.WebhookVerificationError("Webhook signing secret not configured", nil)
		}
		if !json.Valid(body) {
			return stripe.Event{}, common.WebhookVerificationError("Webhook payload is not valid JSON", nil)
		}
		// Well-formed JSON that does not look like an event is acknowledged
		// as an unhandled delivery.
		var event stripe.Event
		if err := json.Unmarshal(body, &event); err != nil {
			return stripe.Event{}, nil
		}
		return event, nil
	}

	tolerance := h.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	event, err := webhook.ConstructEventWithOptions(body, signature, h.Secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, common.WebhookVerificationError(err.Error(), err)
	}
	return event, nil
}

// Dispatch logs event and applies its effect on the ledger. Ledger failures
// are logged only; the delivery is still acknowledged.
func (h Webhook) Dispatch(ctx context.Context, event stripe.Event) {
	eventType := string(event.Type)
	objectID := eventObjectString(event, "id")
	logger := h.loggerFor(ctx).With().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("object_id", objectID).
		Logger()

	var target ledger.Status
	switch eventType {
	case EventSessionCompleted:
		paymentStatus := eventObjectString(event, "payment_status")
		logger.Info().Str("payment_status", paymentStatus).Msg("checkout session completed")
		if paymentStatus == "paid" || paymentStatus == "no_payment_required" {
			target = ledger.StatusCompleted
		}
	case EventSessionAsyncSucceeded:
		logger.Info().Msg("checkout session async payment succeeded")
		target = ledger.StatusCompleted
	case EventSessionAsyncFailed:
		logger.Warn().Msg("checkout session async payment failed")
		target = ledger.StatusFailed
	case EventSessionExpired:
		logger.Info().Msg("checkout session expired")
		target = ledger.StatusExpired
	case EventIntentSucceeded:
		logger.Info().Msg("payment succeeded")
	case EventIntentFailed:
		logger.Warn().Str("failure_message", intentFailureMessage(event)).Msg("payment failed")
	default:
		logger.Info().Msg("unhandled event type")
		countWebhook("other", "ignored")
		return
	}

	result := "handled"
	if target != "" && objectID != "" && h.Ledger != nil {
		changed, err := h.Ledger.Transition(ctx, objectID, target)
		switch {
		case err != nil:
			result = "ledger_error"
			logger.Error().Err(err).Str("backend", h.Ledger.Backend()).Msg("ledger transition failed")
		case !changed:
			result = "duplicate"
			logger.Debug().Str("status", string(target)).Msg("ledger already up to date")
		default:
			logger.Debug().Str("status", string(target)).Msg("ledger updated")
		}
	}
	countWebhook(eventType, result)
}

func (h Webhook) reject(w http.ResponseWriter, r *http.Request, err error) {
	h.loggerFor(r.Context()).Warn().Err(err).Msg("webhook rejected")
	countWebhook("unknown", "rejected")
	common.WriteError(w, err)
}

func (h Webhook) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.Logger
}

func countWebhook(event, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(event, result).Inc()
	}
}

func eventObjectString(event stripe.Event, field string) string {
	if event.Data == nil || event.Data.Object == nil {
		return ""
	}
	if v, ok := event.Data.Object[field].(string); ok {
		return v
	}
	return ""
}

func intentFailureMessage(event stripe.Event) string {
	if event.Data == nil || event.Data.Object == nil {
		return ""
	}
	lastErr, ok := event.Data.Object["last_payment_error"].(map[string]interface{})
	if !ok {
		return ""
	}
	msg, _ := lastErr["message"].(string)
	return msg
}

// IsVerificationError reports whether err came from webhook verification.
func IsVerificationError(err error) bool {
	var appErr *common.AppError
	return errors.As(err, &appErr) && appErr.Code == common.CodeWebhookVerification
}

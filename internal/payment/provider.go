package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"

	"github.com/noah-isme/preorder-api/internal/pricing"
)

// SessionRequest captures what the provider needs to open a hosted checkout session.
type SessionRequest struct {
	Currency       string
	LineItems      []pricing.LineItem
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	Metadata       map[string]string
}

// Session is the provider's answer to a session creation request.
type Session struct {
	ID  string
	URL string
}

// Gateway abstracts the hosted checkout operations required from the payment provider.
type Gateway interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	// GetSession returns the provider's session document with line items and
	// payment intent expanded, exactly as the provider encoded it.
	GetSession(ctx context.Context, id string) (json.RawMessage, error)
}

// ErrorMessage extracts the human readable message from a provider error so
// it can be passed to the client verbatim.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && strings.TrimSpace(stripeErr.Msg) != "" {
		return stripeErr.Msg
	}
	return err.Error()
}

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stub is an offline Gateway for local development when no provider key is
// configured. It synthesises deterministic-looking sessions without any
// network call and keeps no state.
type Stub struct {
	BaseURL string
}

// Name identifies the provider in logs and metrics.
func (Stub) Name() string { return "stub" }

// CreateSession returns a fresh session id and a redirect URL on BaseURL.
func (s Stub) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	if len(req.LineItems) == 0 {
		return Session{}, errors.New("at least one line item is required")
	}
	id := "cs_stub_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Session{ID: id, URL: s.host() + "/pay/" + id}, nil
}

// GetSession returns a minimal open session document for id.
func (s Stub) GetSession(_ context.Context, id string) (json.RawMessage, error) {
	if !strings.HasPrefix(id, "cs_stub_") {
		return nil, errors.New("No such checkout.session: '" + id + "'")
	}
	doc := map[string]any{
		"id":             id,
		"object":         "checkout.session",
		"livemode":       false,
		"mode":           "payment",
		"status":         "open",
		"payment_status": "unpaid",
		"url":            s.host() + "/pay/" + id,
		"created":        time.Now().Unix(),
		"line_items":     map[string]any{"object": "list", "data": []any{}, "has_more": false},
		"payment_intent": nil,
	}
	return json.Marshal(doc)
}

func (s Stub) host() string {
	host := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if host == "" {
		return "https://checkout.stub.local"
	}
	return host
}

package resilience

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport is an http.RoundTripper that consults a Breaker before each call
// and reports the outcome afterwards. It never retries: a failed call is
// returned to the caller as-is.
type Transport struct {
	Base    http.RoundTripper
	Breaker *Breaker
}

// RoundTrip implements http.RoundTripper. Responses with a 5xx status count
// as failures; 4xx responses are the caller's problem and count as success.
func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Breaker == nil {
		return base.RoundTrip(req)
	}
	ctx := req.Context()
	if !t.Breaker.Allow(ctx) {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, ErrOpenCircuit)
	}
	resp, err := base.RoundTrip(req)
	t.Breaker.Report(ctx, err == nil && resp.StatusCode < http.StatusInternalServerError)
	return resp, err
}

// IsOpenCircuit reports whether err was caused by an open breaker.
func IsOpenCircuit(err error) bool {
	return errors.Is(err, ErrOpenCircuit)
}

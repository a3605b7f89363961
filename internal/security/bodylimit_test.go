package security

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func serveLimited(t *testing.T, max int64, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	handler := BodyLimit{Max: max}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), r.ContentLength)
		seen = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, seen
}

func TestBodyLimitPassesOrderPayload(t *testing.T) {
	body := `{"quantity":3,"donation":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/create-checkout-session", strings.NewReader(body))

	rr, seen := serveLimited(t, 64, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, body, seen)
}

func TestBodyLimitRejectsOversizedStream(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"type":"checkout.session.completed"}`))
	req.ContentLength = -1

	rr, seen := serveLimited(t, 8, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Empty(t, seen)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "PAYLOAD_TOO_LARGE", body["code"])
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader("{}"))
	req.ContentLength = 4096

	rr, _ := serveLimited(t, 1024, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestBodyLimitDisabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(strings.Repeat("x", 100)))

	rr, seen := serveLimited(t, 0, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, seen, 100)
}

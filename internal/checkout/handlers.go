package checkout

import (
	"io"
	"net/http"

	"github.com/noah-isme/preorder-api/internal/common"
)

// Handler exposes the checkout endpoints.
type Handler struct {
	Svc *Service
}

// CreateSession handles POST /api/create-checkout-session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.WriteError(w, common.InvalidInput("could not read request body"))
		return
	}
	req, err := ParseOrderRequest(body)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.CreateSession(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, out)
}

// GetSession handles GET /api/checkout-session?sessionId=.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	raw, err := h.Svc.GetSession(r.Context(), r.URL.Query().Get("sessionId"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.RawJSON(w, http.StatusOK, raw)
}

package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/menjalnica/internal/exchange"
	"github.com/erazemk/menjalnica/internal/model"
)

// ExchangesHandler handles trade negotiation endpoints on top of the
// exchange engine.
type ExchangesHandler struct {
	Engine *exchange.Engine
}

type proposeRequest struct {
	OfferedItemID   int64 `json:"offered_item_id"`
	RequestedItemID int64 `json:"requested_item_id"`
}

type resolveRequest struct {
	Accept bool `json:"accept"`
}

// exchangeErrorStatus maps the engine's validation failures to HTTP
// status codes. Unknown errors are storage failures.
func exchangeErrorStatus(err error) int {
	switch {
	case errors.Is(err, exchange.ErrItemNotFound),
		errors.Is(err, exchange.ErrExchangeNotFound):
		return http.StatusNotFound
	case errors.Is(err, exchange.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, exchange.ErrItemAlreadyPending),
		errors.Is(err, exchange.ErrAlreadyResolved),
		errors.Is(err, exchange.ErrOwnershipChanged):
		return http.StatusConflict
	case errors.Is(err, exchange.ErrSelfTrade),
		errors.Is(err, exchange.ErrItemNotPublic),
		errors.Is(err, exchange.ErrNotOwner):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *ExchangesHandler) writeEngineError(w http.ResponseWriter, err error) {
	status := exchangeErrorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("exchange engine failure", "error", err)
		jsonError(w, status, "internal error")
		return
	}
	jsonError(w, status, err.Error())
}

// Propose handles POST /api/exchanges. The authenticated user offers one
// of their stamps for another user's stamp.
func (h *ExchangesHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OfferedItemID <= 0 || req.RequestedItemID <= 0 {
		jsonError(w, http.StatusBadRequest, "offered_item_id and requested_item_id are required")
		return
	}

	claims := GetClaims(r.Context())
	ex, err := h.Engine.Propose(r.Context(), claims.UserID, req.OfferedItemID, req.RequestedItemID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, ex)
}

// Resolve handles POST /api/exchanges/{id}/resolve. Only the receiver
// of the exchange may answer it, exactly once.
func (h *ExchangesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid exchange id")
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	ex, err := h.Engine.Resolve(r.Context(), id, claims.UserID, req.Accept)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, ex)
}

// ListPending handles GET /api/exchanges/pending: the authenticated
// user's unanswered incoming proposals, oldest first.
func (h *ExchangesHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	pending, err := h.Engine.ListPending(r.Context(), claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list pending exchanges")
		return
	}
	if pending == nil {
		pending = []model.PendingExchange{}
	}
	jsonResponse(w, http.StatusOK, pending)
}

// History handles GET /api/exchanges: every exchange the user took part
// in, resolved or not.
func (h *ExchangesHandler) History(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	exchanges, err := h.Engine.History(r.Context(), claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}
	if exchanges == nil {
		exchanges = []model.Exchange{}
	}
	jsonResponse(w, http.StatusOK, exchanges)
}

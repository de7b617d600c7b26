package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/menjalnica/internal/model"
	"github.com/erazemk/menjalnica/internal/store"
)

// MessagesHandler exposes the notification inbox.
type MessagesHandler struct {
	DB *sql.DB
}

// List handles GET /api/messages.
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	messages, err := store.ListMessagesForUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	jsonResponse(w, http.StatusOK, messages)
}

// UnseenCount handles GET /api/messages/unseen.
func (h *MessagesHandler) UnseenCount(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	count, err := store.CountUnseenMessages(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to count messages")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"unseen": count})
}

// MarkSeen handles PUT /api/messages/{id}/seen.
func (h *MessagesHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.MarkMessageSeen(r.Context(), h.DB, id, claims.UserID); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to mark message seen")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "marked seen"})
}

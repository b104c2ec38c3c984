package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/smpg2030-sys/trailmindrise/internal/services/auth"
	payoutssvc "github.com/smpg2030-sys/trailmindrise/internal/services/payouts"
	"github.com/smpg2030-sys/trailmindrise/internal/transport/http/dto"
	httperrors "github.com/smpg2030-sys/trailmindrise/internal/transport/http/errors"
)

type SessionsHandler struct {
	payouts *payoutssvc.Service
}

func NewSessionsHandler(payouts *payoutssvc.Service) *SessionsHandler {
	return &SessionsHandler{payouts: payouts}
}

func (h *SessionsHandler) EndRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.payouts == nil {
		writeInternal(w, "PAYOUTS_SERVICE_UNAVAILABLE", "payouts service is unavailable")
		return
	}

	room, err := h.payouts.EndRoom(r.Context(), chi.URLParam(r, "roomID"), identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, payoutssvc.ErrRoomNotFound):
			writeNotFound(w, "ROOM_NOT_FOUND", "room not found")
		case errors.Is(err, payoutssvc.ErrNotHost):
			writeForbidden(w, "NOT_HOST", "only the host can end the room")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to end room")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RoomToResponse(room))
}

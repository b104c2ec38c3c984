package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
	authsvc "github.com/smpg2030-sys/trailmindrise/internal/services/auth"
	postssvc "github.com/smpg2030-sys/trailmindrise/internal/services/posts"
	"github.com/smpg2030-sys/trailmindrise/internal/transport/http/dto"
	httperrors "github.com/smpg2030-sys/trailmindrise/internal/transport/http/errors"
)

type queueInspector interface {
	PendingCount(ctx context.Context) (int64, error)
}

type AdminHandler struct {
	posts *postssvc.Service
	queue queueInspector
}

func NewAdminHandler(posts *postssvc.Service) *AdminHandler {
	return &AdminHandler{posts: posts}
}

// AttachQueueInspector adds the deferred queue depth to the stats response.
func (h *AdminHandler) AttachQueueInspector(queue queueInspector) {
	h.queue = queue
}

func (h *AdminHandler) Override(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	if h.posts == nil {
		writeInternal(w, "POSTS_SERVICE_UNAVAILABLE", "posts service is unavailable")
		return
	}

	var req dto.AdminOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "BAD_REQUEST", "invalid request body")
		return
	}

	post, err := h.posts.AdminOverride(r.Context(), chi.URLParam(r, "postID"),
		identity.UserID, enums.ModerationStatus(req.Decision), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, postssvc.ErrInvalidDecision):
			writeBadRequest(w, "INVALID_DECISION", "decision must be approved or rejected")
		case errors.Is(err, postssvc.ErrPostNotFound):
			writeNotFound(w, "POST_NOT_FOUND", "post not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to apply override")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PostToStatusResponse(post))
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if h.posts == nil {
		writeInternal(w, "POSTS_SERVICE_UNAVAILABLE", "posts service is unavailable")
		return
	}

	counts, err := h.posts.Stats(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load stats")
		return
	}

	resp := dto.AdminStatsResponse{
		PendingPosts:   counts.Pending,
		FlaggedPosts:   counts.Flagged,
		PublishedPosts: counts.Published,
	}
	if h.queue != nil {
		if queued, err := h.queue.PendingCount(r.Context()); err == nil {
			resp.QueuedTasks = queued
		}
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, false
	}
	if !identity.IsAdmin() {
		writeForbidden(w, "UNAUTHORIZED", "admin role required")
		return authsvc.Identity{}, false
	}
	return identity, true
}

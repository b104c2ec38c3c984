package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/smpg2030-sys/trailmindrise/internal/services/auth"
	postssvc "github.com/smpg2030-sys/trailmindrise/internal/services/posts"
	"github.com/smpg2030-sys/trailmindrise/internal/transport/http/dto"
	httperrors "github.com/smpg2030-sys/trailmindrise/internal/transport/http/errors"
)

type PostsHandler struct {
	service *postssvc.Service
}

func NewPostsHandler(service *postssvc.Service) *PostsHandler {
	return &PostsHandler{service: service}
}

func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "POSTS_SERVICE_UNAVAILABLE", "posts service is unavailable")
		return
	}

	var req dto.CreatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "BAD_REQUEST", "invalid request body")
		return
	}

	post, err := h.service.Submit(r.Context(), postssvc.SubmitInput{
		AuthorID: identity.UserID,
		Body:     req.Body,
		ImageRef: req.ImageRef,
		VideoRef: req.VideoRef,
	})
	if err != nil {
		if errors.Is(err, postssvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", err.Error())
			return
		}
		if tooFast, ok := postssvc.IsTooFast(err); ok {
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "TOO_MANY_POSTS",
				Message:       "post submission rate limit reached",
				RetryAfterSec: tooFast.RetryAfterSec,
			})
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to submit post")
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.PostToResponse(post))
}

func (h *PostsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "POSTS_SERVICE_UNAVAILABLE", "posts service is unavailable")
		return
	}

	posts, err := h.service.ListMine(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list posts")
		return
	}

	out := make([]dto.PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, dto.PostToResponse(p))
	}
	httperrors.Write(w, http.StatusOK, dto.PostListResponse{Posts: out})
}

func (h *PostsHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "POSTS_SERVICE_UNAVAILABLE", "posts service is unavailable")
		return
	}

	post, err := h.service.Status(r.Context(), chi.URLParam(r, "postID"), identity.UserID)
	if err != nil {
		if errors.Is(err, postssvc.ErrPostNotFound) {
			writeNotFound(w, "POST_NOT_FOUND", "post not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load post status")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PostToStatusResponse(post))
}

func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "POSTS_SERVICE_UNAVAILABLE", "posts service is unavailable")
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "postID"), identity.UserID, identity.IsAdmin()); err != nil {
		if errors.Is(err, postssvc.ErrPostNotFound) {
			writeNotFound(w, "POST_NOT_FOUND", "post not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to delete post")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

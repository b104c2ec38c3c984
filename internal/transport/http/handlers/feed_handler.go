package handlers

import (
	"net/http"
	"strconv"

	feedsvc "github.com/smpg2030-sys/trailmindrise/internal/services/feed"
	"github.com/smpg2030-sys/trailmindrise/internal/transport/http/dto"
	httperrors "github.com/smpg2030-sys/trailmindrise/internal/transport/http/errors"
)

type FeedHandler struct {
	service *feedsvc.Service
}

func NewFeedHandler(service *feedsvc.Service) *FeedHandler {
	return &FeedHandler{service: service}
}

func (h *FeedHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "FEED_SERVICE_UNAVAILABLE", "feed service is unavailable")
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	items, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load feed")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.FeedToResponse(items))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

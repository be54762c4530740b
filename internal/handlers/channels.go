package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// ChannelHandler serves the derived channel-stats and watch-history views.
type ChannelHandler struct {
	Channels ChannelViews
}

// ChannelInfo handles GET /api/v1/users/channel-info/{username} requests.
func (h ChannelHandler) ChannelInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Channels == nil {
		logger.Error("channel views unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "channel services unavailable")
		return
	}

	username := strings.TrimSpace(strings.ToLower(r.PathValue("username")))
	if username == "" {
		respondError(ctx, w, http.StatusBadRequest, "channel username is required")
		return
	}

	viewerID := ""
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		viewerID = identity.UserID
	}

	profile, err := h.Channels.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "channel info could not be found")
			return
		}
		logger.Error("channel profile failed", "error", err, "username", username)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load channel info")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"channel": profile}, "user channel info fetched successfully")
}

// WatchHistory handles GET /api/v1/users/watch-history requests.
func (h ChannelHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.Channels == nil {
		logger.Error("channel views unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "channel services unavailable")
		return
	}

	entries, err := h.Channels.WatchHistory(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return
		}
		logger.Error("watch history failed", "error", err, "userId", identity.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load watch history")
		return
	}

	if entries == nil {
		entries = []models.WatchHistoryEntry{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"watchHistory": entries}, "user watch history has been fetched successfully")
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// UserHandler implements the profile and account maintenance endpoints. All
// of them run behind the auth gate.
type UserHandler struct {
	Users          UserStore
	Assets         AssetStorage
	BcryptCost     int
	MaxUploadBytes int64
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateInfoRequest struct {
	FullName string `json:"fullName"`
}

// Profile handles GET /api/v1/users/profile requests.
func (h UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
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

	user, err := h.Users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user does not exist")
			return
		}
		logger.Error("profile lookup failed", "error", err, "userId", identity.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": user.Summary()}, "user profile is fetched successfully")
}

// ChangePassword handles PATCH /api/v1/users/reset-password requests. The old
// password must verify before the new one is accepted.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
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

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid change password payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.NewPassword == "" {
		respondError(ctx, w, http.StatusBadRequest, "new password field is required")
		return
	}
	if len(req.NewPassword) < 8 {
		respondError(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	user, err := h.Users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user does not exist")
			return
		}
		logger.Error("change password lookup failed", "error", err, "userId", identity.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "unable to change password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		logger.Warn("change password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "entered wrong password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.bcryptCost())
	if err != nil {
		logger.Error("change password failed to hash", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		logger.Error("change password persist failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to change password")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{}, "password changed successfully")
}

// UpdateInfo handles PATCH /api/v1/users/update-info requests.
func (h UserHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
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

	var req updateInfoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid update info payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" {
		respondError(ctx, w, http.StatusBadRequest, "full name is required")
		return
	}

	user, err := h.Users.UpdateFullName(ctx, identity.UserID, req.FullName)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user does not exist")
			return
		}
		logger.Error("update info failed", "error", err, "userId", identity.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": user.Summary()}, "full name updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/update-avatar requests.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateAsset(w, r, "avatar", "avatars",
		func(u models.User) string { return u.Avatar },
		h.Users.UpdateAvatar,
		"avatar file updated successfully")
}

// UpdateCoverImage handles PATCH /api/v1/users/update-coverImage requests.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateAsset(w, r, "coverImage", "covers",
		func(u models.User) string { return u.CoverImage },
		h.Users.UpdateCoverImage,
		"cover image file updated successfully")
}

// updateAsset uploads the new asset, persists its address, and only then
// deletes the replaced one, so a failure at any step never orphans the
// current profile image.
func (h UserHandler) updateAsset(
	w http.ResponseWriter,
	r *http.Request,
	field, prefix string,
	current func(models.User) string,
	persist func(ctx context.Context, id, location string) (models.User, error),
	message string,
) {
	if r.Method != http.MethodPatch {
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

	if h.Assets == nil {
		logger.Error("asset storage unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "upload services unavailable")
		return
	}

	file, header, err := h.formFile(w, r, field)
	if err != nil {
		logger.Warn("missing upload file", "field", field, "error", err)
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("new %s file is required", field))
		return
	}
	defer file.Close()

	before, err := h.Users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user does not exist")
			return
		}
		logger.Error("asset update lookup failed", "error", err, "userId", identity.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update asset")
		return
	}

	key := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), filepath.Ext(header.Filename))
	location, err := h.Assets.Save(ctx, key, file)
	if err != nil {
		logger.Error("asset upload failed", "error", err, "key", key)
		respondError(ctx, w, http.StatusInternalServerError, "failed to upload asset")
		return
	}

	user, err := persist(ctx, identity.UserID, location)
	if err != nil {
		logger.Error("asset persist failed", "error", err, "userId", identity.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update asset")
		return
	}

	if old := current(before); old != "" && old != location {
		if err := h.Assets.Delete(ctx, old); err != nil {
			// The new asset is already live; losing the old object is a
			// storage leak, not a request failure.
			logger.Warn("failed to delete replaced asset", "error", err, "location", old)
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": user.Summary()}, message)
}

func (h UserHandler) formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = 8 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, nil, err
	}
	return r.FormFile(field)
}

func (h UserHandler) bcryptCost() int {
	if h.BcryptCost > 0 {
		return h.BcryptCost
	}
	return bcrypt.DefaultCost
}

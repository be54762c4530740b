package handlers

import (
	"context"
	"io"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateFullName(ctx context.Context, id, fullName string) (models.User, error)
	UpdateAvatar(ctx context.Context, id, avatar string) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, coverImage string) (models.User, error)
}

// TokenManager issues, verifies, rotates, and revokes token pairs.
type TokenManager interface {
	Issue(ctx context.Context, user models.User) (models.TokenPair, error)
	VerifyAccess(token string) (auth.Claims, error)
	Rotate(ctx context.Context, refreshToken string) (models.TokenPair, auth.Claims, error)
	Revoke(ctx context.Context, userID string) error
}

// ChannelViews computes the derived channel-stats and watch-history views.
type ChannelViews interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}

// AssetStorage persists uploaded avatar and cover-image assets.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

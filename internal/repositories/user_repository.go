package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateFullName(ctx context.Context, id, fullName string) (models.User, error)
	UpdateAvatar(ctx context.Context, id, avatar string) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, coverImage string) (models.User, error)
}

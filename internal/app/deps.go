package app

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	credentials := repositories.NewPostgresCredentialStore(pool)
	tokens := auth.NewManager(
		cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
		credentials,
	)

	assets, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	return handlers.Dependencies{
		Users:             repositories.NewPostgresUserRepository(pool),
		Tokens:            tokens,
		Channels:          repositories.NewPostgresChannelRepository(pool),
		Assets:            assets,
		CredentialLimiter: middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		BcryptCost:        cfg.BcryptCost,
		MaxUploadBytes:    cfg.MaxUploadBytes,
	}, nil
}

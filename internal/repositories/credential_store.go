package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresCredentialStore persists refresh-token state on the user row for
// the token service.
type PostgresCredentialStore struct {
	pool  db.Pool
	users *PostgresUserRepository
}

// NewPostgresCredentialStore constructs a credential store backed by PostgreSQL.
func NewPostgresCredentialStore(pool db.Pool) *PostgresCredentialStore {
	return &PostgresCredentialStore{pool: pool, users: NewPostgresUserRepository(pool)}
}

// FindUser loads the user referenced by a token claim.
func (s *PostgresCredentialStore) FindUser(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, auth.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// SetRefreshToken overwrites the stored refresh-token value unconditionally.
// Used at login, where no prior value is expected to survive.
func (s *PostgresCredentialStore) SetRefreshToken(ctx context.Context, userID, token string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = $2, updated_at = now()
        WHERE id = $1
    `, userID, token)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}

	return nil
}

// SwapRefreshToken replaces the stored refresh token only if it still equals
// the presented one. Two rotations racing on the same user see exactly one
// swap succeed.
func (s *PostgresCredentialStore) SwapRefreshToken(ctx context.Context, userID, current, next string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = $3, updated_at = now()
        WHERE id = $1 AND refresh_token = $2
    `, userID, current, next)
	if err != nil {
		return fmt.Errorf("swap refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrTokenMismatch
	}

	return nil
}

// ClearRefreshToken removes the stored value, invalidating all outstanding
// refresh tokens for the user.
func (s *PostgresCredentialStore) ClearRefreshToken(ctx context.Context, userID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = NULL, updated_at = now()
        WHERE id = $1
    `, userID)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}

	return nil
}

var _ auth.CredentialStore = (*PostgresCredentialStore)(nil)

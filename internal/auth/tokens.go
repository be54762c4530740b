package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrTokenExpired indicates a token whose signature is valid but whose
	// expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates a malformed, tampered, or unknown token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenMismatch indicates a refresh token that verified but no longer
	// matches the value stored on the user record.
	ErrTokenMismatch = errors.New("refresh token does not match stored value")
	// ErrUserNotFound indicates the credential store has no record for the id.
	ErrUserNotFound = errors.New("user not found")
)

// CredentialStore is the slice of user persistence the token service needs.
// Implementations return ErrUserNotFound when the id resolves to nothing and
// ErrTokenMismatch when a swap finds a different stored value.
type CredentialStore interface {
	FindUser(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
	SwapRefreshToken(ctx context.Context, userID, current, next string) error
	ClearRefreshToken(ctx context.Context, userID string) error
}

// Claims is the decoded identity carried by a verified token. Username and
// Email are empty when decoded from a refresh token.
type Claims struct {
	UserID   string
	Username string
	Email    string
}

type accessClaims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Manager issues, verifies, and rotates signed token pairs against an
// injected credential store.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	users CredentialStore
	now   func() time.Time
}

// NewManager constructs a Manager signing tokens with the provided secrets
// and TTLs. Access and refresh tokens use independent secrets so one kind can
// never verify as the other.
func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, users CredentialStore) *Manager {
	if users == nil {
		panic("auth: credential store must not be nil")
	}
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		users:         users,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Issue signs a new token pair for the user and persists the refresh token
// value onto the user record, overwriting any prior value.
func (m *Manager) Issue(ctx context.Context, user models.User) (models.TokenPair, error) {
	if user.ID == "" {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	pair, err := m.sign(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := m.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return pair, nil
}

// VerifyAccess checks the signature and expiry of an access token and returns
// its claims.
func (m *Manager) VerifyAccess(token string) (Claims, error) {
	parsed, err := parseToken(token, &accessClaims{}, m.accessSecret)
	if err != nil {
		return Claims{}, err
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || claims.ID == "" {
		return Claims{}, ErrTokenInvalid
	}

	return Claims{UserID: claims.ID, Username: claims.Username, Email: claims.Email}, nil
}

// VerifyRefresh checks the signature and expiry of a refresh token and
// returns its claims. Whether the token is still the one stored on the user
// record is decided during rotation, not here.
func (m *Manager) VerifyRefresh(token string) (Claims, error) {
	parsed, err := parseToken(token, &refreshClaims{}, m.refreshSecret)
	if err != nil {
		return Claims{}, err
	}

	claims, ok := parsed.Claims.(*refreshClaims)
	if !ok || claims.ID == "" {
		return Claims{}, ErrTokenInvalid
	}

	return Claims{UserID: claims.ID}, nil
}

// Rotate exchanges a currently valid refresh token for a fresh pair. The new
// refresh token replaces the stored value with a compare-and-swap against the
// presented one, so a token that was already rotated away (or revoked by
// logout) fails with ErrTokenMismatch instead of minting a second live pair.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (models.TokenPair, Claims, error) {
	claims, err := m.VerifyRefresh(refreshToken)
	if err != nil {
		return models.TokenPair{}, Claims{}, err
	}

	user, err := m.users.FindUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.TokenPair{}, Claims{}, ErrTokenInvalid
		}
		return models.TokenPair{}, Claims{}, fmt.Errorf("load user %s: %w", claims.UserID, err)
	}

	pair, err := m.sign(user)
	if err != nil {
		return models.TokenPair{}, Claims{}, err
	}

	if err := m.users.SwapRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, ErrTokenMismatch) {
			return models.TokenPair{}, Claims{}, ErrTokenMismatch
		}
		return models.TokenPair{}, Claims{}, fmt.Errorf("persist rotated refresh token: %w", err)
	}

	identity := Claims{UserID: user.ID, Username: user.Username, Email: user.Email}
	return pair, identity, nil
}

// Revoke clears the stored refresh-token value, invalidating every
// outstanding refresh token for the user. Already-issued access tokens stay
// valid until their own expiry.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id must be provided")
	}
	if err := m.users.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (m *Manager) sign(user models.User) (models.TokenPair, error) {
	now := m.now()
	accessExpiry := now.Add(m.accessTTL)
	refreshExpiry := now.Add(m.refreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	signedAccess, err := access.SignedString(m.accessSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		ID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	signedRefresh, err := refresh.SignedString(m.refreshSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      signedAccess,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     signedRefresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// WithNowFunc overrides the time source. Useful for tests.
func (m *Manager) WithNowFunc(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

func parseToken(token string, claims jwt.Claims, secret []byte) (*jwt.Token, error) {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return parsed, nil
}

package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
)

// AuthGate decides, per request, whether the presented cookies authenticate
// an identity. A verifying access token admits the request directly; failing
// that, a valid refresh token is rotated and both cookies are rewritten.
// Rejection short-circuits before the protected handler runs.
type AuthGate struct {
	Tokens TokenManager
}

// Protect wraps a handler so it only executes for authenticated requests.
func (g AuthGate) Protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		if g.Tokens == nil {
			logger.Error("token manager unavailable")
			respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
			return
		}

		accessToken := cookieValue(r, accessCookieName)
		refreshToken := cookieValue(r, refreshCookieName)

		if accessToken == "" && refreshToken == "" {
			respondError(ctx, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if accessToken != "" {
			claims, err := g.Tokens.VerifyAccess(accessToken)
			if err == nil {
				identity := auth.Identity{UserID: claims.UserID, Username: claims.Username, Email: claims.Email}
				next(w, r.WithContext(auth.WithIdentity(ctx, identity)))
				return
			}
			logger.Debug("access token rejected", "error", err)
		}

		if refreshToken == "" {
			respondError(ctx, w, http.StatusUnauthorized, "tokens expired, please log in again")
			return
		}

		pair, claims, err := g.Tokens.Rotate(ctx, refreshToken)
		if err != nil {
			logger.Warn("refresh token rejected", "error", err)
			respondError(ctx, w, http.StatusUnauthorized, "tokens expired, please log in again")
			return
		}

		setAuthCookies(w, pair)

		identity := auth.Identity{UserID: claims.UserID, Username: claims.Username, Email: claims.Email}
		next(w, r.WithContext(auth.WithIdentity(ctx, identity)))
	}
}

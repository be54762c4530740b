package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	gate := AuthGate{Tokens: deps.Tokens}
	authn := AuthHandler{Users: deps.Users, Tokens: deps.Tokens, Limiter: deps.CredentialLimiter, BcryptCost: deps.BcryptCost}
	users := UserHandler{Users: deps.Users, Assets: deps.Assets, BcryptCost: deps.BcryptCost, MaxUploadBytes: deps.MaxUploadBytes}
	channels := ChannelHandler{Channels: deps.Channels}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/users/register", authn.Register)
	mux.HandleFunc("/api/v1/users/login", authn.Login)
	mux.HandleFunc("/api/v1/users/logout", gate.Protect(authn.Logout))
	mux.HandleFunc("/api/v1/users/profile", gate.Protect(users.Profile))
	mux.HandleFunc("/api/v1/users/reset-password", gate.Protect(users.ChangePassword))
	mux.HandleFunc("/api/v1/users/update-info", gate.Protect(users.UpdateInfo))
	mux.HandleFunc("/api/v1/users/update-avatar", gate.Protect(users.UpdateAvatar))
	mux.HandleFunc("/api/v1/users/update-coverImage", gate.Protect(users.UpdateCoverImage))
	mux.HandleFunc("/api/v1/users/channel-info/{username}", gate.Protect(channels.ChannelInfo))
	mux.HandleFunc("/api/v1/users/watch-history", gate.Protect(channels.WatchHistory))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users             UserStore
	Tokens            TokenManager
	Channels          ChannelViews
	Assets            AssetStorage
	CredentialLimiter RateLimiter
	BcryptCost        int
	MaxUploadBytes    int64
}

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

func gateUser() models.User {
	return models.User{ID: "user-1", Username: "alice", Email: "alice@example.com", FullName: "Alice"}
}

// protectedProbe records whether the wrapped handler ran and with what
// identity.
type protectedProbe struct {
	called   bool
	identity auth.Identity
	hadID    bool
}

func (p *protectedProbe) handler(w http.ResponseWriter, r *http.Request) {
	p.called = true
	p.identity, p.hadID = auth.IdentityFromContext(r.Context())
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{}, "ok")
}

func gateRequest(cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestAuthGateRejectsWithoutTokens(t *testing.T) {
	store := newInMemoryUserStore(gateUser())
	gate := AuthGate{Tokens: newTokenManager(store)}
	probe := &protectedProbe{}

	rec := httptest.NewRecorder()
	gate.Protect(probe.handler)(rec, gateRequest())

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
	if probe.called {
		t.Fatal("protected handler ran without credentials")
	}
}

func TestAuthGateRejectsGarbageTokens(t *testing.T) {
	store := newInMemoryUserStore(gateUser())
	gate := AuthGate{Tokens: newTokenManager(store)}
	probe := &protectedProbe{}

	rec := httptest.NewRecorder()
	gate.Protect(probe.handler)(rec, gateRequest(
		&http.Cookie{Name: accessCookieName, Value: "not-a-token"},
		&http.Cookie{Name: refreshCookieName, Value: "also-not-a-token"},
	))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
	if probe.called {
		t.Fatal("protected handler ran with garbage tokens")
	}
}

func TestAuthGateAdmitsValidAccess(t *testing.T) {
	store := newInMemoryUserStore(gateUser())
	manager := newTokenManager(store)
	gate := AuthGate{Tokens: manager}
	probe := &protectedProbe{}

	pair, err := manager.Issue(context.Background(), gateUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := httptest.NewRecorder()
	gate.Protect(probe.handler)(rec, gateRequest(
		&http.Cookie{Name: accessCookieName, Value: pair.AccessToken},
	))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if !probe.called || !probe.hadID {
		t.Fatal("expected protected handler to run with an identity")
	}
	if probe.identity.UserID != "user-1" || probe.identity.Username != "alice" || probe.identity.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", probe.identity)
	}

	// A verifying access token admits directly. No rotation, no new cookies.
	if cookies := rec.Result().Cookies(); len(cookies) != 0 {
		t.Fatalf("expected no Set-Cookie on the direct path, got %v", cookies)
	}
	if got := store.stored(t, "user-1"); got != pair.RefreshToken {
		t.Fatalf("stored refresh token changed on the direct path: %q", got)
	}
}

func TestAuthGateRotatesOnExpiredAccess(t *testing.T) {
	store := newInMemoryUserStore(gateUser())
	manager := newTokenManager(store)
	gate := AuthGate{Tokens: manager}
	probe := &protectedProbe{}

	// Mint an already-expired access token with a backdated signer sharing
	// the same secrets and store, then overwrite the stored refresh token
	// with a live one.
	expiredSigner := newTokenManager(store)
	expiredSigner.WithNowFunc(func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) })
	expiredPair, err := expiredSigner.Issue(context.Background(), gateUser())
	if err != nil {
		t.Fatalf("issue expired pair: %v", err)
	}

	livePair, err := manager.Issue(context.Background(), gateUser())
	if err != nil {
		t.Fatalf("issue live pair: %v", err)
	}

	rec := httptest.NewRecorder()
	gate.Protect(probe.handler)(rec, gateRequest(
		&http.Cookie{Name: accessCookieName, Value: expiredPair.AccessToken},
		&http.Cookie{Name: refreshCookieName, Value: livePair.RefreshToken},
	))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if !probe.called || !probe.hadID {
		t.Fatal("expected protected handler to run after rotation")
	}
	if probe.identity.UserID != "user-1" || probe.identity.Username != "alice" || probe.identity.Email != "alice@example.com" {
		t.Fatalf("expected full identity after refresh admission, got %+v", probe.identity)
	}

	var gotAccess, gotRefresh string
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case accessCookieName:
			gotAccess = c.Value
		case refreshCookieName:
			gotRefresh = c.Value
		}
	}
	if gotAccess == "" || gotRefresh == "" {
		t.Fatal("expected rotation to rewrite both auth cookies")
	}
	if got := store.stored(t, "user-1"); got != gotRefresh {
		t.Fatalf("stored refresh token %q does not match rotated cookie %q", got, gotRefresh)
	}
}

func TestAuthGateRejectsExpiredAccessWithoutRefresh(t *testing.T) {
	store := newInMemoryUserStore(gateUser())
	manager := newTokenManager(store)
	gate := AuthGate{Tokens: manager}
	probe := &protectedProbe{}

	expiredSigner := newTokenManager(store)
	expiredSigner.WithNowFunc(func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) })
	expiredPair, err := expiredSigner.Issue(context.Background(), gateUser())
	if err != nil {
		t.Fatalf("issue expired pair: %v", err)
	}

	rec := httptest.NewRecorder()
	gate.Protect(probe.handler)(rec, gateRequest(
		&http.Cookie{Name: accessCookieName, Value: expiredPair.AccessToken},
	))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
	if probe.called {
		t.Fatal("protected handler ran with only an expired access token")
	}
}

func TestAuthGateRejectsReplayedRefresh(t *testing.T) {
	store := newInMemoryUserStore(gateUser())
	manager := newTokenManager(store)
	gate := AuthGate{Tokens: manager}

	firstPair, err := manager.Issue(context.Background(), gateUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// A later login replaces the stored refresh token. The earlier one still
	// verifies but no longer matches, so the gate must refuse it.
	manager.WithNowFunc(func() time.Time { return time.Now().UTC().Add(2 * time.Second) })
	if _, err := manager.Issue(context.Background(), gateUser()); err != nil {
		t.Fatalf("issue replacement: %v", err)
	}

	probe := &protectedProbe{}
	rec := httptest.NewRecorder()
	gate.Protect(probe.handler)(rec, gateRequest(
		&http.Cookie{Name: refreshCookieName, Value: firstPair.RefreshToken},
	))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
	if probe.called {
		t.Fatal("protected handler ran with a replayed refresh token")
	}
}

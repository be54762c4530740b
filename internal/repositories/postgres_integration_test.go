package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:        uuid.NewString(),
		Username:  "alice",
		Email:     "alice@example.com",
		FullName:  "Alice Example",
		Password:  "secret-hash",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dupUsername := user
	dupUsername.ID = uuid.NewString()
	dupUsername.Email = "other@example.com"
	if err := repo.Create(ctx, dupUsername); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	dupEmail := user
	dupEmail.ID = uuid.NewString()
	dupEmail.Username = "other"
	if err := repo.Create(ctx, dupEmail); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.Username != user.Username || fetched.Email != user.Email || fetched.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	byUsername, err := repo.FindByUsernameOrEmail(ctx, "alice", "")
	if err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if byUsername.ID != user.ID {
		t.Fatalf("expected user %s by username, got %s", user.ID, byUsername.ID)
	}

	byEmail, err := repo.FindByUsernameOrEmail(ctx, "", "alice@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Fatalf("expected user %s by email, got %s", user.ID, byEmail.ID)
	}

	if _, err := repo.FindByUsernameOrEmail(ctx, "ghost", "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown identity, got %v", err)
	}
	if _, err := repo.FindByUsernameOrEmail(ctx, "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty identity, got %v", err)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "rotated-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find after password update: %v", err)
	}
	if fetched.Password != "rotated-hash" {
		t.Fatalf("expected rotated password hash, got %q", fetched.Password)
	}
	if err := repo.UpdatePassword(ctx, uuid.NewString(), "hash"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}

	renamed, err := repo.UpdateFullName(ctx, user.ID, "Alice Q. Example")
	if err != nil {
		t.Fatalf("update full name: %v", err)
	}
	if renamed.FullName != "Alice Q. Example" {
		t.Fatalf("expected updated full name in returned record, got %q", renamed.FullName)
	}

	withAvatar, err := repo.UpdateAvatar(ctx, user.ID, "https://cdn.example.com/avatars/a.png")
	if err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	if withAvatar.Avatar != "https://cdn.example.com/avatars/a.png" {
		t.Fatalf("expected updated avatar in returned record, got %q", withAvatar.Avatar)
	}

	if _, err := repo.UpdateCoverImage(ctx, uuid.NewString(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user's cover, got %v", err)
	}
}

func TestPostgresCredentialStore_RefreshTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "alice", "alice@example.com")

	store := NewPostgresCredentialStore(testPool)

	if err := store.SetRefreshToken(ctx, user.ID, "token-1"); err != nil {
		t.Fatalf("set refresh token: %v", err)
	}

	loaded, err := store.FindUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if loaded.RefreshToken != "token-1" {
		t.Fatalf("expected stored token, got %q", loaded.RefreshToken)
	}

	if err := store.SwapRefreshToken(ctx, user.ID, "token-1", "token-2"); err != nil {
		t.Fatalf("swap refresh token: %v", err)
	}

	// The replaced value must not swap again.
	if err := store.SwapRefreshToken(ctx, user.ID, "token-1", "token-3"); !errors.Is(err, auth.ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch for stale swap, got %v", err)
	}

	loaded, err = store.FindUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user after swap: %v", err)
	}
	if loaded.RefreshToken != "token-2" {
		t.Fatalf("expected token-2 after swap, got %q", loaded.RefreshToken)
	}

	if err := store.ClearRefreshToken(ctx, user.ID); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}
	loaded, err = store.FindUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user after clear: %v", err)
	}
	if loaded.RefreshToken != "" {
		t.Fatalf("expected empty token after clear, got %q", loaded.RefreshToken)
	}

	if err := store.SwapRefreshToken(ctx, user.ID, "token-2", "token-4"); !errors.Is(err, auth.ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch after clear, got %v", err)
	}

	if err := store.SetRefreshToken(ctx, uuid.NewString(), "token"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for unknown user, got %v", err)
	}
	if _, err := store.FindUser(ctx, uuid.NewString()); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound finding unknown user, got %v", err)
	}
}

func TestPostgresChannelRepository_ChannelProfile(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice", "alice@example.com")
	bob := createTestUser(t, userRepo, "bob", "bob@example.com")
	carol := createTestUser(t, userRepo, "carol", "carol@example.com")

	subscribe(t, bob.ID, alice.ID)
	subscribe(t, carol.ID, alice.ID)
	subscribe(t, alice.ID, bob.ID)

	repo := NewPostgresChannelRepository(testPool)

	profile, err := repo.ChannelProfile(ctx, "alice", carol.ID)
	if err != nil {
		t.Fatalf("channel profile: %v", err)
	}
	if profile.SubscribersCount != 2 {
		t.Fatalf("expected 2 subscribers, got %d", profile.SubscribersCount)
	}
	if profile.SubscribedToCount != 1 {
		t.Fatalf("expected 1 subscribed-to, got %d", profile.SubscribedToCount)
	}
	if !profile.IsSubscribed {
		t.Fatal("expected isSubscribed true for a subscribed viewer")
	}

	profile, err = repo.ChannelProfile(ctx, "alice", bob.ID)
	if err != nil {
		t.Fatalf("channel profile for bob: %v", err)
	}
	if !profile.IsSubscribed {
		t.Fatal("expected isSubscribed true for bob")
	}

	profile, err = repo.ChannelProfile(ctx, "carol", bob.ID)
	if err != nil {
		t.Fatalf("channel profile for carol: %v", err)
	}
	if profile.SubscribersCount != 0 || profile.IsSubscribed {
		t.Fatalf("expected an empty unsubscribed channel, got %+v", profile)
	}

	profile, err = repo.ChannelProfile(ctx, "alice", "")
	if err != nil {
		t.Fatalf("channel profile anonymous: %v", err)
	}
	if profile.IsSubscribed {
		t.Fatal("expected isSubscribed false for an anonymous viewer")
	}

	if _, err := repo.ChannelProfile(ctx, "nobody", carol.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown channel, got %v", err)
	}
}

func TestPostgresChannelRepository_WatchHistory(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice", "alice@example.com")
	bob := createTestUser(t, userRepo, "bob", "bob@example.com")

	first := createTestVideo(t, bob.ID, "First upload")
	second := createTestVideo(t, bob.ID, "Second upload")

	recordWatch(t, alice.ID, second)
	recordWatch(t, alice.ID, first)
	// A reference to a video that no longer resolves drops out of the view.
	recordWatch(t, alice.ID, uuid.NewString())

	repo := NewPostgresChannelRepository(testPool)

	entries, err := repo.WatchHistory(ctx, alice.ID)
	if err != nil {
		t.Fatalf("watch history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 resolvable entries, got %d", len(entries))
	}
	if entries[0].ID != second || entries[1].ID != first {
		t.Fatalf("expected entries in recorded order, got %+v", entries)
	}
	if entries[0].Owner.ID != bob.ID || entries[0].Owner.Username != "bob" {
		t.Fatalf("expected owner annotation, got %+v", entries[0].Owner)
	}

	entries, err = repo.WatchHistory(ctx, bob.ID)
	if err != nil {
		t.Fatalf("watch history for empty viewer: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries for bob, got %d", len(entries))
	}

	if _, err := repo.WatchHistory(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown viewer, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE watch_history, subscriptions, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username, email string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		FullName:  strings.ToUpper(username[:1]) + username[1:] + " Example",
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestVideo(t *testing.T, ownerID, title string) string {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	id := uuid.NewString()
	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, video_file, thumbnail, title, description, duration)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, id, ownerID, "videos/"+id+".mp4", "thumbs/"+id+".jpg", title, "", 42.5)
	if err != nil {
		t.Fatalf("create test video: %v", err)
	}
	return id
}

func subscribe(t *testing.T, subscriberID, channelID string) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        INSERT INTO subscriptions (subscriber_id, channel_id) VALUES ($1, $2)
    `, subscriberID, channelID); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
}

func recordWatch(t *testing.T, userID, videoID string) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id) VALUES ($1, $2)
    `, userID, videoID); err != nil {
		t.Fatalf("record watch entry: %v", err)
	}
}

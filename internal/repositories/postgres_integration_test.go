package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
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
	user := createTestUser(t, repo, "alice")

	dup := user
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	for _, login := range []string{"alice", "alice@example.com"} {
		fetched, err := repo.FindByLogin(ctx, login)
		if err != nil {
			t.Fatalf("find by login %q: %v", login, err)
		}
		if fetched.ID != user.ID {
			t.Fatalf("login %q: expected user %s got %s", login, user.ID, fetched.ID)
		}
	}

	if _, err := repo.FindByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown username, got %v", err)
	}

	updated, err := repo.UpdateProfile(ctx, user.ID, "Alice Cooper", "")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FullName != "Alice Cooper" || updated.Email != user.Email {
		t.Fatalf("expected full name updated and email preserved, got %+v", updated)
	}

	bob := createTestUser(t, repo, "bob")
	if _, err := repo.UpdateProfile(ctx, bob.ID, "", user.Email); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict reusing taken email, got %v", err)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "rotated-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.Password != "rotated-hash" {
		t.Fatalf("expected rotated password hash, got %q", fetched.Password)
	}

	withAvatar, err := repo.UpdateAvatar(ctx, user.ID, "https://cdn.example.com/avatars/new.png")
	if err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	if withAvatar.AvatarURL != "https://cdn.example.com/avatars/new.png" {
		t.Fatalf("expected avatar updated, got %q", withAvatar.AvatarURL)
	}
}

func TestPostgresUserRepository_RefreshTokenRotation(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice")

	if err := repo.SetRefreshToken(ctx, user.ID, "token-1"); err != nil {
		t.Fatalf("set refresh token: %v", err)
	}

	if err := repo.RotateRefreshToken(ctx, user.ID, "token-1", "token-2"); err != nil {
		t.Fatalf("rotate refresh token: %v", err)
	}

	// the superseded value must no longer rotate
	if err := repo.RotateRefreshToken(ctx, user.ID, "token-1", "token-3"); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked for stale token, got %v", err)
	}

	if err := repo.ClearRefreshToken(ctx, user.ID); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}

	// nothing rotates after a clear, not even the latest value
	if err := repo.RotateRefreshToken(ctx, user.ID, "token-2", "token-4"); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after clear, got %v", err)
	}
}

func TestPostgresVideoRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	repo := NewPostgresVideoRepository(testPool)
	owner := createTestUser(t, users, "alice")

	video := createTestVideo(t, repo, owner, "gopher tutorial")

	fetched, err := repo.FindByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("find video: %v", err)
	}
	if fetched.Owner.Username != owner.Username {
		t.Fatalf("expected owner summary joined, got %+v", fetched.Owner)
	}

	orphan := video
	orphan.ID = uuid.NewString()
	orphan.OwnerID = uuid.NewString()
	if err := repo.Create(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing owner, got %v", err)
	}

	if err := repo.IncrementViews(ctx, video.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	fetched, _ = repo.FindByID(ctx, video.ID)
	if fetched.Views != 1 {
		t.Fatalf("expected views 1 got %d", fetched.Views)
	}

	if err := repo.SetPublished(ctx, video.ID, false); err != nil {
		t.Fatalf("set published: %v", err)
	}
	fetched, _ = repo.FindByID(ctx, video.ID)
	if fetched.IsPublished {
		t.Fatal("expected video unpublished")
	}

	fetched.Title = "renamed"
	if err := repo.Update(ctx, fetched); err != nil {
		t.Fatalf("update video: %v", err)
	}
	fetched, _ = repo.FindByID(ctx, video.ID)
	if fetched.Title != "renamed" {
		t.Fatalf("expected renamed title, got %q", fetched.Title)
	}

	if err := repo.Delete(ctx, video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if _, err := repo.FindByID(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPostgresVideoRepository_List(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	repo := NewPostgresVideoRepository(testPool)
	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	createTestVideo(t, repo, alice, "gopher tutorial")
	createTestVideo(t, repo, alice, "gopher livestream")
	createTestVideo(t, repo, bob, "cat compilation")

	draft := createTestVideo(t, repo, alice, "unfinished draft")
	if err := repo.SetPublished(ctx, draft.ID, false); err != nil {
		t.Fatalf("unpublish draft: %v", err)
	}

	videos, total, err := repo.List(ctx, models.VideoFilter{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if total != 3 || len(videos) != 3 {
		t.Fatalf("expected 3 published videos, got %d (total %d)", len(videos), total)
	}

	videos, total, err = repo.List(ctx, models.VideoFilter{Page: 1, Limit: 10, Query: "gopher"})
	if err != nil {
		t.Fatalf("list with query: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 gopher videos, got %d", total)
	}

	videos, _, err = repo.List(ctx, models.VideoFilter{Page: 1, Limit: 10, OwnerID: bob.ID})
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(videos) != 1 || videos[0].Owner.Username != "bob" {
		t.Fatalf("expected only bob's video, got %+v", videos)
	}

	videos, total, err = repo.List(ctx, models.VideoFilter{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if total != 3 || len(videos) != 1 {
		t.Fatalf("expected 1 video on page 2, got %d (total %d)", len(videos), total)
	}
}

func TestPostgresTweetRepository(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	repo := NewPostgresTweetRepository(testPool)
	owner := createTestUser(t, users, "alice")

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, content := range []string{"one", "two", "three"} {
		tweet := models.Tweet{
			ID:        uuid.NewString(),
			OwnerID:   owner.ID,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(ctx, tweet); err != nil {
			t.Fatalf("create tweet %q: %v", content, err)
		}
	}

	tweets, total, err := repo.ListByOwner(ctx, owner.ID, 1, 2)
	if err != nil {
		t.Fatalf("list tweets: %v", err)
	}
	if total != 3 || len(tweets) != 2 {
		t.Fatalf("expected page of 2 from 3, got %d (total %d)", len(tweets), total)
	}
	if tweets[0].Content != "three" {
		t.Fatalf("expected newest first, got %q", tweets[0].Content)
	}
	if tweets[0].Owner.Username != "alice" {
		t.Fatalf("expected owner summary joined, got %+v", tweets[0].Owner)
	}

	target := tweets[0]
	target.Content = "edited"
	if err := repo.Update(ctx, target); err != nil {
		t.Fatalf("update tweet: %v", err)
	}
	fetched, err := repo.FindByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("find tweet: %v", err)
	}
	if fetched.Content != "edited" {
		t.Fatalf("expected edited content, got %q", fetched.Content)
	}

	if err := repo.Delete(ctx, target.ID); err != nil {
		t.Fatalf("delete tweet: %v", err)
	}
	if _, err := repo.FindByID(ctx, target.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresSubscriptionRepository(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	repo := NewPostgresSubscriptionRepository(testPool)
	creator := createTestUser(t, users, "creator")
	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	subscribe := func(subscriber models.User) {
		t.Helper()
		sub := models.Subscription{
			ID:           uuid.NewString(),
			SubscriberID: subscriber.ID,
			ChannelID:    creator.ID,
			CreatedAt:    time.Now().UTC(),
		}
		if err := repo.Create(ctx, sub); err != nil {
			t.Fatalf("subscribe %s: %v", subscriber.Username, err)
		}
	}
	subscribe(alice)
	subscribe(bob)

	dup := models.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: alice.ID,
		ChannelID:    creator.ID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate subscription, got %v", err)
	}

	subscribers, err := repo.ListSubscribers(ctx, creator.ID)
	if err != nil {
		t.Fatalf("list subscribers: %v", err)
	}
	if len(subscribers) != 2 {
		t.Fatalf("expected 2 subscribers, got %d", len(subscribers))
	}

	channels, err := repo.ListChannels(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 1 || channels[0].Username != "creator" {
		t.Fatalf("expected creator channel, got %+v", channels)
	}

	stats, err := repo.ChannelStats(ctx, creator.ID, alice.ID)
	if err != nil {
		t.Fatalf("channel stats: %v", err)
	}
	if stats.SubscriberCount != 2 || !stats.IsSubscribed {
		t.Fatalf("unexpected stats %+v", stats)
	}
	stats, err = repo.ChannelStats(ctx, alice.ID, creator.ID)
	if err != nil {
		t.Fatalf("channel stats for subscriber: %v", err)
	}
	if stats.ChannelsSubscribedTo != 1 || stats.IsSubscribed {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if err := repo.Delete(ctx, alice.ID, creator.ID); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := repo.Delete(ctx, alice.ID, creator.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound unsubscribing twice, got %v", err)
	}
}

func TestPostgresWatchHistoryRepository(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	repo := NewPostgresWatchHistoryRepository(testPool)

	owner := createTestUser(t, users, "creator")
	viewer := createTestUser(t, users, "viewer")
	first := createTestVideo(t, videos, owner, "first watch")
	second := createTestVideo(t, videos, owner, "second watch")

	if err := repo.Record(ctx, viewer.ID, first.ID); err != nil {
		t.Fatalf("record first watch: %v", err)
	}
	if err := repo.Record(ctx, viewer.ID, second.ID); err != nil {
		t.Fatalf("record second watch: %v", err)
	}
	// rewatching bumps the timestamp instead of duplicating the row
	if err := repo.Record(ctx, viewer.ID, first.ID); err != nil {
		t.Fatalf("record rewatch: %v", err)
	}

	entries, err := repo.ListForUser(ctx, viewer.ID, 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].Video.ID != first.ID {
		t.Fatalf("expected rewatched video first, got %s", entries[0].Video.ID)
	}
	if entries[0].Video.Owner.Username != "creator" {
		t.Fatalf("expected owner summary joined, got %+v", entries[0].Video.Owner)
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
		if entry.IsDir() {
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

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE watch_history, subscriptions, tweets, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  username + " example",
		Password:  "password-hash",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user %s: %v", username, err)
	}
	return user
}

func createTestVideo(t *testing.T, repo *PostgresVideoRepository, owner models.User, title string) models.Video {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	video := models.Video{
		ID:           uuid.NewString(),
		OwnerID:      owner.ID,
		Title:        title,
		Description:  "about " + title,
		VideoURL:     "https://cdn.example.com/videos/" + uuid.NewString() + ".mp4",
		ThumbnailURL: "https://cdn.example.com/thumbnails/" + uuid.NewString() + ".jpg",
		Duration:     10,
		IsPublished:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), video); err != nil {
		t.Fatalf("create test video %s: %v", title, err)
	}
	return video
}

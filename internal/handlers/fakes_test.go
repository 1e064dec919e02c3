package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/channels"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

type memoryUserStore struct {
	mu        sync.Mutex
	users     map[string]models.User
	createErr error
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]models.User)}
}

func (s *memoryUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *memoryUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memoryUserStore) FindByLogin(_ context.Context, login string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == login || user.Email == login {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memoryUserStore) UpdateProfile(_ context.Context, userID, fullName, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	if email != "" {
		for id, existing := range s.users {
			if id != userID && existing.Email == email {
				return models.User{}, repositories.ErrConflict
			}
		}
		user.Email = email
	}
	if fullName != "" {
		user.FullName = fullName
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[userID] = user
	return user.Sanitized(), nil
}

func (s *memoryUserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password = passwordHash
	s.users[userID] = user
	return nil
}

func (s *memoryUserStore) UpdateAvatar(_ context.Context, userID, avatarURL string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.AvatarURL = avatarURL
	s.users[userID] = user
	return user.Sanitized(), nil
}

func (s *memoryUserStore) UpdateCoverImage(_ context.Context, userID, coverImageURL string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.CoverImageURL = coverImageURL
	s.users[userID] = user
	return user.Sanitized(), nil
}

func (s *memoryUserStore) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = token
	s.users[userID] = user
	return nil
}

func (s *memoryUserStore) RotateRefreshToken(_ context.Context, userID, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok || user.RefreshToken == "" || user.RefreshToken != current {
		return auth.ErrTokenRevoked
	}
	user.RefreshToken = next
	s.users[userID] = user
	return nil
}

func (s *memoryUserStore) ClearRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = ""
	s.users[userID] = user
	return nil
}

type memoryVideoStore struct {
	mu     sync.Mutex
	videos []models.Video

	findCalls int
}

func (s *memoryVideoStore) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos = append(s.videos, video)
	return nil
}

func (s *memoryVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	for _, video := range s.videos {
		if video.ID == id {
			return video, nil
		}
	}
	return models.Video{}, repositories.ErrNotFound
}

func (s *memoryVideoStore) List(_ context.Context, filter models.VideoFilter) ([]models.Video, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]models.Video, 0, len(s.videos))
	for _, video := range s.videos {
		if !video.IsPublished {
			continue
		}
		if filter.OwnerID != "" && video.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(video.Title), strings.ToLower(filter.Query)) {
			continue
		}
		matched = append(matched, video)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *memoryVideoStore) Update(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.videos {
		if s.videos[i].ID == video.ID {
			s.videos[i].Title = video.Title
			s.videos[i].Description = video.Description
			s.videos[i].ThumbnailURL = video.ThumbnailURL
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *memoryVideoStore) SetPublished(_ context.Context, id string, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.videos {
		if s.videos[i].ID == id {
			s.videos[i].IsPublished = published
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *memoryVideoStore) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.videos {
		if s.videos[i].ID == id {
			s.videos[i].Views++
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *memoryVideoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.videos {
		if s.videos[i].ID == id {
			s.videos = append(s.videos[:i], s.videos[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

type memoryTweetStore struct {
	mu     sync.Mutex
	tweets []models.Tweet
}

func (s *memoryTweetStore) Create(_ context.Context, tweet models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tweets = append(s.tweets, tweet)
	return nil
}

func (s *memoryTweetStore) FindByID(_ context.Context, id string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tweet := range s.tweets {
		if tweet.ID == id {
			return tweet, nil
		}
	}
	return models.Tweet{}, repositories.ErrNotFound
}

func (s *memoryTweetStore) ListByOwner(_ context.Context, ownerID string, page, limit int) ([]models.Tweet, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]models.Tweet, 0, len(s.tweets))
	for _, tweet := range s.tweets {
		if tweet.OwnerID == ownerID {
			matched = append(matched, tweet)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *memoryTweetStore) Update(_ context.Context, tweet models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tweets {
		if s.tweets[i].ID == tweet.ID {
			s.tweets[i].Content = tweet.Content
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *memoryTweetStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tweets {
		if s.tweets[i].ID == id {
			s.tweets = append(s.tweets[:i], s.tweets[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

type memorySubscriptionStore struct {
	mu    sync.Mutex
	subs  []models.Subscription
	users *memoryUserStore
}

func (s *memorySubscriptionStore) Create(_ context.Context, sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subs {
		if existing.SubscriberID == sub.SubscriberID && existing.ChannelID == sub.ChannelID {
			return repositories.ErrConflict
		}
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *memorySubscriptionStore) Delete(_ context.Context, subscriberID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.SubscriberID == subscriberID && sub.ChannelID == channelID {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *memorySubscriptionStore) ListSubscribers(ctx context.Context, channelID string) ([]models.UserSummary, error) {
	s.mu.Lock()
	ids := make([]string, 0)
	for _, sub := range s.subs {
		if sub.ChannelID == channelID {
			ids = append(ids, sub.SubscriberID)
		}
	}
	s.mu.Unlock()
	return s.summaries(ctx, ids)
}

func (s *memorySubscriptionStore) ListChannels(ctx context.Context, subscriberID string) ([]models.UserSummary, error) {
	s.mu.Lock()
	ids := make([]string, 0)
	for _, sub := range s.subs {
		if sub.SubscriberID == subscriberID {
			ids = append(ids, sub.ChannelID)
		}
	}
	s.mu.Unlock()
	return s.summaries(ctx, ids)
}

func (s *memorySubscriptionStore) summaries(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, user.Summary())
	}
	return out, nil
}

func (s *memorySubscriptionStore) stats(_ context.Context, channelID, viewerID string) (models.ChannelStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := models.ChannelStats{}
	for _, sub := range s.subs {
		if sub.ChannelID == channelID {
			stats.SubscriberCount++
			if sub.SubscriberID == viewerID {
				stats.IsSubscribed = true
			}
		}
		if sub.SubscriberID == channelID {
			stats.ChannelsSubscribedTo++
		}
	}
	return stats, nil
}

type memoryHistoryStore struct {
	mu      sync.Mutex
	entries []models.WatchEntry
	byUser  map[string][]string
	videos  *memoryVideoStore
}

func newMemoryHistoryStore(videos *memoryVideoStore) *memoryHistoryStore {
	return &memoryHistoryStore{byUser: make(map[string][]string), videos: videos}
}

func (s *memoryHistoryStore) Record(_ context.Context, userID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byUser[userID] {
		if id == videoID {
			return nil
		}
	}
	s.byUser[userID] = append(s.byUser[userID], videoID)
	return nil
}

func (s *memoryHistoryStore) ListForUser(ctx context.Context, userID string, limit int) ([]models.WatchEntry, error) {
	s.mu.Lock()
	ids := append([]string(nil), s.byUser[userID]...)
	s.mu.Unlock()

	out := make([]models.WatchEntry, 0, len(ids))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		video, err := s.videos.FindByID(ctx, ids[i])
		if err != nil {
			continue
		}
		out = append(out, models.WatchEntry{Video: video, WatchedAt: time.Now().UTC()})
	}
	return out, nil
}

type fakeStorage struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (f *fakeStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, name)
	return "https://cdn.test/" + name, nil
}

type fakeCleaner struct {
	mu        sync.Mutex
	locations []string
}

func (f *fakeCleaner) Enqueue(_ context.Context, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, location)
	return nil
}

func (f *fakeCleaner) enqueued() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.locations...)
}

type fakeProbe struct {
	duration float64
	err      error
}

func (f fakeProbe) Duration(context.Context, string) (float64, error) {
	return f.duration, f.err
}

// testEnv assembles the full handler stack over in-memory stores with a real
// token service, routed through the production mux wiring.
type testEnv struct {
	mux     *http.ServeMux
	users   *memoryUserStore
	videos  *memoryVideoStore
	tweets  *memoryTweetStore
	subs    *memorySubscriptionStore
	history *memoryHistoryStore
	storage *fakeStorage
	cleaner *fakeCleaner
	tokens  *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemoryUserStore()
	videos := &memoryVideoStore{}
	subs := &memorySubscriptionStore{users: users}
	env := &testEnv{
		mux:     http.NewServeMux(),
		users:   users,
		videos:  videos,
		tweets:  &memoryTweetStore{},
		subs:    subs,
		history: newMemoryHistoryStore(videos),
		storage: &fakeStorage{},
		cleaner: &fakeCleaner{},
	}

	env.tokens = auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte("access-test-secret"),
		RefreshSecret: []byte("refresh-test-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}, users)

	RegisterRoutes(env.mux, Dependencies{
		Users:         users,
		Tokens:        env.tokens,
		Videos:        videos,
		Tweets:        env.tweets,
		Subscriptions: subs,
		History:       env.history,
		Storage:       env.storage,
		Cleaner:       env.cleaner,
		Probe:         fakeProbe{duration: 42.5},
		ChannelStats:  channels.NewCachingStatsProvider(channels.StatsProviderFunc(subs.stats), time.Hour),
	})

	return env
}

// seedUser creates an account directly in the store and returns it with a
// valid access token.
func (env *testEnv) seedUser(t *testing.T, username string) (models.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:        "00000000-0000-4000-8000-" + pad12(username),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  strings.ToUpper(username[:1]) + username[1:],
		Password:  string(hash),
		AvatarURL: "https://cdn.test/avatars/" + username + ".png",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}

	token, _, err := env.tokens.IssueAccessToken(user.ID)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}
	return user, token
}

func (env *testEnv) seedVideo(t *testing.T, owner models.User, title string, published bool) models.Video {
	t.Helper()

	now := time.Now().UTC()
	video := models.Video{
		ID:           "10000000-0000-4000-8000-" + pad12(title),
		OwnerID:      owner.ID,
		Owner:        owner.Summary(),
		Title:        title,
		Description:  "about " + title,
		VideoURL:     "https://cdn.test/videos/" + title + ".mp4",
		ThumbnailURL: "https://cdn.test/thumbnails/" + title + ".jpg",
		Duration:     10,
		IsPublished:  published,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := env.videos.Create(context.Background(), video); err != nil {
		t.Fatalf("seed video %s: %v", title, err)
	}
	return video
}

func (env *testEnv) do(t *testing.T, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, target, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return env.do(t, method, target, token, body, "application/json")
}

// pad12 builds the final uuid group from a name so seeded ids parse as uuids.
func pad12(name string) string {
	const hex = "0123456789ab"
	out := make([]byte, 12)
	for i := range out {
		if i < len(name) {
			out[i] = hex[int(name[i])%len(hex)]
		} else {
			out[i] = '0'
		}
	}
	return string(out)
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	env := decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v (body %q)", err, rec.Body.String())
	}
}

type multipartBody struct {
	buf    bytes.Buffer
	writer *multipart.Writer
}

func newMultipartBody() *multipartBody {
	b := &multipartBody{}
	b.writer = multipart.NewWriter(&b.buf)
	return b
}

func (b *multipartBody) field(t *testing.T, name, value string) *multipartBody {
	t.Helper()
	if err := b.writer.WriteField(name, value); err != nil {
		t.Fatalf("write field %s: %v", name, err)
	}
	return b
}

func (b *multipartBody) file(t *testing.T, field, filename, content string) *multipartBody {
	t.Helper()
	part, err := b.writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file %s: %v", field, err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file %s: %v", field, err)
	}
	return b
}

func (b *multipartBody) done(t *testing.T) (io.Reader, string) {
	t.Helper()
	if err := b.writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &b.buf, b.writer.FormDataContentType()
}

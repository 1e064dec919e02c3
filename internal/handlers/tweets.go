package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/models"
)

// TweetHandler implements the tweet endpoints.
type TweetHandler struct {
	Tweets TweetStore
	Users  UserStore

	NowFunc func() time.Time
}

type ownedTweetHandler func(w http.ResponseWriter, r *http.Request, tweet models.Tweet)

// RequireOwner guards mutating tweet routes the same way video mutation is
// guarded: id format first, then existence, then ownership.
func (h TweetHandler) RequireOwner(next ownedTweetHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, ok := CurrentUser(ctx)
		if !ok {
			respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
			return
		}

		tweetID := r.PathValue("tweetId")
		if _, err := uuid.Parse(tweetID); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid tweet id")
			return
		}

		tweet, err := h.Tweets.FindByID(ctx, tweetID)
		if err != nil {
			respondStoreError(ctx, w, err, "tweet not found")
			return
		}

		if tweet.OwnerID != user.ID {
			respondError(ctx, w, http.StatusForbidden, "you can only modify your own tweets")
			return
		}

		next(w, r, tweet)
	}
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	content, ok := h.decodeContent(w, r)
	if !ok {
		return
	}

	now := h.now()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		OwnerID:   user.ID,
		Owner:     user.Summary(),
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Tweets.Create(ctx, tweet); err != nil {
		respondStoreError(ctx, w, err, "owner not found")
		return
	}

	respondData(ctx, w, http.StatusCreated, newTweetResponse(tweet), "tweet created successfully")
}

// ListByUser handles GET /api/v1/tweets/user/{userId}: the user's tweets,
// newest first, paginated.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := CurrentUser(ctx); !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	ownerID := r.PathValue("userId")
	if _, err := uuid.Parse(ownerID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid user id")
		return
	}

	if _, err := h.Users.FindByID(ctx, ownerID); err != nil {
		respondStoreError(ctx, w, err, "user not found")
		return
	}

	query := r.URL.Query()
	page := intQueryParam(query.Get("page"), 1)
	limit := intQueryParam(query.Get("limit"), 10)

	tweets, total, err := h.Tweets.ListByOwner(ctx, ownerID, page, limit)
	if err != nil {
		respondStoreError(ctx, w, err, "tweets not found")
		return
	}

	respondData(ctx, w, http.StatusOK, map[string]any{
		"tweets":     tweetResponses(tweets),
		"pagination": paginationPayload(page, limit, total),
	}, "tweets fetched successfully")
}

// Update handles PATCH /api/v1/tweets/{tweetId} for the owner.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request, tweet models.Tweet) {
	ctx := r.Context()

	content, ok := h.decodeContent(w, r)
	if !ok {
		return
	}

	tweet.Content = content
	if err := h.Tweets.Update(ctx, tweet); err != nil {
		respondStoreError(ctx, w, err, "tweet not found")
		return
	}

	tweet.UpdatedAt = h.now()
	respondData(ctx, w, http.StatusOK, newTweetResponse(tweet), "tweet updated successfully")
}

// Delete handles DELETE /api/v1/tweets/{tweetId} for the owner.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request, tweet models.Tweet) {
	ctx := r.Context()

	if err := h.Tweets.Delete(ctx, tweet.ID); err != nil {
		respondStoreError(ctx, w, err, "tweet not found")
		return
	}

	respondData(ctx, w, http.StatusOK, newTweetResponse(tweet), "tweet deleted successfully")
}

// decodeContent parses and validates the tweet body shared by Create and
// Update. Length is measured in runes, not bytes.
func (h TweetHandler) decodeContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()

	var req tweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return "", false
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		respondError(ctx, w, http.StatusBadRequest, "content is required")
		return "", false
	}
	if utf8.RuneCountInString(content) > models.MaxTweetLength {
		respondError(ctx, w, http.StatusBadRequest, "content must be at most 280 characters")
		return "", false
	}
	return content, true
}

func (h TweetHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type tweetRequest struct {
	Content string `json:"content"`
}

type tweetResponse struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Owner     ownerResponse `json:"owner"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func newTweetResponse(tweet models.Tweet) tweetResponse {
	return tweetResponse{
		ID:        tweet.ID,
		Content:   tweet.Content,
		Owner:     newOwnerResponse(tweet.Owner),
		CreatedAt: tweet.CreatedAt,
		UpdatedAt: tweet.UpdatedAt,
	}
}

func tweetResponses(tweets []models.Tweet) []tweetResponse {
	out := make([]tweetResponse, 0, len(tweets))
	for _, tweet := range tweets {
		out = append(out, newTweetResponse(tweet))
	}
	return out
}

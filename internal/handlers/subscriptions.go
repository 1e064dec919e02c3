package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// SubscriptionHandler implements the channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	Users         UserStore
	StatsCache    StatsInvalidator

	NowFunc func() time.Time
}

// Toggle handles POST /api/v1/subscriptions/channel/{channelId}: subscribe
// if not subscribed, unsubscribe otherwise.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	channelID := r.PathValue("channelId")
	if _, err := uuid.Parse(channelID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid channel id")
		return
	}
	if channelID == user.ID {
		respondError(ctx, w, http.StatusBadRequest, "you cannot subscribe to your own channel")
		return
	}

	if _, err := h.Users.FindByID(ctx, channelID); err != nil {
		respondStoreError(ctx, w, err, "channel not found")
		return
	}

	// try the unsubscribe first; a missing row means we should subscribe
	err := h.Subscriptions.Delete(ctx, user.ID, channelID)
	switch {
	case err == nil:
		h.invalidateStats(user.ID, channelID)
		respondData(ctx, w, http.StatusOK, toggleResponse{Subscribed: false}, "unsubscribed successfully")
	case errors.Is(err, repositories.ErrNotFound):
		sub := models.Subscription{
			ID:           uuid.NewString(),
			SubscriberID: user.ID,
			ChannelID:    channelID,
			CreatedAt:    h.now(),
		}
		if err := h.Subscriptions.Create(ctx, sub); err != nil && !errors.Is(err, repositories.ErrConflict) {
			respondStoreError(ctx, w, err, "channel not found")
			return
		}
		h.invalidateStats(user.ID, channelID)
		respondData(ctx, w, http.StatusOK, toggleResponse{Subscribed: true}, "subscribed successfully")
	default:
		respondStoreError(ctx, w, err, "channel not found")
	}
}

// invalidateStats covers both sides of the toggle: the channel's
// subscriber count and the subscriber's own subscribed-to count.
func (h SubscriptionHandler) invalidateStats(ids ...string) {
	if h.StatsCache == nil {
		return
	}
	for _, id := range ids {
		h.StatsCache.Invalidate(id)
	}
}

// ListSubscribers handles GET /api/v1/subscriptions/channel/{channelId}:
// users subscribed to the channel.
func (h SubscriptionHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := CurrentUser(ctx); !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	channelID := r.PathValue("channelId")
	if _, err := uuid.Parse(channelID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid channel id")
		return
	}

	if _, err := h.Users.FindByID(ctx, channelID); err != nil {
		respondStoreError(ctx, w, err, "channel not found")
		return
	}

	subscribers, err := h.Subscriptions.ListSubscribers(ctx, channelID)
	if err != nil {
		respondStoreError(ctx, w, err, "channel not found")
		return
	}

	respondData(ctx, w, http.StatusOK, summaryResponses(subscribers), "subscribers fetched successfully")
}

// ListChannels handles GET /api/v1/subscriptions/user/{subscriberId}/channels:
// channels the given user is subscribed to.
func (h SubscriptionHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := CurrentUser(ctx); !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	subscriberID := r.PathValue("subscriberId")
	if _, err := uuid.Parse(subscriberID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid user id")
		return
	}

	if _, err := h.Users.FindByID(ctx, subscriberID); err != nil {
		respondStoreError(ctx, w, err, "user not found")
		return
	}

	channels, err := h.Subscriptions.ListChannels(ctx, subscriberID)
	if err != nil {
		respondStoreError(ctx, w, err, "subscriptions not found")
		return
	}

	respondData(ctx, w, http.StatusOK, summaryResponses(channels), "subscribed channels fetched successfully")
}

func (h SubscriptionHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type toggleResponse struct {
	Subscribed bool `json:"subscribed"`
}

func summaryResponses(users []models.UserSummary) []ownerResponse {
	out := make([]ownerResponse, 0, len(users))
	for _, user := range users {
		out = append(out, newOwnerResponse(user))
	}
	return out
}

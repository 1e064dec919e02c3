package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// SubscriptionRepository defines the data access contract for subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub models.Subscription) error
	Delete(ctx context.Context, subscriberID, channelID string) error
	ListSubscribers(ctx context.Context, channelID string) ([]models.UserSummary, error)
	ListChannels(ctx context.Context, subscriberID string) ([]models.UserSummary, error)
	ChannelStats(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error)
}

// WatchHistoryRepository records and lists the videos a user has watched.
type WatchHistoryRepository interface {
	Record(ctx context.Context, userID, videoID string) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.WatchEntry, error)
}

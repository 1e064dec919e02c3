package handlers

import (
	"context"
	"io"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/channels"
	"github.com/vidtube/backend/internal/models"
)

// UserStore captures the persistence operations required by the user and
// auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByLogin(ctx context.Context, login string) (models.User, error)
	UpdateProfile(ctx context.Context, userID, fullName, email string) (models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID, coverImageURL string) (models.User, error)
}

// TokenManager issues, refreshes and revokes the session token pair.
type TokenManager interface {
	IssuePair(ctx context.Context, userID string) (models.TokenPair, error)
	Refresh(ctx context.Context, presented string) (models.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
	Verify(token string, kind auth.TokenKind) (string, error)
}

// VideoStore captures persistence for the video publishing workflows.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, filter models.VideoFilter) ([]models.Video, int64, error)
	Update(ctx context.Context, video models.Video) error
	SetPublished(ctx context.Context, id string, published bool) error
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// TweetStore captures persistence for tweets.
type TweetStore interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	ListByOwner(ctx context.Context, ownerID string, page, limit int) ([]models.Tweet, int64, error)
	Update(ctx context.Context, tweet models.Tweet) error
	Delete(ctx context.Context, id string) error
}

// SubscriptionStore captures persistence for channel subscriptions.
type SubscriptionStore interface {
	Create(ctx context.Context, sub models.Subscription) error
	Delete(ctx context.Context, subscriberID, channelID string) error
	ListSubscribers(ctx context.Context, channelID string) ([]models.UserSummary, error)
	ListChannels(ctx context.Context, subscriberID string) ([]models.UserSummary, error)
}

// WatchHistoryStore records and lists watched videos.
type WatchHistoryStore interface {
	Record(ctx context.Context, userID, videoID string) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.WatchEntry, error)
}

// AssetStorage persists uploaded media binaries and returns their public
// location.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// AssetCleaner schedules background deletion of superseded assets.
type AssetCleaner interface {
	Enqueue(ctx context.Context, location string) error
}

// StatsInvalidator drops cached channel stats after a subscription change.
type StatsInvalidator interface {
	Invalidate(channelID string)
}

// DurationProber reads the duration of an uploaded video file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Tokens        TokenManager
	Videos        VideoStore
	Tweets        TweetStore
	Subscriptions SubscriptionStore
	History       WatchHistoryStore
	Storage       AssetStorage
	Cleaner       AssetCleaner
	Probe         DurationProber
	ChannelStats  channels.StatsProvider
	AuthLimiter   RateLimiter

	MaxUploadBytes int64
}

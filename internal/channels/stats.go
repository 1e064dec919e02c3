package channels

import (
	"context"
	"errors"

	"github.com/vidtube/backend/internal/models"
)

// ErrProviderUnavailable indicates the stats provider is not configured.
var ErrProviderUnavailable = errors.New("channel stats provider unavailable")

// StatsProvider resolves the subscription counters shown on a channel page
// for a particular viewer.
type StatsProvider interface {
	ChannelStats(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error)
}

// StatsProviderFunc adapts a function to the StatsProvider interface.
type StatsProviderFunc func(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error)

// ChannelStats implements StatsProvider.
func (f StatsProviderFunc) ChannelStats(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error) {
	return f(ctx, channelID, viewerID)
}

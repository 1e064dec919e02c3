package channels

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/models"
)

type cacheEntry struct {
	stats   models.ChannelStats
	expires time.Time
}

// CachingStatsProvider wraps another StatsProvider with a TTL-based
// in-memory cache. Entries are keyed per (channel, viewer) pair because
// IsSubscribed is viewer-specific.
type CachingStatsProvider struct {
	base StatsProvider
	ttl  time.Duration

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingStatsProvider returns a StatsProvider that caches lookups for the
// provided TTL.
func NewCachingStatsProvider(base StatsProvider, ttl time.Duration) *CachingStatsProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingStatsProvider{
		base:  base,
		ttl:   ttl,
		items: make(map[string]cacheEntry),
	}
}

// ChannelStats returns cached stats when fresh, otherwise it delegates to
// the underlying provider and stores the result.
func (c *CachingStatsProvider) ChannelStats(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error) {
	if c == nil || c.base == nil {
		return models.ChannelStats{}, ErrProviderUnavailable
	}

	key := channelID + ":" + viewerID
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.stats, nil
	}

	stats, err := c.base.ChannelStats(ctx, channelID, viewerID)
	if err != nil {
		return models.ChannelStats{}, err
	}

	c.mu.Lock()
	c.items[key] = cacheEntry{stats: stats, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return stats, nil
}

// Invalidate drops every cached entry for the channel, across viewers.
// Called when a subscription toggles so counters do not serve stale for
// the rest of the TTL.
func (c *CachingStatsProvider) Invalidate(channelID string) {
	if c == nil {
		return
	}

	prefix := channelID + ":"
	c.mu.Lock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	c.mu.Unlock()
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/channels"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains the background asset cleaner and must
// run during shutdown.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	users := repositories.NewPostgresUserRepository(pool)
	subscriptions := repositories.NewPostgresSubscriptionRepository(pool)

	tokens := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, users)

	store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object store: %w", err)
	}

	cleaner := media.NewCleaner(store, media.CleanerConfig{Workers: 2, QueueSize: 128}, logger)

	stats := channels.NewCachingStatsProvider(
		channels.StatsProviderFunc(subscriptions.ChannelStats),
		cfg.ChannelStatsCacheTTL,
	)

	deps := handlers.Dependencies{
		Users:          users,
		Tokens:         tokens,
		Videos:         repositories.NewPostgresVideoRepository(pool),
		Tweets:         repositories.NewPostgresTweetRepository(pool),
		Subscriptions:  subscriptions,
		History:        repositories.NewPostgresWatchHistoryRepository(pool),
		Storage:        store,
		Cleaner:        cleaner,
		Probe:          media.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout),
		ChannelStats:   stats,
		AuthLimiter:    middleware.NewIPRateLimiter(10, time.Minute, 20, 10*time.Minute),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	return deps, cleaner.Shutdown, nil
}

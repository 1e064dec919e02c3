package media

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// ObjectDeleter removes a stored asset by its public location or key.
type ObjectDeleter interface {
	Delete(ctx context.Context, location string) error
}

// CleanerConfig controls the concurrency characteristics of the cleaner.
type CleanerConfig struct {
	QueueSize int
	Workers   int
}

// Cleaner asynchronously removes superseded object-store assets: replaced
// thumbnails, avatars and cover images, and the files of deleted videos.
// Deletion is best effort; a failure is logged and the row of record has
// already moved on.
type Cleaner struct {
	storage ObjectDeleter
	logger  *slog.Logger

	jobs   chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var errCleanerClosed = errors.New("asset cleaner closed")

// NewCleaner constructs a background worker pool that deletes assets.
func NewCleaner(storage ObjectDeleter, cfg CleanerConfig, logger *slog.Logger) *Cleaner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Cleaner{
		storage: storage,
		logger:  logger,
		jobs:    make(chan string, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}

	return c
}

// Enqueue schedules deletion of the asset at the given location. Empty
// locations are ignored. Once Shutdown has begun it reports
// errCleanerClosed.
func (c *Cleaner) Enqueue(ctx context.Context, location string) error {
	if strings.TrimSpace(location) == "" {
		return nil
	}

	// the jobs channel is never closed, so the worst a send racing
	// Shutdown can do is land in the buffer and be dropped
	select {
	case <-c.ctx.Done():
		return errCleanerClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return errCleanerClosed
	case c.jobs <- location:
		return nil
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs.
func (c *Cleaner) Shutdown(ctx context.Context) error {
	c.once.Do(c.cancel)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *Cleaner) worker() {
	defer c.wg.Done()

	for {
		select {
		case location := <-c.jobs:
			c.remove(location)
		case <-c.ctx.Done():
			// drain whatever was accepted before shutdown began
			for {
				select {
				case location := <-c.jobs:
					c.remove(location)
				default:
					return
				}
			}
		}
	}
}

func (c *Cleaner) remove(location string) {
	if c.storage == nil {
		c.logger.Error("asset cleaner has no storage configured")
		return
	}
	if err := c.storage.Delete(context.Background(), location); err != nil {
		c.logger.Error("asset deletion failed", "location", location, "error", err)
	}
}

package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CleanerConfig contains retention settings
type CleanerConfig struct {
	MaxAge   time.Duration
	MaxCount int
	Interval time.Duration
}

// Cleaner periodically applies the retention settings to the journal
type Cleaner struct {
	storage *BoltStorage
	cfg     CleanerConfig
	logger  *slog.Logger
	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once
}

// NewCleaner creates a new cleaner
func NewCleaner(storage *BoltStorage, cfg CleanerConfig, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		storage: storage,
		cfg:     cfg,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start starts the cleanup goroutine. It does nothing when no retention
// limit or interval is configured.
func (c *Cleaner) Start(ctx context.Context) {
	if (c.cfg.MaxAge <= 0 && c.cfg.MaxCount <= 0) || c.cfg.Interval <= 0 {
		return
	}

	c.wg.Add(1)
	go c.loop(ctx)

	c.logger.Info("journal cleaner started",
		"max_age", c.cfg.MaxAge,
		"max_count", c.cfg.MaxCount,
		"interval", c.cfg.Interval,
	)
}

// Stop stops the cleaner and waits for the goroutine to finish
func (c *Cleaner) Stop() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Cleaner) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce applies retention once and returns the number of deleted records
func (c *Cleaner) RunOnce(ctx context.Context) int {
	deleted, err := c.storage.Cleanup(ctx, c.cfg.MaxAge, c.cfg.MaxCount)
	if err != nil {
		c.logger.Error("failed to clean up journal", "error", err)
		return 0
	}
	if deleted > 0 {
		c.logger.Info("cleaned up journal", "deleted", deleted)
	}
	return deleted
}

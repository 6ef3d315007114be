package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Expirer drops sessions that have been idle for too long
type Expirer interface {
	ExpireIdle(ctx context.Context) (int, error)
}

// Cleaner periodically expires idle visitor sessions
type Cleaner struct {
	sessions Expirer
	interval time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(sessions Expirer, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Cleaner{
		sessions: sessions,
		interval: interval,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	slog.Debug("running cleanup cycle")

	n, err := c.sessions.ExpireIdle(ctx)
	if err != nil {
		slog.Error("failed to expire idle sessions", "error", err, "expired", n)
		return
	}

	if n == 0 {
		slog.Debug("no idle sessions found")
		return
	}

	slog.Info("idle sessions expired", "count", n)
}

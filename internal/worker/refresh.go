package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hyperengineering/leettrack/internal/session"
	"github.com/hyperengineering/leettrack/internal/store"
)

var (
	_ Refresher     = (*session.Session)(nil)
	_ SyncLogPruner = (*store.SQLiteStore)(nil)
)

// Refresher reloads session state from the remote API.
type Refresher interface {
	LoggedIn() bool
	Refresh(ctx context.Context) error
}

// SyncLogPruner trims the local sync log.
type SyncLogPruner interface {
	PruneSyncLog(ctx context.Context, keep int) (int64, error)
}

// RefreshCoordinator periodically replaces the local progress map with the
// remote copy and prunes the sync log.
type RefreshCoordinator struct {
	session  Refresher
	pruner   SyncLogPruner
	interval time.Duration
	keep     int
}

// NewRefreshCoordinator creates a coordinator. pruner may be nil, and a keep
// of zero disables pruning.
func NewRefreshCoordinator(s Refresher, pruner SyncLogPruner, interval time.Duration, keep int) *RefreshCoordinator {
	return &RefreshCoordinator{
		session:  s,
		pruner:   pruner,
		interval: interval,
		keep:     keep,
	}
}

// Run starts the coordinator loop. Blocks until ctx is cancelled.
// Does NOT run immediately on start; login and restore already fetch.
func (c *RefreshCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "refresh-coordinator",
		"interval", c.interval.String(),
		"sync_log_keep", c.keep,
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "refresh-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

// runCycle executes a single refresh and prune pass.
func (c *RefreshCoordinator) runCycle(ctx context.Context) {
	c.refresh(ctx)
	c.prune(ctx)
}

func (c *RefreshCoordinator) refresh(ctx context.Context) {
	if !c.session.LoggedIn() {
		slog.Debug("refresh skipped",
			"component", "worker",
			"action", "refresh_skipped",
			"reason", "logged_out",
		)
		return
	}

	start := time.Now()
	err := c.session.Refresh(ctx)
	switch {
	case err == nil:
		slog.Info("refresh completed",
			"component", "worker",
			"action", "refresh_complete",
			"duration_ms", time.Since(start).Milliseconds(),
		)
	case ctx.Err() != nil:
		// Graceful shutdown
	case errors.Is(err, session.ErrNotLoggedIn):
		slog.Debug("refresh skipped",
			"component", "worker",
			"action", "refresh_skipped",
			"reason", "logged_out",
		)
	default:
		slog.Warn("refresh failed, keeping local state",
			"component", "worker",
			"action", "refresh_failed",
			"error", err,
		)
	}
}

func (c *RefreshCoordinator) prune(ctx context.Context) {
	if c.pruner == nil || c.keep <= 0 {
		return
	}

	removed, err := c.pruner.PruneSyncLog(ctx, c.keep)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("sync log prune failed",
			"component", "worker",
			"action", "prune_failed",
			"error", err,
		)
		return
	}
	if removed > 0 {
		slog.Info("sync log pruned",
			"component", "worker",
			"action", "prune_complete",
			"removed", removed,
			"keep", c.keep,
		)
	}
}

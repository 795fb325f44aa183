package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/hyperengineering/leettrack/internal/config"
	"github.com/hyperengineering/leettrack/internal/exchange"
	"github.com/hyperengineering/leettrack/internal/metrics"
	"github.com/hyperengineering/leettrack/internal/remote"
	"github.com/hyperengineering/leettrack/internal/session"
	"github.com/hyperengineering/leettrack/internal/store"
	"github.com/hyperengineering/leettrack/internal/worker"
	"github.com/spf13/cobra"
)

// closeTimeout bounds the queue drain at the end of a CLI command.
const closeTimeout = 30 * time.Second

// app bundles the components shared by the server and the subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	cache   *store.SQLiteStore
	metrics *metrics.Metrics
	session *session.Session
}

// openApp wires the cache, the remote client and the session, then restores
// the last cached login. An empty cache path runs without a cache.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, notifier session.Notifier) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	if cfg.Cache.Path != "" {
		cache, err := store.NewSQLiteStore(ctx, cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}

	uploader, err := exchange.NewUploader(cfg.Export)
	if err != nil {
		a.closeCache()
		return nil, err
	}

	opts := session.Options{
		Remote:    remote.New(cfg.Remote.BaseURL, time.Duration(cfg.Remote.Timeout)),
		Cache:     a.cacheStore(),
		Uploader:  uploader,
		Notifier:  notifier,
		Metrics:   a.metrics,
		Logger:    logger,
		QueueSize: cfg.Remote.QueueSize,
	}
	s, err := session.New(opts)
	if err != nil {
		a.closeCache()
		return nil, err
	}
	a.session = s

	if err := s.Restore(ctx); err != nil && !errors.Is(err, store.ErrNoSession) {
		logger.Warn("cached session unreadable, starting logged out",
			"component", "cli",
			"error", err,
		)
	}
	return a, nil
}

// cacheStore returns the cache as a store.Store, or nil when disabled.
func (a *app) cacheStore() store.Store {
	if a.cache == nil {
		return nil
	}
	return a.cache
}

// pruner returns the cache as a worker.SyncLogPruner, or nil when disabled.
func (a *app) pruner() worker.SyncLogPruner {
	if a.cache == nil {
		return nil
	}
	return a.cache
}

// Close drains queued pushes, bounded by ctx, and closes the cache.
func (a *app) Close(ctx context.Context) error {
	err := a.session.Close(ctx)
	if cerr := a.closeCache(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (a *app) closeCache() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

// withApp loads configuration, opens the app for one subcommand and
// closes it afterwards. Logs go to stderr so stdout stays parseable.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Warn("pending changes may not have reached the server",
			"component", "cli",
			"error", err,
		)
	}
	return runErr
}

// requireLogin returns an error naming the login command when logged out.
func requireLogin(a *app) error {
	if !a.session.LoggedIn() {
		return fmt.Errorf("%w: run 'leettrack login' first", session.ErrNotLoggedIn)
	}
	return nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

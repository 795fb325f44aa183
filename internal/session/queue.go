package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/leettrack/internal/metrics"
	"github.com/hyperengineering/leettrack/internal/remote"
	"github.com/hyperengineering/leettrack/internal/store"
)

// push is one queued remote write.
type push struct {
	id      string
	kind    string
	target  string
	payload string
	send    func(ctx context.Context) error

	// barrier, when non-nil, is closed when the queue reaches this push.
	barrier chan struct{}
}

// syncQueue sends pushes to the remote one at a time in enqueue order.
// Failures are logged, counted and recorded; nothing is retried.
type syncQueue struct {
	jobs    chan push
	timeout time.Duration
	cache   store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	// mu guards closed; senders hold the read lock so close cannot race a send.
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newSyncQueue(size int, timeout time.Duration, cache store.Store, m *metrics.Metrics, logger *slog.Logger) *syncQueue {
	q := &syncQueue{
		jobs:    make(chan push, size),
		timeout: timeout,
		cache:   cache,
		metrics: m,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// enqueue adds p without blocking. A full or closed queue drops p.
func (q *syncQueue) enqueue(p push) bool {
	p.id = ulid.Make().String()

	q.mu.RLock()
	accepted, reason := false, "queue closed"
	if !q.closed {
		select {
		case q.jobs <- p:
			accepted = true
		default:
			reason = "queue full"
		}
	}
	q.mu.RUnlock()

	if !accepted {
		q.logger.Warn("push dropped",
			"component", "sync",
			"action", "drop",
			"reason", reason,
			"sync_id", p.id,
			"kind", p.kind,
			"target", p.target,
		)
		q.record(p, store.OutcomeDropped, nil)
		return false
	}
	q.metrics.QueueDepth(len(q.jobs))
	return true
}

// flush waits until every push enqueued before the call has been attempted.
func (q *syncQueue) flush(ctx context.Context) error {
	barrier := push{barrier: make(chan struct{})}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrClosed
	}
	select {
	case q.jobs <- barrier:
		q.mu.RUnlock()
	case <-ctx.Done():
		q.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-barrier.barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting pushes and waits for the queue to drain or ctx to end.
func (q *syncQueue) close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *syncQueue) run() {
	defer close(q.done)

	for p := range q.jobs {
		if p.barrier != nil {
			close(p.barrier)
			continue
		}
		q.send(p)
		q.metrics.QueueDepth(len(q.jobs))
	}
}

func (q *syncQueue) send(p push) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	err := p.send(ctx)

	outcome := store.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, remote.ErrRejected):
		outcome = store.OutcomeRejected
	default:
		outcome = store.OutcomeFailed
	}

	if err != nil {
		q.logger.Error("remote push failed",
			"component", "sync",
			"action", "push",
			"sync_id", p.id,
			"kind", p.kind,
			"target", p.target,
			"outcome", outcome,
			"error", err,
		)
	} else {
		q.logger.Debug("remote push completed",
			"component", "sync",
			"action", "push",
			"sync_id", p.id,
			"kind", p.kind,
			"target", p.target,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	q.record(p, outcome, err)
}

func (q *syncQueue) record(p push, outcome string, err error) {
	q.metrics.SyncPush(p.kind, outcome)
	if q.cache == nil {
		return
	}

	entry := store.SyncLogEntry{
		ID:      p.id,
		Kind:    p.kind,
		Target:  p.target,
		Payload: p.payload,
		Outcome: outcome,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, lerr := q.cache.AppendSyncLog(ctx, entry); lerr != nil {
		q.logger.Warn("failed to record sync outcome",
			"component", "sync",
			"action", "record",
			"sync_id", p.id,
			"error", lerr,
		)
	}
}

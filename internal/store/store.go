// Package store is the local SQLite cache of the active session. It keeps the
// last known user, goal and progress map between CLI invocations and records
// the outcome of every remote push. The remote API stays authoritative: login
// and refresh overwrite whatever is cached here.
package store

import (
	"context"
	"time"

	"github.com/hyperengineering/leettrack/internal/types"
)

// Sync log kinds.
const (
	KindProgress    = "progress"
	KindPreferences = "preferences"
)

// Sync log outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeDropped  = "dropped"
)

// Session is the cached identity of the logged-in user.
type Session struct {
	User      types.User `json:"user"`
	DailyGoal int        `json:"dailyGoal"`
	SavedAt   time.Time  `json:"savedAt"`
}

// SyncLogEntry records one remote push attempt.
type SyncLogEntry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Target    string    `json:"target"`
	Payload   string    `json:"payload"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CacheStats summarizes the cache contents.
type CacheStats struct {
	HasSession    bool       `json:"hasSession"`
	ProgressCount int64      `json:"progressCount"`
	SyncLogCount  int64      `json:"syncLogCount"`
	FailedPushes  int64      `json:"failedPushes"`
	LastSavedAt   *time.Time `json:"lastSavedAt,omitempty"`
}

// Store defines the cache operations used by the session.
type Store interface {
	SaveSession(ctx context.Context, s Session) error
	LoadSession(ctx context.Context) (*Session, error)
	ReplaceProgress(ctx context.Context, progress types.ProgressMap) error
	PutProgress(ctx context.Context, problemID string, rec types.ProgressRecord) error
	LoadProgress(ctx context.Context) (types.ProgressMap, error)
	Clear(ctx context.Context) error
	AppendSyncLog(ctx context.Context, entry SyncLogEntry) (*SyncLogEntry, error)
	RecentSyncLog(ctx context.Context, limit int) ([]SyncLogEntry, error)
	PruneSyncLog(ctx context.Context, keep int) (int64, error)
	Stats(ctx context.Context) (*CacheStats, error)
	Close() error
}

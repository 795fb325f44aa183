package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/hyperengineering/leettrack/internal/types"
)

// SQLiteStore is the SQLite-backed cache.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the cache at dbPath.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// One writer; also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if _, err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession stores the single cached session row, replacing any previous one.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess Session) error {
	if sess.SavedAt.IsZero() {
		sess.SavedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, user_id, username, email, leetcode_username, daily_goal,
		                     enable_daily_reminder, enable_end_of_day_summary, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			email = excluded.email,
			leetcode_username = excluded.leetcode_username,
			daily_goal = excluded.daily_goal,
			enable_daily_reminder = excluded.enable_daily_reminder,
			enable_end_of_day_summary = excluded.enable_end_of_day_summary,
			saved_at = excluded.saved_at
	`, sess.User.ID, sess.User.Username, sess.User.Email, sess.User.LeetCodeUsername, sess.DailyGoal,
		sess.User.Preferences.EnableDailyReminder, sess.User.Preferences.EnableEndOfDaySummary,
		sess.SavedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the cached session or ErrNoSession.
func (s *SQLiteStore) LoadSession(ctx context.Context) (*Session, error) {
	var (
		sess    Session
		savedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, email, leetcode_username, daily_goal,
		       enable_daily_reminder, enable_end_of_day_summary, saved_at
		FROM session WHERE id = 1
	`).Scan(&sess.User.ID, &sess.User.Username, &sess.User.Email, &sess.User.LeetCodeUsername, &sess.DailyGoal,
		&sess.User.Preferences.EnableDailyReminder, &sess.User.Preferences.EnableEndOfDaySummary, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	return &sess, nil
}

// ReplaceProgress swaps the cached progress map for progress in one transaction.
func (s *SQLiteStore) ReplaceProgress(ctx context.Context, progress types.ProgressMap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM progress"); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertProgressSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC().Format(time.RFC3339Nano)
	for id, rec := range progress {
		if _, err := stmt.ExecContext(ctx, progressArgs(id, rec.Normalize(), now)...); err != nil {
			return fmt.Errorf("insert progress %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const upsertProgressSQL = `
	INSERT INTO progress (problem_id, status, date_completed, priority, notes, time_spent, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(problem_id) DO UPDATE SET
		status = excluded.status,
		date_completed = excluded.date_completed,
		priority = excluded.priority,
		notes = excluded.notes,
		time_spent = excluded.time_spent,
		updated_at = excluded.updated_at
`

func progressArgs(id string, rec types.ProgressRecord, now string) []interface{} {
	var date sql.NullString
	if rec.DateCompleted != "" {
		date = sql.NullString{String: rec.DateCompleted, Valid: true}
	}
	return []interface{}{id, string(rec.Status), date, string(rec.Priority), rec.Notes, rec.TimeSpent, now}
}

// PutProgress upserts a single record.
func (s *SQLiteStore) PutProgress(ctx context.Context, problemID string, rec types.ProgressRecord) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, upsertProgressSQL, progressArgs(problemID, rec.Normalize(), now)...); err != nil {
		return fmt.Errorf("put progress %s: %w", problemID, err)
	}
	return nil
}

// LoadProgress returns the cached progress map. An empty cache yields an empty map.
func (s *SQLiteStore) LoadProgress(ctx context.Context) (types.ProgressMap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT problem_id, status, date_completed, priority, notes, time_spent FROM progress
	`)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	defer rows.Close()

	out := make(types.ProgressMap)
	for rows.Next() {
		var (
			id, status, priority string
			date                 sql.NullString
			rec                  types.ProgressRecord
		)
		if err := rows.Scan(&id, &status, &date, &priority, &rec.Notes, &rec.TimeSpent); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		rec.Status = types.Status(status)
		rec.Priority = types.Priority(priority)
		rec.DateCompleted = date.String
		out[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}

// Clear removes the cached session and progress. The sync log is kept.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM session", "DELETE FROM progress"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AppendSyncLog records a push attempt, assigning its ID and timestamp when unset.
func (s *SQLiteStore) AppendSyncLog(ctx context.Context, entry SyncLogEntry) (*SyncLogEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ulid.MustNew(ulid.Timestamp(entry.CreatedAt), ulid.DefaultEntropy()).String()
	}

	var errText sql.NullString
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log (id, kind, target, payload, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Kind, entry.Target, entry.Payload, entry.Outcome, errText, entry.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("append sync log: %w", err)
	}
	return &entry, nil
}

// RecentSyncLog returns up to limit entries, newest first. ULIDs sort by time.
func (s *SQLiteStore) RecentSyncLog(ctx context.Context, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, target, payload, outcome, error, created_at
		FROM sync_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync log: %w", err)
	}
	defer rows.Close()

	var out []SyncLogEntry
	for rows.Next() {
		var (
			e         SyncLogEntry
			errText   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Target, &e.Payload, &e.Outcome, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		e.Error = errText.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync log: %w", err)
	}
	return out, nil
}

// PruneSyncLog deletes all but the newest keep entries and returns how many were removed.
func (s *SQLiteStore) PruneSyncLog(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, ErrInvalidLimit
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_log WHERE id NOT IN (
			SELECT id FROM sync_log ORDER BY id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune sync log: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns aggregate cache statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*CacheStats, error) {
	var st CacheStats

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM progress").Scan(&st.ProgressCount); err != nil {
		return nil, fmt.Errorf("count progress: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN outcome != ? THEN 1 END) FROM sync_log
	`, OutcomeOK).Scan(&st.SyncLogCount, &st.FailedPushes); err != nil {
		return nil, fmt.Errorf("count sync log: %w", err)
	}

	var savedAt string
	err := s.db.QueryRowContext(ctx, "SELECT saved_at FROM session WHERE id = 1").Scan(&savedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("read session: %w", err)
	default:
		st.HasSession = true
		if t, perr := time.Parse(time.RFC3339Nano, savedAt); perr == nil {
			st.LastSavedAt = &t
		}
	}

	return &st, nil
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/leettrack/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_NewSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.LoadProgress(context.Background()); err != nil {
		t.Errorf("LoadProgress() on fresh cache error = %v", err)
	}
}

func TestStore_LoadSession_Empty(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadSession(context.Background())

	if !errors.Is(err, ErrNoSession) {
		t.Errorf("LoadSession() error = %v, want ErrNoSession", err)
	}
}

func TestStore_SaveSession_RoundTripAndReplace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	savedAt := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	first := Session{
		User: types.User{
			ID: "u1", Username: "alice", Email: "a@example.com", LeetCodeUsername: "alice_lc",
			Preferences: types.Preferences{EnableDailyReminder: true},
		},
		DailyGoal: 6,
		SavedAt:   savedAt,
	}
	if err := s.SaveSession(ctx, first); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := s.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if got.User != first.User || got.DailyGoal != 6 || !got.SavedAt.Equal(savedAt) {
		t.Errorf("LoadSession() = %+v, want %+v", got, first)
	}

	// A second save overwrites the single row.
	second := Session{User: types.User{ID: "u2", Username: "bob"}, DailyGoal: 3, SavedAt: savedAt}
	if err := s.SaveSession(ctx, second); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	got, err = s.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if got.User.ID != "u2" || got.User.Email != "" || got.DailyGoal != 3 {
		t.Errorf("LoadSession() = %+v, want second session", got)
	}
}

func TestStore_ReplaceProgress(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Given: a cache holding two records
	if err := s.ReplaceProgress(ctx, types.ProgressMap{
		"two-sum": {Status: types.StatusDone, DateCompleted: "2024-06-10", Priority: types.PriorityHigh, Notes: "hash map", TimeSpent: 15},
		"3sum":    {Status: types.StatusInProgress},
	}); err != nil {
		t.Fatalf("ReplaceProgress() error = %v", err)
	}

	// When: the map is replaced wholesale
	if err := s.ReplaceProgress(ctx, types.ProgressMap{
		"valid-anagram": {Status: types.StatusDone, DateCompleted: "2024-06-09"},
	}); err != nil {
		t.Fatalf("ReplaceProgress() error = %v", err)
	}

	// Then: nothing from the first map survives
	got, err := s.LoadProgress(ctx)
	if err != nil {
		t.Fatalf("LoadProgress() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %+v", len(got), got)
	}
	want := types.ProgressRecord{Status: types.StatusDone, DateCompleted: "2024-06-09", Priority: types.PriorityNone}
	if got["valid-anagram"] != want {
		t.Errorf("record = %+v, want %+v", got["valid-anagram"], want)
	}
}

func TestStore_PutProgress_Upserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := types.ProgressRecord{Status: types.StatusDone, DateCompleted: "2024-06-10", Priority: types.PriorityLow, Notes: "n", TimeSpent: 5}
	if err := s.PutProgress(ctx, "two-sum", rec); err != nil {
		t.Fatalf("PutProgress() error = %v", err)
	}
	rec.Status = types.StatusTodo
	rec.DateCompleted = ""
	if err := s.PutProgress(ctx, "two-sum", rec); err != nil {
		t.Fatalf("PutProgress() error = %v", err)
	}

	got, err := s.LoadProgress(ctx)
	if err != nil {
		t.Fatalf("LoadProgress() error = %v", err)
	}
	if len(got) != 1 || got["two-sum"] != rec {
		t.Errorf("LoadProgress() = %+v, want only %+v", got, rec)
	}
}

func TestStore_Clear_KeepsSyncLog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.SaveSession(ctx, Session{User: types.User{ID: "u1", Username: "alice"}, DailyGoal: 4}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutProgress(ctx, "two-sum", types.DefaultRecord()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendSyncLog(ctx, SyncLogEntry{Kind: KindProgress, Target: "two-sum", Payload: "{}", Outcome: OutcomeOK}); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, err := s.LoadSession(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("LoadSession() after Clear error = %v, want ErrNoSession", err)
	}
	progress, _ := s.LoadProgress(ctx)
	if len(progress) != 0 {
		t.Errorf("progress after Clear = %+v, want empty", progress)
	}
	log, _ := s.RecentSyncLog(ctx, 10)
	if len(log) != 1 {
		t.Errorf("sync log after Clear has %d entries, want 1", len(log))
	}
}

func TestStore_SyncLog_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, target := range []string{"a", "b", "c"} {
		entry, err := s.AppendSyncLog(ctx, SyncLogEntry{Kind: KindProgress, Target: target, Payload: `{"status":"done"}`, Outcome: OutcomeOK})
		if err != nil {
			t.Fatalf("AppendSyncLog() error = %v", err)
		}
		if entry.ID == "" || entry.CreatedAt.IsZero() {
			t.Errorf("entry = %+v, want ID and CreatedAt assigned", entry)
		}
	}

	got, err := s.RecentSyncLog(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSyncLog() error = %v", err)
	}
	if len(got) != 2 || got[0].Target != "c" || got[1].Target != "b" {
		t.Errorf("RecentSyncLog(2) = %+v, want c then b", got)
	}
}

func TestStore_SyncLog_KeepsErrorText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.AppendSyncLog(ctx, SyncLogEntry{Kind: KindPreferences, Target: "preferences", Payload: "{}", Outcome: OutcomeFailed, Error: "connection refused"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentSyncLog(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Error != "connection refused" || got[0].Outcome != OutcomeFailed || got[0].Kind != KindPreferences {
		t.Errorf("entry = %+v", got[0])
	}
}

func TestStore_RecentSyncLog_InvalidLimit(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.RecentSyncLog(context.Background(), 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("RecentSyncLog(0) error = %v, want ErrInvalidLimit", err)
	}
}

func TestStore_PruneSyncLog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.AppendSyncLog(ctx, SyncLogEntry{Kind: KindProgress, Target: "p", Payload: "{}", Outcome: OutcomeOK}); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.PruneSyncLog(ctx, 2)
	if err != nil {
		t.Fatalf("PruneSyncLog() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	left, _ := s.RecentSyncLog(ctx, 10)
	if len(left) != 2 {
		t.Errorf("left = %d entries, want 2", len(left))
	}
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.HasSession || st.ProgressCount != 0 || st.LastSavedAt != nil {
		t.Errorf("Stats() on empty cache = %+v", st)
	}

	s.SaveSession(ctx, Session{User: types.User{ID: "u1", Username: "alice"}, DailyGoal: 4})
	s.PutProgress(ctx, "a", types.DefaultRecord())
	s.PutProgress(ctx, "b", types.DefaultRecord())
	s.AppendSyncLog(ctx, SyncLogEntry{Kind: KindProgress, Target: "a", Payload: "{}", Outcome: OutcomeOK})
	s.AppendSyncLog(ctx, SyncLogEntry{Kind: KindProgress, Target: "b", Payload: "{}", Outcome: OutcomeRejected})
	s.AppendSyncLog(ctx, SyncLogEntry{Kind: KindProgress, Target: "b", Payload: "{}", Outcome: OutcomeFailed})

	st, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if !st.HasSession || st.LastSavedAt == nil {
		t.Errorf("Stats() session fields = %+v", st)
	}
	if st.ProgressCount != 2 || st.SyncLogCount != 3 || st.FailedPushes != 2 {
		t.Errorf("Stats() = %+v, want 2 progress, 3 log, 2 failed", st)
	}
}

func TestStore_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := s.PutProgress(ctx, id, types.ProgressRecord{Status: types.StatusInProgress}); err != nil {
				t.Errorf("PutProgress(%s) error = %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.LoadProgress(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Errorf("len = %d, want 20", len(got))
	}
}

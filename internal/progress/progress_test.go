package progress

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/hyperengineering/leettrack/internal/types"
)

const (
	day1 = "2024-06-09"
	day2 = "2024-06-10"
)

func statusUpdate(s types.Status) types.ProgressUpdate {
	return types.ProgressUpdate{Status: types.Ptr(s)}
}

func TestApply_StampsDateOnTransitionToDone(t *testing.T) {
	rec, eff := Apply(types.DefaultRecord(), statusUpdate(types.StatusDone), day2)

	if rec.Status != types.StatusDone {
		t.Errorf("Status = %q, want done", rec.Status)
	}
	if rec.DateCompleted != day2 {
		t.Errorf("DateCompleted = %q, want %q", rec.DateCompleted, day2)
	}
	if eff.DateCompleted == nil || *eff.DateCompleted != day2 {
		t.Errorf("effective DateCompleted = %v, want stamped %q", eff.DateCompleted, day2)
	}
}

func TestApply_DoneTwiceKeepsFirstStamp(t *testing.T) {
	// Given: a problem completed yesterday
	rec, _ := Apply(types.DefaultRecord(), statusUpdate(types.StatusDone), day1)

	// When: it is marked done again today
	rec, eff := Apply(rec, statusUpdate(types.StatusDone), day2)

	// Then: the original completion date survives
	if rec.DateCompleted != day1 {
		t.Errorf("DateCompleted = %q, want first stamp %q", rec.DateCompleted, day1)
	}
	if eff.DateCompleted != nil {
		t.Errorf("effective DateCompleted = %q, want unspecified", *eff.DateCompleted)
	}
}

func TestApply_LeavingDoneClearsDate(t *testing.T) {
	for _, s := range []types.Status{types.StatusTodo, types.StatusInProgress} {
		t.Run(string(s), func(t *testing.T) {
			done := types.ProgressRecord{Status: types.StatusDone, DateCompleted: day1}

			rec, eff := Apply(done, statusUpdate(s), day2)

			if rec.DateCompleted != "" {
				t.Errorf("DateCompleted = %q, want cleared", rec.DateCompleted)
			}
			if eff.DateCompleted == nil || *eff.DateCompleted != "" {
				t.Errorf("effective DateCompleted = %v, want explicit clear", eff.DateCompleted)
			}
		})
	}
}

func TestApply_ExplicitDateWins(t *testing.T) {
	t.Run("on transition to done", func(t *testing.T) {
		u := types.ProgressUpdate{Status: types.Ptr(types.StatusDone), DateCompleted: types.Ptr("2024-01-01")}
		rec, _ := Apply(types.DefaultRecord(), u, day2)
		if rec.DateCompleted != "2024-01-01" {
			t.Errorf("DateCompleted = %q, want caller's date", rec.DateCompleted)
		}
	})

	t.Run("on transition away from done", func(t *testing.T) {
		u := types.ProgressUpdate{Status: types.Ptr(types.StatusInProgress), DateCompleted: types.Ptr(day1)}
		rec, _ := Apply(types.ProgressRecord{Status: types.StatusDone, DateCompleted: day1}, u, day2)
		if rec.DateCompleted != day1 {
			t.Errorf("DateCompleted = %q, want caller's date kept", rec.DateCompleted)
		}
	})
}

func TestApply_ShallowMergePreservesUnspecifiedFields(t *testing.T) {
	existing := types.ProgressRecord{
		Status:        types.StatusDone,
		DateCompleted: day1,
		Priority:      types.PriorityHigh,
		Notes:         "use a monotonic stack",
		TimeSpent:     25,
	}

	rec, _ := Apply(existing, types.ProgressUpdate{TimeSpent: types.Ptr(40)}, day2)

	want := existing
	want.TimeSpent = 40
	if rec != want {
		t.Errorf("Apply() = %+v, want %+v", rec, want)
	}
}

func TestApply_NonStatusUpdateOnAbsentRecordKeepsDefaults(t *testing.T) {
	rec, eff := Apply(types.ProgressRecord{}, types.ProgressUpdate{Notes: types.Ptr("revisit")}, day2)

	if rec.Status != types.StatusTodo || rec.Priority != types.PriorityNone {
		t.Errorf("record = %+v, want todo/none defaults", rec)
	}
	if rec.DateCompleted != "" || eff.DateCompleted != nil {
		t.Error("a notes-only update must not touch the completion date")
	}
}

// After any sequence of status-only updates, DateCompleted is present iff the
// last status set was done.
func TestApply_DateInvariantUnderRandomSequences(t *testing.T) {
	statuses := []types.Status{types.StatusTodo, types.StatusInProgress, types.StatusDone}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		rec := types.DefaultRecord()
		last := types.StatusTodo
		for step := 0; step < 20; step++ {
			if rng.Intn(3) == 0 {
				rec, _ = Apply(rec, types.ProgressUpdate{Notes: types.Ptr("n")}, day2)
				continue
			}
			s := statuses[rng.Intn(len(statuses))]
			rec, _ = Apply(rec, statusUpdate(s), day2)
			last = s
		}

		hasDate := rec.DateCompleted != ""
		if hasDate != (last == types.StatusDone) {
			t.Fatalf("run %d: last status %q but DateCompleted = %q", run, last, rec.DateCompleted)
		}
	}
}

func TestStore_UpdateCreatesAndMerges(t *testing.T) {
	s := NewStore()

	s.Update("two-sum", types.ProgressUpdate{Priority: types.Ptr(types.PriorityLow)}, day2)
	s.Update("two-sum", statusUpdate(types.StatusDone), day2)

	rec, ok := s.Get("two-sum")
	if !ok {
		t.Fatal("Get() ok = false after Update")
	}
	if rec.Priority != types.PriorityLow || rec.Status != types.StatusDone || rec.DateCompleted != day2 {
		t.Errorf("record = %+v", rec)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_ReplaceAllIsWholesale(t *testing.T) {
	s := NewStore()
	s.Update("a", statusUpdate(types.StatusDone), day1)

	s.ReplaceAll(types.ProgressMap{"b": {Status: types.StatusInProgress}})

	if _, ok := s.Get("a"); ok {
		t.Error("ReplaceAll merged old keys, want wholesale replacement")
	}
	rec, _ := s.Get("b")
	if rec.Priority != types.PriorityNone {
		t.Errorf("Priority = %q, want normalized default", rec.Priority)
	}

	s.ReplaceAll(nil)
	if s.Len() != 0 {
		t.Errorf("Len() after ReplaceAll(nil) = %d, want 0", s.Len())
	}
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore()
	s.Update("a", statusUpdate(types.StatusDone), day1)

	snap := s.Snapshot()
	snap["a"] = types.ProgressRecord{Status: types.StatusTodo}

	rec, _ := s.Get("a")
	if rec.Status != types.StatusDone {
		t.Error("mutating a snapshot changed the store")
	}
}

func TestStore_OnChangeRunsAfterEveryMutation(t *testing.T) {
	s := NewStore()
	var calls int
	s.OnChange(func() {
		// Reading inside a listener must not deadlock.
		_ = s.Len()
		calls++
	})

	s.Update("a", statusUpdate(types.StatusDone), day1)
	s.ReplaceAll(types.ProgressMap{})

	if calls != 2 {
		t.Errorf("listener calls = %d, want 2", calls)
	}
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := []string{"a", "b", "c"}[i%3]
			s.Update(id, types.ProgressUpdate{TimeSpent: types.Ptr(i)}, day2)
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestFromEntries(t *testing.T) {
	entries := []types.ProgressEntry{
		{ProblemID: "a", ProgressRecord: types.ProgressRecord{Status: types.StatusDone, DateCompleted: day1}},
		{ProblemID: "", ProgressRecord: types.ProgressRecord{Status: types.StatusDone}},
		{ProblemID: "b", ProgressRecord: types.ProgressRecord{Notes: "x"}},
	}

	m := FromEntries(entries)

	if len(m) != 2 {
		t.Fatalf("len = %d, want 2 (entry without id skipped)", len(m))
	}
	if m["b"].Status != types.StatusTodo {
		t.Errorf("b.Status = %q, want normalized todo", m["b"].Status)
	}
	if m["a"].DateCompleted != day1 {
		t.Errorf("a.DateCompleted = %q, want %q", m["a"].DateCompleted, day1)
	}
}

func TestToEntries_RoundTrip(t *testing.T) {
	m := types.ProgressMap{
		"a": {Status: types.StatusDone, DateCompleted: day1, Priority: types.PriorityHigh, Notes: "n", TimeSpent: 3},
		"b": {Status: types.StatusInProgress, Priority: types.PriorityNone},
	}

	back := FromEntries(ToEntries(m))

	if len(back) != len(m) {
		t.Fatalf("len = %d, want %d", len(back), len(m))
	}
	for id, rec := range m {
		if back[id] != rec {
			t.Errorf("%s: got %+v, want %+v", id, back[id], rec)
		}
	}
}

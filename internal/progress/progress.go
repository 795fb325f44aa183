// Package progress holds the in-memory progress map of the active session
// and applies optimistic updates to it.
//
// Updates are visible locally as soon as Update returns. Remote persistence is
// the caller's concern and never rolls a local update back.
package progress

import (
	"sync"

	"github.com/hyperengineering/leettrack/internal/types"
)

// Apply merges update into existing and returns the new record together with
// the effective update (the caller's fields plus any date the merge stamped
// or cleared).
//
// The merge is a shallow field overwrite. A status transition into done from
// any other status stamps DateCompleted with today; setting any other status
// clears it. Both rules yield to an explicit DateCompleted in the update.
// done -> done is not a transition, so the first stamp is kept.
func Apply(existing types.ProgressRecord, update types.ProgressUpdate, today string) (types.ProgressRecord, types.ProgressUpdate) {
	rec := existing.Normalize()
	effective := update
	previous := rec.Status

	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.Priority != nil {
		rec.Priority = *update.Priority
	}
	if update.Notes != nil {
		rec.Notes = *update.Notes
	}
	if update.TimeSpent != nil {
		rec.TimeSpent = *update.TimeSpent
	}

	switch {
	case update.DateCompleted != nil:
		rec.DateCompleted = *update.DateCompleted
	case update.Status != nil && *update.Status == types.StatusDone && previous != types.StatusDone:
		rec.DateCompleted = today
		effective.DateCompleted = &today
	case update.Status != nil && *update.Status != types.StatusDone:
		rec.DateCompleted = ""
		cleared := ""
		effective.DateCompleted = &cleared
	}

	return rec, effective
}

// Store is the authoritative in-memory progress map of a session.
// It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	records   types.ProgressMap
	listeners []func()
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(types.ProgressMap)}
}

// Update applies update to the record for problemID, creating it with
// defaults if absent. The problem id is an opaque key and is not checked
// against the catalog. Listeners run after the lock is released.
func (s *Store) Update(problemID string, update types.ProgressUpdate, today string) (types.ProgressRecord, types.ProgressUpdate) {
	s.mu.Lock()
	existing, ok := s.records[problemID]
	if !ok {
		existing = types.DefaultRecord()
	}
	rec, effective := Apply(existing, update, today)
	s.records[problemID] = rec
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners)
	return rec, effective
}

// ReplaceAll swaps the whole map. There is no merging with the previous
// contents. A nil map empties the store.
func (s *Store) ReplaceAll(m types.ProgressMap) {
	next := make(types.ProgressMap, len(m))
	for id, rec := range m {
		next[id] = rec.Normalize()
	}

	s.mu.Lock()
	s.records = next
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners)
}

// Get returns the stored record for id and whether one exists.
func (s *Store) Get(id string) (types.ProgressRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return rec, ok
}

// Snapshot returns a copy of the current map.
func (s *Store) Snapshot() types.ProgressMap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.records.Clone()
}

// Len returns the number of touched problems.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// OnChange registers fn to run after every mutation.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}

// FromEntries converts the remote array form into a keyed map. Later
// entries for the same problem win.
func FromEntries(entries []types.ProgressEntry) types.ProgressMap {
	m := make(types.ProgressMap, len(entries))
	for _, e := range entries {
		if e.ProblemID == "" {
			continue
		}
		m[e.ProblemID] = e.ProgressRecord.Normalize()
	}
	return m
}

// ToEntries converts a keyed map into the remote array form.
func ToEntries(m types.ProgressMap) []types.ProgressEntry {
	out := make([]types.ProgressEntry, 0, len(m))
	for id, rec := range m {
		out = append(out, types.ProgressEntry{ProblemID: id, ProgressRecord: rec})
	}
	return out
}

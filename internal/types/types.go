package types

import (
	"encoding/json"
	"fmt"
)

// Difficulty represents how hard a catalog problem is
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Status is the per-problem workflow state
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inProgress"
	StatusDone       Status = "done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority is the user-assigned priority of a problem
type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Problem is a static, read-only catalog entry
type Problem struct {
	ID         string     `json:"id" yaml:"id"`
	Title      string     `json:"title" yaml:"title"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
	Link       string     `json:"link" yaml:"link"`
	Category   string     `json:"category" yaml:"-"`
}

// ProgressRecord is the per-user, per-problem mutable state.
// An empty DateCompleted means the date is absent.
type ProgressRecord struct {
	Status        Status   `json:"status"`
	DateCompleted string   `json:"dateCompleted,omitempty"`
	Priority      Priority `json:"priority"`
	Notes         string   `json:"notes"`
	TimeSpent     int      `json:"timeSpent"`
}

// DefaultRecord returns the record implied by an absent progress entry.
func DefaultRecord() ProgressRecord {
	return ProgressRecord{
		Status:   StatusTodo,
		Priority: PriorityNone,
	}
}

// Normalize fills empty enum fields with their defaults.
// Remote payloads omit fields the user never touched.
func (r ProgressRecord) Normalize() ProgressRecord {
	if r.Status == "" {
		r.Status = StatusTodo
	}
	if r.Priority == "" {
		r.Priority = PriorityNone
	}
	if r.TimeSpent < 0 {
		r.TimeSpent = 0
	}
	return r
}

// ProgressMap maps problem IDs to progress records. Keys exist only for
// problems the user has touched.
type ProgressMap map[string]ProgressRecord

// Clone returns an independent copy of m.
func (m ProgressMap) Clone() ProgressMap {
	out := make(ProgressMap, len(m))
	for id, rec := range m {
		out[id] = rec
	}
	return out
}

// ProgressEntry is the array form of a progress record used by the remote API.
type ProgressEntry struct {
	ProblemID string `json:"problemId"`
	ProgressRecord
}

// ProgressUpdate is a sparse update to a ProgressRecord. Nil fields are
// left untouched. DateCompleted is tri-state: nil (unspecified), pointer to
// a date (set), or pointer to "" (explicit clear, encoded as JSON null).
type ProgressUpdate struct {
	Status        *Status
	DateCompleted *string
	Priority      *Priority
	Notes         *string
	TimeSpent     *int
}

// IsEmpty reports whether the update specifies no fields.
func (u ProgressUpdate) IsEmpty() bool {
	return u.Status == nil && u.DateCompleted == nil && u.Priority == nil &&
		u.Notes == nil && u.TimeSpent == nil
}

// MarshalJSON writes only specified fields; an explicit date clear is null.
func (u ProgressUpdate) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 5)
	if u.Status != nil {
		out["status"] = *u.Status
	}
	if u.DateCompleted != nil {
		if *u.DateCompleted == "" {
			out["dateCompleted"] = nil
		} else {
			out["dateCompleted"] = *u.DateCompleted
		}
	}
	if u.Priority != nil {
		out["priority"] = *u.Priority
	}
	if u.Notes != nil {
		out["notes"] = *u.Notes
	}
	if u.TimeSpent != nil {
		out["timeSpent"] = *u.TimeSpent
	}
	return json.Marshal(out)
}

// UnmarshalJSON distinguishes absent fields from explicit nulls.
func (u *ProgressUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = ProgressUpdate{}
	for key, value := range raw {
		isNull := string(value) == "null"
		switch key {
		case "status":
			if isNull {
				continue
			}
			var s Status
			if err := json.Unmarshal(value, &s); err != nil {
				return fmt.Errorf("status: %w", err)
			}
			u.Status = &s
		case "dateCompleted":
			d := ""
			if !isNull {
				if err := json.Unmarshal(value, &d); err != nil {
					return fmt.Errorf("dateCompleted: %w", err)
				}
			}
			u.DateCompleted = &d
		case "priority":
			if isNull {
				continue
			}
			var p Priority
			if err := json.Unmarshal(value, &p); err != nil {
				return fmt.Errorf("priority: %w", err)
			}
			u.Priority = &p
		case "notes":
			n := ""
			if !isNull {
				if err := json.Unmarshal(value, &n); err != nil {
					return fmt.Errorf("notes: %w", err)
				}
			}
			u.Notes = &n
		case "timeSpent":
			if isNull {
				continue
			}
			var m int
			if err := json.Unmarshal(value, &m); err != nil {
				return fmt.Errorf("timeSpent: %w", err)
			}
			u.TimeSpent = &m
		}
	}
	return nil
}

// CategoryProgress is the completion summary of one catalog category
type CategoryProgress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Percentage int `json:"percentage"`
}

// Statistics is the derived aggregate view. It is recomputed on demand and
// never persisted.
type Statistics struct {
	Total            int                         `json:"total"`
	Completed        int                         `json:"completed"`
	InProgress       int                         `json:"inProgress"`
	Todo             int                         `json:"todo"`
	TodayCompleted   int                         `json:"todayCompleted"`
	Streak           int                         `json:"streak"`
	CategoryProgress map[string]CategoryProgress `json:"categoryProgress"`
}

// MarshalJSON ensures a nil category map marshals as {} not null.
func (s Statistics) MarshalJSON() ([]byte, error) {
	if s.CategoryProgress == nil {
		s.CategoryProgress = map[string]CategoryProgress{}
	}
	type Alias Statistics
	return json.Marshal(Alias(s))
}

// Preferences holds the email notification switches of a user
type Preferences struct {
	EnableDailyReminder   bool `json:"enableDailyReminder"`
	EnableEndOfDaySummary bool `json:"enableEndOfDaySummary"`
}

// User is the authenticated account of the active session
type User struct {
	ID               string      `json:"id"`
	Username         string      `json:"username"`
	Email            string      `json:"email"`
	LeetCodeUsername string      `json:"leetcodeUsername,omitempty"`
	Preferences      Preferences `json:"preferences"`
}

// ProblemWithProgress joins a catalog problem with the user's record.
type ProblemWithProgress struct {
	Problem
	ProgressRecord
}

// Ptr returns a pointer to v. Handy for building sparse updates.
func Ptr[T any](v T) *T {
	return &v
}

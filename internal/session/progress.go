package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hyperengineering/leettrack/internal/calendar"
	"github.com/hyperengineering/leettrack/internal/catalog"
	"github.com/hyperengineering/leettrack/internal/remote"
	"github.com/hyperengineering/leettrack/internal/stats"
	"github.com/hyperengineering/leettrack/internal/store"
	"github.com/hyperengineering/leettrack/internal/types"
	"github.com/hyperengineering/leettrack/internal/validation"
)

// PreferencesUpdate is a partial preferences change. Nil fields are left alone.
type PreferencesUpdate = remote.PreferencesUpdate

// MaxLeetCodeUsernameLength bounds the linked profile name.
const MaxLeetCodeUsernameLength = 100

// progressPayload mirrors the remote request body for the sync log.
type progressPayload struct {
	ProblemID string               `json:"problemId"`
	Updates   types.ProgressUpdate `json:"updates"`
}

// UpdateProgress applies update to the problem's record immediately and
// queues the effective change for the remote. It returns false without
// touching anything when no user is logged in.
func (s *Session) UpdateProgress(problemID string, update types.ProgressUpdate) (types.ProgressRecord, bool) {
	s.writeMu.Lock()
	user, _ := s.snapshotUser()
	if user == nil {
		s.writeMu.Unlock()
		return types.ProgressRecord{}, false
	}

	rec, effective := s.progress.Update(problemID, update, calendar.Today(s.clock))

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.cache.PutProgress(ctx, problemID, rec); err != nil {
			s.logger.Warn("failed to cache progress",
				"component", "session",
				"action", "update_progress",
				"problem_id", problemID,
				"error", err,
			)
		}
		cancel()
	}
	s.writeMu.Unlock()

	s.metrics.ProgressUpdate(string(rec.Status))

	userID := user.ID
	s.queue.enqueue(push{
		kind:    store.KindProgress,
		target:  problemID,
		payload: s.auditPayload("update_progress", progressPayload{ProblemID: problemID, Updates: effective}),
		send: func(ctx context.Context) error {
			return s.remote.PushProgress(ctx, userID, problemID, effective)
		},
	})

	s.publish()
	return rec, true
}

// auditPayload renders v for the sync log. A failure leaves the entry's
// payload empty; the push itself still goes out.
func (s *Session) auditPayload(action string, v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to encode sync log payload",
			"component", "session",
			"action", action,
			"error", err,
		)
		return ""
	}
	return string(data)
}

// SetDailyGoal changes the daily goal. Values outside [1, 20] are rejected
// with validation.ErrInvalidDailyGoal and change nothing.
func (s *Session) SetDailyGoal(goal int) error {
	return s.UpdatePreferences(PreferencesUpdate{DailyGoal: &goal})
}

// UpdatePreferences validates u, applies it locally and queues it for the
// remote. A failed push is logged and left applied.
func (s *Session) UpdatePreferences(u PreferencesUpdate) error {
	if err := validatePreferences(u); err != nil {
		return err
	}

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotLoggedIn
	}
	userID := s.user.ID
	goalChanged := false
	if u.DailyGoal != nil {
		goalChanged = *u.DailyGoal != s.dailyGoal
		s.dailyGoal = *u.DailyGoal
	}
	if u.LeetCodeUsername != nil {
		s.user.LeetCodeUsername = *u.LeetCodeUsername
	}
	if u.Email != nil {
		s.user.Email = *u.Email
	}
	if u.Preferences != nil {
		s.user.Preferences = *u.Preferences
	}
	s.mu.Unlock()

	s.saveCache(false)

	s.queue.enqueue(push{
		kind:    store.KindPreferences,
		target:  userID,
		payload: s.auditPayload("update_preferences", u),
		send: func(ctx context.Context) error {
			return s.remote.SavePreferences(ctx, userID, u)
		},
	})

	if goalChanged {
		s.changed()
	}
	return nil
}

func validatePreferences(u PreferencesUpdate) error {
	if u.IsEmpty() {
		return validation.Errors{{Field: "preferences", Message: "at least one field must be provided"}}
	}

	var c validation.Collector
	if u.DailyGoal != nil {
		if err := validation.ValidateDailyGoal(*u.DailyGoal); err != nil {
			return err
		}
	}
	if u.Email != nil {
		c.Add(validation.ValidateEmail("email", *u.Email))
	}
	if u.LeetCodeUsername != nil {
		name := *u.LeetCodeUsername
		c.Add(validation.ValidateUTF8("leetcodeUsername", name))
		c.Add(validation.ValidateNoNullBytes("leetcodeUsername", name))
		c.Add(validation.ValidateMaxLength("leetcodeUsername", name, MaxLeetCodeUsernameLength))
	}
	return c.Err()
}

// Progress returns the record for one problem and whether one exists.
func (s *Session) Progress(problemID string) (types.ProgressRecord, bool) {
	return s.progress.Get(problemID)
}

// Statistics recomputes the aggregate counts for today.
func (s *Session) Statistics() types.Statistics {
	return s.statisticsAt(s.clock.Now())
}

func (s *Session) statisticsAt(now time.Time) types.Statistics {
	return stats.Compute(s.catalog, s.progress.Snapshot(), now)
}

// Goal reports today's progress toward the daily goal.
func (s *Session) Goal() stats.GoalProgress {
	st := s.Statistics()
	return stats.Goal(st.TodayCompleted, s.DailyGoal())
}

// ProblemsWithProgress lists catalog problems joined with their records,
// narrowed by f.
func (s *Session) ProblemsWithProgress(f catalog.Filter) []types.ProblemWithProgress {
	return f.Apply(s.catalog.WithProgress(s.progress.Snapshot()))
}

package session

import (
	"context"
	"log/slog"

	"github.com/hyperengineering/leettrack/internal/calendar"
	"github.com/hyperengineering/leettrack/internal/stats"
	"github.com/hyperengineering/leettrack/internal/types"
)

// EventType identifies what changed.
type EventType string

const (
	// EventStatistics carries freshly recomputed statistics after any
	// progress or goal change.
	EventStatistics EventType = "statistics"

	// EventGoalAchieved fires the first time the daily goal is met on a
	// calendar day.
	EventGoalAchieved EventType = "goalAchieved"
)

// Event is delivered to subscribers on every state change.
type Event struct {
	Type       EventType           `json:"type"`
	Statistics *types.Statistics   `json:"statistics,omitempty"`
	Goal       *stats.GoalProgress `json:"goal,omitempty"`
}

// Notifier is told when the user reaches the daily goal.
type Notifier interface {
	GoalAchieved(ctx context.Context, user types.User, goal stats.GoalProgress)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, user types.User, goal stats.GoalProgress)

// GoalAchieved calls f.
func (f NotifierFunc) GoalAchieved(ctx context.Context, user types.User, goal stats.GoalProgress) {
	f(ctx, user, goal)
}

// LogNotifier logs goal notifications.
type LogNotifier struct {
	Logger *slog.Logger
}

// GoalAchieved logs the achievement at info level.
func (n LogNotifier) GoalAchieved(ctx context.Context, user types.User, goal stats.GoalProgress) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "daily goal achieved",
		"component", "session",
		"action", "goal",
		"user", user.Username,
		"completed", goal.Completed,
		"goal", goal.Goal,
	)
}

// Subscribe registers fn for every Event and returns a function that
// removes it. fn runs on the goroutine that made the change and must not block.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Session) emit(ev Event) {
	s.subMu.Lock()
	subs := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// publish calls changed if the progress map was modified since the last call.
func (s *Session) publish() {
	if s.dirty.Swap(false) {
		s.changed()
	}
}

// changed recomputes statistics, publishes them and fires the goal
// notification at most once per calendar day.
func (s *Session) changed() {
	user, goal := s.snapshotUser()

	now := s.clock.Now()
	st := s.statisticsAt(now)
	gp := stats.Goal(st.TodayCompleted, goal)
	s.emit(Event{Type: EventStatistics, Statistics: &st, Goal: &gp})

	if user == nil || !gp.Achieved {
		return
	}

	today := calendar.DateKey(now)
	s.notifyMu.Lock()
	if s.notifiedDay == today {
		s.notifyMu.Unlock()
		return
	}
	s.notifiedDay = today
	s.notifyMu.Unlock()

	if s.notifier != nil {
		s.notifier.GoalAchieved(context.Background(), *user, gp)
	}
	s.emit(Event{Type: EventGoalAchieved, Statistics: &st, Goal: &gp})
}

// Package session holds the application state of one logged-in user: the
// identity, the progress map, the daily goal and the queue of remote writes.
//
// Every read is served from memory. Writes apply locally first and are then
// pushed to the remote in order; a failed push is logged and recorded but
// never rolled back.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperengineering/leettrack/internal/calendar"
	"github.com/hyperengineering/leettrack/internal/catalog"
	"github.com/hyperengineering/leettrack/internal/exchange"
	"github.com/hyperengineering/leettrack/internal/metrics"
	"github.com/hyperengineering/leettrack/internal/progress"
	"github.com/hyperengineering/leettrack/internal/remote"
	"github.com/hyperengineering/leettrack/internal/stats"
	"github.com/hyperengineering/leettrack/internal/store"
	"github.com/hyperengineering/leettrack/internal/types"
)

var (
	// ErrNotLoggedIn is returned by operations that need a user.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session is closed")

	// ErrNoLeetCodeUsername is returned when no profile username is known.
	ErrNoLeetCodeUsername = errors.New("no LeetCode username linked")
)

// Defaults applied by New.
const (
	DefaultQueueSize   = 256
	DefaultPushTimeout = 30 * time.Second
)

// Remote is the backend API used by a Session. *remote.Client implements it.
type Remote interface {
	Login(ctx context.Context, username, password string) (*remote.AuthResponse, error)
	Signup(ctx context.Context, username, password, email string) (*remote.AuthResponse, error)
	FetchUser(ctx context.Context, userID string) (*remote.UserData, error)
	PushProgress(ctx context.Context, userID, problemID string, update types.ProgressUpdate) error
	SavePreferences(ctx context.Context, userID string, prefs remote.PreferencesUpdate) error
	LeetCodeStats(ctx context.Context, username string) (*remote.LeetCodeStats, error)
	RecentSubmissions(ctx context.Context, username string) ([]remote.Submission, error)
	TestEmail(ctx context.Context, email string) (*remote.StatusResponse, error)
	SendReminder(ctx context.Context, req remote.ReminderRequest) (*remote.StatusResponse, error)
	SendSummary(ctx context.Context, req remote.SummaryRequest) (*remote.StatusResponse, error)
}

// Options configures a Session. Only Remote is required.
type Options struct {
	Remote      Remote
	Catalog     *catalog.Catalog
	Cache       store.Store
	Uploader    exchange.Uploader
	Clock       calendar.Clock
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	QueueSize   int
	PushTimeout time.Duration
}

// AuthResult is the outcome of Login or Signup. Failures are reported here,
// never as errors.
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Session is safe for concurrent use.
type Session struct {
	remote   Remote
	catalog  *catalog.Catalog
	cache    store.Store
	uploader exchange.Uploader
	clock    calendar.Clock
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	progress *progress.Store
	queue    *syncQueue

	// writeMu serializes local writes to the progress map and the cache.
	// Subscribers are only called once it is released.
	writeMu sync.Mutex
	dirty   atomic.Bool

	mu        sync.RWMutex
	user      *types.User
	dailyGoal int

	notifyMu    sync.Mutex
	notifiedDay string

	subMu       sync.Mutex
	subscribers map[int]func(Event)
	nextSub     int
}

// New creates a logged-out Session and starts its sync queue.
func New(opts Options) (*Session, error) {
	if opts.Remote == nil {
		return nil, errors.New("session: remote is required")
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Uploader == nil {
		opts.Uploader = exchange.NoopUploader{}
	}
	if opts.Clock == nil {
		opts.Clock = calendar.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = DefaultPushTimeout
	}

	s := &Session{
		remote:      opts.Remote,
		catalog:     opts.Catalog,
		cache:       opts.Cache,
		uploader:    opts.Uploader,
		clock:       opts.Clock,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		progress:    progress.NewStore(),
		dailyGoal:   stats.DefaultDailyGoal,
		subscribers: make(map[int]func(Event)),
	}
	s.queue = newSyncQueue(opts.QueueSize, opts.PushTimeout, opts.Cache, opts.Metrics, opts.Logger)
	s.progress.OnChange(func() { s.dirty.Store(true) })

	return s, nil
}

// Login authenticates, then loads the user's data and replaces the local
// progress map with it. If that load fails the login still succeeds with an
// empty map.
func (s *Session) Login(ctx context.Context, username, password string) AuthResult {
	resp, err := s.remote.Login(ctx, username, password)
	if err != nil {
		return s.authFailure("login", err, "Network error during login")
	}

	s.setUser(types.User{
		ID:          resp.UserID,
		Username:    resp.Username,
		Email:       resp.Email,
		Preferences: resp.Preferences,
	}, stats.DefaultDailyGoal)

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("failed to load user data after login",
			"component", "session",
			"action", "login",
			"user_id", resp.UserID,
			"error", err,
		)
	}

	s.logger.Info("logged in",
		"component", "session",
		"action", "login",
		"user_id", resp.UserID,
	)
	return AuthResult{Success: true, Message: "Login successful"}
}

// Signup creates an account and logs into it with empty progress.
func (s *Session) Signup(ctx context.Context, username, password, email string) AuthResult {
	resp, err := s.remote.Signup(ctx, username, password, email)
	if err != nil {
		return s.authFailure("signup", err, "Network error during signup")
	}

	s.setUser(types.User{
		ID:       resp.UserID,
		Username: resp.Username,
		Email:    resp.Email,
	}, stats.DefaultDailyGoal)

	s.logger.Info("signed up",
		"component", "session",
		"action", "signup",
		"user_id", resp.UserID,
	)
	return AuthResult{Success: true, Message: "Signup successful"}
}

func (s *Session) authFailure(action string, err error, networkMessage string) AuthResult {
	s.logger.Warn("authentication failed",
		"component", "session",
		"action", action,
		"error", err,
	)
	if errors.Is(err, remote.ErrRejected) {
		msg := remote.Message(err)
		if msg == "" {
			msg = "Authentication failed"
		}
		return AuthResult{Success: false, Message: msg}
	}
	return AuthResult{Success: false, Message: networkMessage}
}

// setUser installs a new identity with an empty progress map.
func (s *Session) setUser(user types.User, goal int) {
	s.writeMu.Lock()
	s.mu.Lock()
	s.user = &user
	s.dailyGoal = goal
	s.mu.Unlock()

	s.notifyMu.Lock()
	s.notifiedDay = ""
	s.notifyMu.Unlock()

	s.progress.ReplaceAll(nil)
	s.saveCache(true)
	s.writeMu.Unlock()

	s.publish()
}

// Logout forgets the user and the progress map and clears the cache.
// Queued pushes still go out under the user they were made for.
func (s *Session) Logout() {
	s.writeMu.Lock()
	s.mu.Lock()
	s.user = nil
	s.dailyGoal = stats.DefaultDailyGoal
	s.mu.Unlock()

	s.progress.ReplaceAll(nil)

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.cache.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear cache",
				"component", "session",
				"action", "logout",
				"error", err,
			)
		}
		cancel()
	}
	s.writeMu.Unlock()

	s.publish()
}

// Restore reloads the last cached session without contacting the remote.
// It returns store.ErrNoSession when nothing is cached.
func (s *Session) Restore(ctx context.Context) error {
	if s.cache == nil {
		return store.ErrNoSession
	}

	cached, err := s.cache.LoadSession(ctx)
	if err != nil {
		return err
	}
	pm, err := s.cache.LoadProgress(ctx)
	if err != nil {
		return fmt.Errorf("restore progress: %w", err)
	}

	goal := cached.DailyGoal
	if goal <= 0 {
		goal = stats.DefaultDailyGoal
	}
	user := cached.User

	s.writeMu.Lock()
	s.mu.Lock()
	s.user = &user
	s.dailyGoal = goal
	s.mu.Unlock()

	s.progress.ReplaceAll(pm)
	s.writeMu.Unlock()

	s.publish()
	return nil
}

// Refresh fetches the user's data and replaces local state with it. A local
// edit made while the fetch is in flight is overwritten.
func (s *Session) Refresh(ctx context.Context) error {
	userID := s.UserID()
	if userID == "" {
		return ErrNotLoggedIn
	}

	data, err := s.remote.FetchUser(ctx, userID)
	if err != nil {
		s.metrics.Refresh("failed")
		return fmt.Errorf("fetch user data: %w", err)
	}

	s.writeMu.Lock()
	s.mu.Lock()
	if s.user == nil || s.user.ID != userID {
		// Logged out or switched user during the fetch.
		s.mu.Unlock()
		s.writeMu.Unlock()
		s.metrics.Refresh("discarded")
		return nil
	}
	s.user.Username = data.Username
	s.user.Email = data.Email
	s.user.LeetCodeUsername = data.LeetCodeUsername
	s.user.Preferences = data.Preferences
	s.dailyGoal = data.DailyGoal
	if s.dailyGoal <= 0 {
		s.dailyGoal = stats.DefaultDailyGoal
	}
	s.mu.Unlock()

	s.progress.ReplaceAll(progress.FromEntries(data.Progress))
	s.saveCache(true)
	s.writeMu.Unlock()

	s.publish()
	s.metrics.Refresh("ok")
	return nil
}

// saveCache writes the session row and, with withProgress, the whole map.
func (s *Session) saveCache(withProgress bool) {
	if s.cache == nil {
		return
	}
	user, goal := s.snapshotUser()
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.cache.SaveSession(ctx, store.Session{User: *user, DailyGoal: goal, SavedAt: s.clock.Now()})
	if err == nil && withProgress {
		err = s.cache.ReplaceProgress(ctx, s.progress.Snapshot())
	}
	if err != nil {
		s.logger.Warn("failed to write cache",
			"component", "session",
			"action", "cache",
			"error", err,
		)
	}
}

// snapshotUser returns a copy of the user (nil when logged out) and the goal.
func (s *Session) snapshotUser() (*types.User, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, s.dailyGoal
	}
	u := *s.user
	return &u, s.dailyGoal
}

// User returns the logged-in user, or nil.
func (s *Session) User() *types.User {
	u, _ := s.snapshotUser()
	return u
}

// UserID returns the logged-in user's ID, or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// LoggedIn reports whether a user is active.
func (s *Session) LoggedIn() bool {
	return s.UserID() != ""
}

// DailyGoal returns the current daily goal.
func (s *Session) DailyGoal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dailyGoal
}

// Catalog returns the catalog the session computes statistics over.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Flush waits until every push queued so far has been attempted.
func (s *Session) Flush(ctx context.Context) error {
	return s.queue.flush(ctx)
}

// Close stops accepting pushes and drains the queue, bounded by ctx.
func (s *Session) Close(ctx context.Context) error {
	return s.queue.close(ctx)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/leettrack/internal/calendar"
	"github.com/hyperengineering/leettrack/internal/catalog"
	"github.com/hyperengineering/leettrack/internal/exchange"
	"github.com/hyperengineering/leettrack/internal/metrics"
	"github.com/hyperengineering/leettrack/internal/remote"
	"github.com/hyperengineering/leettrack/internal/session"
	"github.com/hyperengineering/leettrack/internal/stats"
	"github.com/hyperengineering/leettrack/internal/store"
	"github.com/hyperengineering/leettrack/internal/types"
)

var testNow = time.Date(2024, time.June, 10, 15, 30, 0, 0, time.UTC)

// --- Mock Implementations for Testing ---

// mockRemote implements session.Remote for testing
type mockRemote struct {
	mu        sync.Mutex
	pushes    []string
	prefs     []remote.PreferencesUpdate
	userData  *remote.UserData
	pushErr   error
	loginResp *remote.AuthResponse
}

func newMockRemote() *mockRemote {
	return &mockRemote{
		loginResp: &remote.AuthResponse{Success: true, UserID: "u1", Username: "alice", Email: "alice@example.com"},
		userData: &remote.UserData{
			Username:  "alice",
			Email:     "alice@example.com",
			DailyGoal: 3,
			Progress: []types.ProgressEntry{
				{ProblemID: "contains-duplicate", ProgressRecord: types.ProgressRecord{Status: types.StatusDone, DateCompleted: "2024-06-09", Priority: types.PriorityNone}},
			},
		},
	}
}

func (m *mockRemote) Login(ctx context.Context, username, password string) (*remote.AuthResponse, error) {
	return m.loginResp, nil
}

func (m *mockRemote) Signup(ctx context.Context, username, password, email string) (*remote.AuthResponse, error) {
	return m.loginResp, nil
}

func (m *mockRemote) FetchUser(ctx context.Context, userID string) (*remote.UserData, error) {
	return m.userData, nil
}

func (m *mockRemote) PushProgress(ctx context.Context, userID, problemID string, update types.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, problemID)
	return m.pushErr
}

func (m *mockRemote) SavePreferences(ctx context.Context, userID string, prefs remote.PreferencesUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = append(m.prefs, prefs)
	return nil
}

func (m *mockRemote) LeetCodeStats(ctx context.Context, username string) (*remote.LeetCodeStats, error) {
	return &remote.LeetCodeStats{}, nil
}

func (m *mockRemote) RecentSubmissions(ctx context.Context, username string) ([]remote.Submission, error) {
	return nil, nil
}

func (m *mockRemote) TestEmail(ctx context.Context, email string) (*remote.StatusResponse, error) {
	return &remote.StatusResponse{Success: true}, nil
}

func (m *mockRemote) SendReminder(ctx context.Context, req remote.ReminderRequest) (*remote.StatusResponse, error) {
	return &remote.StatusResponse{Success: true}, nil
}

func (m *mockRemote) SendSummary(ctx context.Context, req remote.SummaryRequest) (*remote.StatusResponse, error) {
	return &remote.StatusResponse{Success: true}, nil
}

type testEnv struct {
	remote  *mockRemote
	session *session.Session
	cache   *store.SQLiteStore
	router  http.Handler
	hub     *Hub
}

func newTestEnv(t *testing.T, apiKey string, loggedIn bool) *testEnv {
	t.Helper()
	m := newMockRemote()

	cache, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	s, err := session.New(session.Options{
		Remote:  m,
		Catalog: catalog.Default(),
		Cache:   cache,
		Clock:   calendar.FixedClock{T: testNow},
		Metrics: metrics.New(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close(ctx)
	})

	if loggedIn {
		if res := s.Login(context.Background(), "alice", "pw"); !res.Success {
			t.Fatalf("Login() = %+v", res)
		}
	}

	hub := NewHub(s)
	t.Cleanup(hub.Close)
	h := NewHandler(s, cache, apiKey, "test")
	return &testEnv{
		remote:  m,
		session: s,
		cache:   cache,
		router:  NewRouter(h, hub, metrics.New().Handler()),
		hub:     hub,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("response %q is not JSON: %v", w.Body.String(), err)
	}
}

// --- Health ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testAPIKey, true)

	// Health is public even with an API key configured.
	w := env.do(t, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	decodeJSON(t, w, &resp)
	if resp.Status != "healthy" || resp.Version != "test" || !resp.LoggedIn || resp.Username != "alice" {
		t.Errorf("health = %+v", resp)
	}
	if resp.Problems != catalog.Default().Len() {
		t.Errorf("problems = %d, want %d", resp.Problems, catalog.Default().Len())
	}
}

func TestProtectedRoutes_RequireKey(t *testing.T) {
	env := newTestEnv(t, testAPIKey, true)

	w := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", rec.Code)
	}
}

// --- Problems ---

func TestListProblems_Filter(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/api/v1/problems?status=done", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var problems []types.ProblemWithProgress
	decodeJSON(t, w, &problems)
	if len(problems) != 1 || problems[0].ID != "contains-duplicate" {
		t.Errorf("problems = %+v, want only contains-duplicate", problems)
	}
}

func TestListProblems_Search(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/api/v1/problems?q=TWO+SUM", "")

	var problems []types.ProblemWithProgress
	decodeJSON(t, w, &problems)
	if len(problems) == 0 {
		t.Fatal("search returned nothing")
	}
	for _, p := range problems {
		if !strings.Contains(strings.ToLower(p.Title), "two sum") {
			t.Errorf("unexpected match %q", p.Title)
		}
	}
}

func TestListProblems_EmptyResultIsArray(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/api/v1/problems?q=no-such-problem-xyz", "")

	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", w.Body.String())
	}
}

func TestListProblems_InvalidStatus(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/api/v1/problems?status=finished", "")

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

// --- Stats / Goal ---

func TestStats(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/api/v1/stats", "")

	var st types.Statistics
	decodeJSON(t, w, &st)
	if st.Completed != 1 || st.Streak != 1 || st.Total != catalog.Default().Len() {
		t.Errorf("stats = %+v", st)
	}
	if _, ok := st.CategoryProgress["arrays"]; !ok {
		t.Errorf("categoryProgress missing arrays: %+v", st.CategoryProgress)
	}
}

func TestGoal_GetAndSet(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/api/v1/goal", "")
	var gp stats.GoalProgress
	decodeJSON(t, w, &gp)
	if gp.Goal != 3 {
		t.Errorf("goal = %+v, want 3", gp)
	}

	w = env.do(t, http.MethodPut, "/api/v1/goal", `{"dailyGoal":8}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", w.Code, w.Body.String())
	}
	decodeJSON(t, w, &gp)
	if gp.Goal != 8 || env.session.DailyGoal() != 8 {
		t.Errorf("goal after PUT = %+v", gp)
	}
}

func TestSetGoal_Invalid(t *testing.T) {
	env := newTestEnv(t, "", true)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"out of range", `{"dailyGoal":21}`, http.StatusUnprocessableEntity},
		{"zero", `{"dailyGoal":0}`, http.StatusUnprocessableEntity},
		{"missing", `{}`, http.StatusUnprocessableEntity},
		{"bad json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/v1/goal", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
	if got := env.session.DailyGoal(); got != 3 {
		t.Errorf("DailyGoal() = %d, want unchanged 3", got)
	}
}

func TestSetGoal_LoggedOut(t *testing.T) {
	env := newTestEnv(t, "", false)

	w := env.do(t, http.MethodPut, "/api/v1/goal", `{"dailyGoal":5}`)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestUpdatePreferences(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodPut, "/api/v1/preferences", `{"leetcodeUsername":"alice_lc","preferences":{"enableDailyReminder":true}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var u types.User
	decodeJSON(t, w, &u)
	if u.LeetCodeUsername != "alice_lc" || !u.Preferences.EnableDailyReminder {
		t.Errorf("user = %+v", u)
	}

	w = env.do(t, http.MethodPut, "/api/v1/preferences", `{"email":"nope"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid email status = %d, want 422", w.Code)
	}
}

// --- Progress ---

func TestUpdateProgress(t *testing.T) {
	env := newTestEnv(t, "", true)

	// When: marking a problem done
	w := env.do(t, http.MethodPut, "/api/v1/progress/two-sum", `{"status":"done","notes":"hash map"}`)

	// Then: the stamped record comes back immediately
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var entry types.ProgressEntry
	decodeJSON(t, w, &entry)
	if entry.ProblemID != "two-sum" || entry.Status != types.StatusDone || entry.DateCompleted != "2024-06-10" || entry.Notes != "hash map" {
		t.Errorf("entry = %+v", entry)
	}

	// And: the push reaches the remote
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.session.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	env.remote.mu.Lock()
	pushes := append([]string(nil), env.remote.pushes...)
	env.remote.mu.Unlock()
	if len(pushes) != 1 || pushes[0] != "two-sum" {
		t.Errorf("pushes = %v", pushes)
	}
}

func TestUpdateProgress_Errors(t *testing.T) {
	tests := []struct {
		name       string
		loggedIn   bool
		path       string
		body       string
		wantStatus int
	}{
		{"unknown problem", true, "/api/v1/progress/not-a-problem", `{"status":"done"}`, http.StatusNotFound},
		{"bad json", true, "/api/v1/progress/two-sum", `{"status":`, http.StatusBadRequest},
		{"empty update", true, "/api/v1/progress/two-sum", `{}`, http.StatusUnprocessableEntity},
		{"bad status", true, "/api/v1/progress/two-sum", `{"status":"finished"}`, http.StatusUnprocessableEntity},
		{"bad date", true, "/api/v1/progress/two-sum", `{"dateCompleted":"June 10"}`, http.StatusUnprocessableEntity},
		{"logged out", false, "/api/v1/progress/two-sum", `{"status":"done"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", tt.loggedIn)
			w := env.do(t, http.MethodPut, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestUpdateProgress_RemoteFailureStillOK(t *testing.T) {
	env := newTestEnv(t, "", true)
	env.remote.pushErr = remote.ErrRejected

	w := env.do(t, http.MethodPut, "/api/v1/progress/two-sum", `{"priority":"high"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env.session.Flush(ctx)

	if rec, _ := env.session.Progress("two-sum"); rec.Priority != types.PriorityHigh {
		t.Errorf("priority = %q, want high (no rollback)", rec.Priority)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sync-log?limit=5", "")
	var entries []store.SyncLogEntry
	decodeJSON(t, w, &entries)
	if len(entries) != 1 || entries[0].Outcome != store.OutcomeRejected {
		t.Errorf("sync log = %+v", entries)
	}
}

// --- Export / Import ---

func TestExport(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/api/v1/export", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "leetcode-tracker-2024-06-10.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	doc, err := exchange.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("Decode(export) error = %v", err)
	}
	if doc.Version != exchange.Version || doc.UserID != "u1" || doc.DailyGoal != 3 || len(doc.Progress) != 1 {
		t.Errorf("document = %+v", doc)
	}
}

func TestImport(t *testing.T) {
	env := newTestEnv(t, "", true)

	body := `{"version":"1.0","progress":{"two-sum":{"status":"done","dateCompleted":"2024-06-10","priority":"low","notes":"","timeSpent":12}}}`
	w := env.do(t, http.MethodPost, "/api/v1/import", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var st types.Statistics
	decodeJSON(t, w, &st)
	if st.Completed != 1 || st.TodayCompleted != 1 {
		t.Errorf("stats after import = %+v", st)
	}
	if _, ok := env.session.Progress("contains-duplicate"); ok {
		t.Error("import did not replace the map")
	}
}

func TestImport_Invalid(t *testing.T) {
	env := newTestEnv(t, "", true)

	for _, body := range []string{`not json`, `{"version":"1.0"}`, `{"progress":null}`} {
		w := env.do(t, http.MethodPost, "/api/v1/import", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Import(%s) status = %d, want 400", body, w.Code)
		}
	}
	if _, ok := env.session.Progress("contains-duplicate"); !ok {
		t.Error("failed import changed the map")
	}
}

func TestBackup_NotConfigured(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodPost, "/api/v1/export/backup", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// --- Sync log / metrics ---

func TestSyncLog_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, "", true)

	for _, limit := range []string{"0", "abc", "5000"} {
		w := env.do(t, http.MethodGet, "/api/v1/sync-log?limit="+limit, "")
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("limit=%s status = %d, want 422", limit, w.Code)
		}
	}
}

func TestSyncLog_NoCache(t *testing.T) {
	env := newTestEnv(t, "", true)
	h := NewHandler(env.session, nil, "", "test")

	w := httptest.NewRecorder()
	h.SyncLog(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync-log", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testAPIKey, true)

	w := env.do(t, http.MethodGet, "/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

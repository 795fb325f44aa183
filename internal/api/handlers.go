package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/leettrack/internal/catalog"
	"github.com/hyperengineering/leettrack/internal/exchange"
	"github.com/hyperengineering/leettrack/internal/session"
	"github.com/hyperengineering/leettrack/internal/store"
	"github.com/hyperengineering/leettrack/internal/types"
	"github.com/hyperengineering/leettrack/internal/validation"
)

// maxImportBytes bounds POST /import bodies.
const maxImportBytes = 10 << 20

// defaultSyncLogLimit is used when GET /sync-log has no limit.
const defaultSyncLogLimit = 50

// Handler implements the API handlers
type Handler struct {
	session *session.Session
	cache   store.Store
	apiKey  string
	version string
}

// NewHandler creates a Handler. cache may be nil, which disables /sync-log.
func NewHandler(s *session.Session, cache store.Store, apiKey, version string) *Handler {
	return &Handler{
		session: s,
		cache:   cache,
		apiKey:  apiKey,
		version: version,
	}
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	LoggedIn bool   `json:"loggedIn"`
	Username string `json:"username,omitempty"`
	Problems int    `json:"problems"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Problems: h.session.Catalog().Len(),
	}
	if u := h.session.User(); u != nil {
		resp.LoggedIn = true
		resp.Username = u.Username
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListProblems handles GET /api/v1/problems
func (h *Handler) ListProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{
		Category:   q.Get("category"),
		Status:     q.Get("status"),
		Difficulty: q.Get("difficulty"),
		Search:     q.Get("q"),
	}

	var c validation.Collector
	if f.Status != "" && f.Status != catalog.All && !types.Status(f.Status).Valid() {
		c.Add(&validation.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", f.Status)})
	}
	if f.Difficulty != "" && f.Difficulty != catalog.All && !types.Difficulty(f.Difficulty).Valid() {
		c.Add(&validation.ValidationError{Field: "difficulty", Message: fmt.Sprintf("unknown difficulty %q", f.Difficulty)})
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Invalid filter", c.Errors())
		return
	}

	problems := h.session.ProblemsWithProgress(f)
	if problems == nil {
		problems = []types.ProblemWithProgress{}
	}
	writeJSON(w, http.StatusOK, problems)
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Statistics())
}

// GetGoal handles GET /api/v1/goal
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Goal())
}

type setGoalRequest struct {
	DailyGoal *int `json:"dailyGoal"`
}

// SetGoal handles PUT /api/v1/goal
func (h *Handler) SetGoal(w http.ResponseWriter, r *http.Request) {
	var req setGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if req.DailyGoal == nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
			{Field: "dailyGoal", Message: "dailyGoal is required"},
		})
		return
	}

	if err := h.session.SetDailyGoal(*req.DailyGoal); err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Goal())
}

// UpdatePreferences handles PUT /api/v1/preferences
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req session.PreferencesUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if err := h.session.UpdatePreferences(req); err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.User())
}

// UpdateProgress handles PUT /api/v1/progress/{id}
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.session.Catalog().Lookup(id); !ok {
		WriteProblem(w, r, http.StatusNotFound, fmt.Sprintf("Unknown problem %q", id))
		return
	}

	var update types.ProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if errs := validation.ValidateProgressUpdate(update); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	rec, applied := h.session.UpdateProgress(id, update)
	if !applied {
		MapError(w, r, session.ErrNotLoggedIn)
		return
	}
	writeJSON(w, http.StatusOK, types.ProgressEntry{ProblemID: id, ProgressRecord: rec})
}

// Export handles GET /api/v1/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	doc := h.session.ExportDocument()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exchange.FileName(doc.ExportDate)))
	if err := exchange.Encode(w, doc); err != nil {
		slog.Error("export failed", "component", "api", "error", err)
	}
}

// Import handles POST /api/v1/import
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := h.session.Import(body); err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Statistics())
}

// Backup handles POST /api/v1/export/backup
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.Backup(r.Context())
	if err != nil {
		slog.Warn("backup failed", "component", "api", "error", err)
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// SyncLog handles GET /api/v1/sync-log
func (h *Handler) SyncLog(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Local cache is disabled")
		return
	}

	limit := defaultSyncLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			WriteProblemWithErrors(w, r, "Invalid limit", []validation.ValidationError{
				{Field: "limit", Message: "must be an integer between 1 and 1000"},
			})
			return
		}
		limit = n
	}

	entries, err := h.cache.RecentSyncLog(r.Context(), limit)
	if err != nil {
		slog.Error("sync log read failed", "component", "api", "error", err)
		MapError(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.SyncLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

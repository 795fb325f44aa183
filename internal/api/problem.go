package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/leettrack/internal/exchange"
	"github.com/hyperengineering/leettrack/internal/session"
	"github.com/hyperengineering/leettrack/internal/store"
	"github.com/hyperengineering/leettrack/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

var problemTypes = map[int]problemType{
	http.StatusBadRequest:            {"https://leettrack.dev/errors/bad-request", "Bad Request"},
	http.StatusUnauthorized:          {"https://leettrack.dev/errors/unauthorized", "Unauthorized"},
	http.StatusForbidden:             {"https://leettrack.dev/errors/not-logged-in", "Not Logged In"},
	http.StatusNotFound:              {"https://leettrack.dev/errors/not-found", "Not Found"},
	http.StatusRequestEntityTooLarge: {"https://leettrack.dev/errors/too-large", "Payload Too Large"},
	http.StatusUnprocessableEntity:   {"https://leettrack.dev/errors/validation-error", "Validation Error"},
	http.StatusInternalServerError:   {"https://leettrack.dev/errors/internal-error", "Internal Server Error"},
	http.StatusServiceUnavailable:    {"https://leettrack.dev/errors/service-unavailable", "Service Unavailable"},
}

func lookupProblemType(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{typeURI: "https://leettrack.dev/errors/unknown", title: http.StatusText(status)}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := lookupProblemType(status)
	writeProblemBody(w, status, Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := lookupProblemType(http.StatusUnprocessableEntity)
	writeProblemBody(w, http.StatusUnprocessableEntity, ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	})
}

func writeProblemBody(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// MapError converts session and domain errors to Problem Details responses.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &verrs):
		WriteProblemWithErrors(w, r, "Request contains invalid fields", verrs)
	case errors.Is(err, validation.ErrInvalidDailyGoal):
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
			{Field: "dailyGoal", Message: "must be between 1 and 20"},
		})
	case errors.Is(err, session.ErrNotLoggedIn):
		WriteProblem(w, r, http.StatusForbidden, "No user is logged in")
	case errors.As(err, &tooLarge):
		WriteProblem(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, exchange.ErrInvalidDocument):
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, exchange.ErrNotConfigured), errors.Is(err, store.ErrNoSession):
		WriteProblem(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, session.ErrNoLeetCodeUsername):
		WriteProblem(w, r, http.StatusBadRequest, "No LeetCode username linked")
	default:
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}

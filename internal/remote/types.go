package remote

import (
	"encoding/json"
	"strconv"

	"github.com/hyperengineering/leettrack/internal/types"
)

// AuthResponse is returned by the login and signup endpoints.
type AuthResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	UserID      string            `json:"userId"`
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	Preferences types.Preferences `json:"preferences"`
}

// UserData is the full user document returned by GET /user/{id}.
type UserData struct {
	Username         string                `json:"username"`
	Email            string                `json:"email"`
	LeetCodeUsername string                `json:"leetcodeUsername"`
	DailyGoal        int                   `json:"dailyGoal"`
	Preferences      types.Preferences     `json:"preferences"`
	Progress         []types.ProgressEntry `json:"progress"`
}

type userResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    UserData `json:"data"`
}

type progressRequest struct {
	ProblemID string               `json:"problemId"`
	Updates   types.ProgressUpdate `json:"updates"`
}

// PreferencesUpdate is the body of POST /user/{id}/preferences. Only set
// fields are sent.
type PreferencesUpdate struct {
	DailyGoal        *int               `json:"dailyGoal,omitempty"`
	LeetCodeUsername *string            `json:"leetcodeUsername,omitempty"`
	Email            *string            `json:"email,omitempty"`
	Preferences      *types.Preferences `json:"preferences,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (p PreferencesUpdate) IsEmpty() bool {
	return p.DailyGoal == nil && p.LeetCodeUsername == nil && p.Email == nil && p.Preferences == nil
}

// StatusResponse is the transient result of an email trigger.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Text returns the human-readable part of the response.
func (s StatusResponse) Text() string {
	if s.Message != "" {
		return s.Message
	}
	return s.Error
}

// ReminderRequest is the body of POST /email/send-reminder.
type ReminderRequest struct {
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	TodayCompleted int    `json:"todayCompleted"`
	DailyGoal      int    `json:"dailyGoal"`
}

// SummaryRequest is the body of POST /email/send-summary.
type SummaryRequest struct {
	UserID   string           `json:"userId"`
	Email    string           `json:"email"`
	Username string           `json:"username"`
	Stats    types.Statistics `json:"stats"`
}

// LeetCodeStats is the solved-count summary of an external profile.
type LeetCodeStats struct {
	TotalSolved  int `json:"totalSolved"`
	EasySolved   int `json:"easySolved"`
	MediumSolved int `json:"mediumSolved"`
	HardSolved   int `json:"hardSolved"`
}

// Submission is one recently accepted submission of an external profile.
type Submission struct {
	Title     string    `json:"title"`
	TitleSlug string    `json:"titleSlug,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
}

// Timestamp is a Unix time in seconds. The profile service sends it either
// as a number or as a numeric string.
type Timestamp int64

// UnmarshalJSON accepts 1700000000 and "1700000000".
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n = json.Number(s)
	}
	if n == "" {
		*t = 0
		return nil
	}
	v, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return err
	}
	*t = Timestamp(v)
	return nil
}

// Package remote is the HTTP client for the backend REST API and its
// profile-stats and email collaborators. Every call takes a context and is
// bounded by the client timeout; nothing here retries.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperengineering/leettrack/internal/types"
)

var (
	// ErrRejected is returned when the remote answers with success:false.
	ErrRejected = errors.New("remote rejected request")

	// ErrUnexpectedStatus is returned for non-2xx responses without a
	// structured rejection.
	ErrUnexpectedStatus = errors.New("unexpected remote status")
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// DefaultTimeout applies when New is given a non-positive timeout.
const DefaultTimeout = 10 * time.Second

// APIError carries the status and message of a failed remote call.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v (%d): %s", e.kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v (%d)", e.kind, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// Message returns the remote's message for err, or "" when err carries none.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for the API rooted at baseURL
// (for example http://localhost:5000/api).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a Client using hc for transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
	}
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login authenticates a user. A wrong password comes back as an
// ErrRejected error carrying the remote message.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	body := map[string]string{"username": username, "password": password}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup creates an account and returns the new user's identity.
func (c *Client) Signup(ctx context.Context, username, password, email string) (*AuthResponse, error) {
	body := map[string]string{"username": username, "password": password, "email": email}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchUser returns the full user document including progress.
func (c *Client) FetchUser(ctx context.Context, userID string) (*UserData, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(userID), nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// PushProgress persists one sparse progress update.
func (c *Client) PushProgress(ctx context.Context, userID, problemID string, update types.ProgressUpdate) error {
	body := progressRequest{ProblemID: problemID, Updates: update}
	return c.do(ctx, http.MethodPut, "/user/"+url.PathEscape(userID)+"/progress", body, nil, true)
}

// SavePreferences persists preference fields.
func (c *Client) SavePreferences(ctx context.Context, userID string, prefs PreferencesUpdate) error {
	return c.do(ctx, http.MethodPost, "/user/"+url.PathEscape(userID)+"/preferences", prefs, nil, true)
}

// LeetCodeStats fetches the solved counts of an external profile.
func (c *Client) LeetCodeStats(ctx context.Context, username string) (*LeetCodeStats, error) {
	var stats LeetCodeStats
	if err := c.do(ctx, http.MethodGet, "/leetcode/"+url.PathEscape(username), nil, &stats, false); err != nil {
		return nil, err
	}
	return &stats, nil
}

// RecentSubmissions fetches the recently accepted submissions of an external profile.
func (c *Client) RecentSubmissions(ctx context.Context, username string) ([]Submission, error) {
	var subs []Submission
	if err := c.do(ctx, http.MethodGet, "/leetcode/"+url.PathEscape(username)+"/recent", nil, &subs, false); err != nil {
		return nil, err
	}
	return subs, nil
}

// TestEmail asks the email collaborator to send a test message.
func (c *Client) TestEmail(ctx context.Context, email string) (*StatusResponse, error) {
	return c.trigger(ctx, "/email/test", map[string]string{"email": email})
}

// SendReminder triggers the daily reminder email.
func (c *Client) SendReminder(ctx context.Context, req ReminderRequest) (*StatusResponse, error) {
	return c.trigger(ctx, "/email/send-reminder", req)
}

// SendSummary triggers the end-of-day summary email.
func (c *Client) SendSummary(ctx context.Context, req SummaryRequest) (*StatusResponse, error) {
	return c.trigger(ctx, "/email/send-summary", req)
}

func (c *Client) trigger(ctx context.Context, path string, body interface{}) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// envelope is the success flag shared by the backend's JSON responses.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do sends a JSON request and decodes the response into out (when non-nil).
// With checkSuccess, a body carrying success:false is an ErrRejected error
// even on a 2xx status.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, checkSuccess bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	_ = json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if env.Success != nil && !*env.Success {
			return &APIError{StatusCode: resp.StatusCode, Message: env.text(), kind: ErrRejected}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: env.text(), kind: ErrUnexpectedStatus}
	}

	if checkSuccess && env.Success != nil && !*env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.text(), kind: ErrRejected}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

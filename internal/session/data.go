package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/hyperengineering/leettrack/internal/exchange"
	"github.com/hyperengineering/leettrack/internal/remote"
	"github.com/hyperengineering/leettrack/internal/validation"
)

// ExportDocument captures the current progress map and goal.
func (s *Session) ExportDocument() exchange.Document {
	return exchange.NewDocument(s.UserID(), s.DailyGoal(), s.progress.Snapshot(), s.clock.Now())
}

// Export writes the current progress as an export file to w.
func (s *Session) Export(w io.Writer) error {
	return exchange.Encode(w, s.ExportDocument())
}

// BackupResult locates an export copied to object storage.
type BackupResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Backup uploads an export and returns a pre-signed download URL.
// It returns exchange.ErrNotConfigured when no bucket is set.
func (s *Session) Backup(ctx context.Context) (*BackupResult, error) {
	key, err := s.uploader.Upload(ctx, s.ExportDocument())
	if err != nil {
		return nil, err
	}
	url, expires, err := s.uploader.PresignedURL(ctx, key)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export uploaded",
		"component", "session",
		"action", "backup",
		"key", key,
	)
	return &BackupResult{Key: key, URL: url, ExpiresAt: expires}, nil
}

// Import replaces the whole progress map with the contents of an export
// file. Nothing changes unless the file is valid. Progress stays local; an
// imported daily goal goes through UpdatePreferences.
func (s *Session) Import(r io.Reader) error {
	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}

	doc, err := exchange.Decode(r)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	if !s.LoggedIn() {
		s.writeMu.Unlock()
		return ErrNotLoggedIn
	}
	s.progress.ReplaceAll(doc.Progress)
	s.saveCache(true)
	s.writeMu.Unlock()
	s.publish()

	s.logger.Info("progress imported",
		"component", "session",
		"action", "import",
		"records", len(doc.Progress),
	)

	if doc.DailyGoal != 0 {
		goal := doc.DailyGoal
		if err := s.UpdatePreferences(PreferencesUpdate{DailyGoal: &goal}); err != nil {
			return err
		}
	}
	return nil
}

// Profile is a public LeetCode profile. Either half is nil when its fetch
// failed.
type Profile struct {
	Username    string                `json:"username"`
	Stats       *remote.LeetCodeStats `json:"stats,omitempty"`
	Submissions []remote.Submission   `json:"recentSubmissions,omitempty"`
}

// LeetCodeProfile fetches the solved counts and recent submissions for
// username, or for the linked username when it is empty. The two requests
// run concurrently and fail independently.
func (s *Session) LeetCodeProfile(ctx context.Context, username string) (*Profile, error) {
	if username == "" {
		if u := s.User(); u != nil {
			username = u.LeetCodeUsername
		}
	}
	if username == "" {
		return nil, ErrNoLeetCodeUsername
	}

	p := &Profile{Username: username}
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		st, err := s.remote.LeetCodeStats(ctx, username)
		if err != nil {
			s.logProfileError("stats", username, err)
			return
		}
		p.Stats = st
	}()

	go func() {
		defer wg.Done()
		subs, err := s.remote.RecentSubmissions(ctx, username)
		if err != nil {
			s.logProfileError("recent", username, err)
			return
		}
		p.Submissions = subs
	}()

	wg.Wait()
	return p, nil
}

func (s *Session) logProfileError(part, username string, err error) {
	s.logger.Warn("leetcode profile fetch failed",
		"component", "session",
		"action", "leetcode_"+part,
		"leetcode_username", username,
		"error", err,
	)
}

// EmailResult is the transient status of an email trigger.
type EmailResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendTestEmail asks the remote to send a test email to address, or to the
// user's address when it is empty.
func (s *Session) SendTestEmail(ctx context.Context, address string) (EmailResult, error) {
	if address == "" {
		if u := s.User(); u != nil {
			address = u.Email
		}
	}
	if err := validation.ValidateEmail("email", address); err != nil {
		return EmailResult{}, validation.Errors{*err}
	}

	resp, err := s.remote.TestEmail(ctx, address)
	return emailResult(resp, err, "Failed to send test email"), nil
}

// SendReminder triggers today's reminder email with current progress.
func (s *Session) SendReminder(ctx context.Context) (EmailResult, error) {
	user, goal := s.snapshotUser()
	if user == nil {
		return EmailResult{}, ErrNotLoggedIn
	}

	resp, err := s.remote.SendReminder(ctx, remote.ReminderRequest{
		UserID:         user.ID,
		Email:          user.Email,
		Username:       user.Username,
		TodayCompleted: s.Statistics().TodayCompleted,
		DailyGoal:      goal,
	})
	return emailResult(resp, err, "Failed to send reminder email"), nil
}

// SendSummary triggers the end-of-day summary email.
func (s *Session) SendSummary(ctx context.Context) (EmailResult, error) {
	user, _ := s.snapshotUser()
	if user == nil {
		return EmailResult{}, ErrNotLoggedIn
	}

	resp, err := s.remote.SendSummary(ctx, remote.SummaryRequest{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Stats:    s.Statistics(),
	})
	return emailResult(resp, err, "Failed to send summary email"), nil
}

func emailResult(resp *remote.StatusResponse, err error, fallback string) EmailResult {
	if err != nil {
		msg := remote.Message(err)
		if msg == "" || !errors.Is(err, remote.ErrRejected) {
			msg = fallback
		}
		return EmailResult{Success: false, Message: msg}
	}
	msg := resp.Text()
	if msg == "" {
		if resp.Success {
			msg = "Email sent"
		} else {
			msg = fallback
		}
	}
	return EmailResult{Success: resp.Success, Message: msg}
}

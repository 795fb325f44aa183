// Package exchange reads and writes the JSON progress backup file.
package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hyperengineering/leettrack/internal/calendar"
	"github.com/hyperengineering/leettrack/internal/types"
	"github.com/hyperengineering/leettrack/internal/validation"
)

// Version is written into every exported document.
const Version = "1.0"

var (
	// ErrInvalidDocument is wrapped by every Decode failure.
	ErrInvalidDocument = errors.New("invalid export file format")

	// ErrMissingProgress is returned when the document has no progress object.
	ErrMissingProgress = fmt.Errorf("%w: missing progress", ErrInvalidDocument)
)

// Document is the export file. DailyGoal 0 means the file carried no goal.
type Document struct {
	Version    string            `json:"version"`
	ExportDate time.Time         `json:"exportDate"`
	UserID     string            `json:"userId"`
	DailyGoal  int               `json:"dailyGoal,omitempty"`
	Progress   types.ProgressMap `json:"progress"`
}

// NewDocument builds a document stamped with the current version.
func NewDocument(userID string, dailyGoal int, progress types.ProgressMap, now time.Time) Document {
	if progress == nil {
		progress = types.ProgressMap{}
	}
	return Document{
		Version:    Version,
		ExportDate: now.UTC(),
		UserID:     userID,
		DailyGoal:  dailyGoal,
		Progress:   progress,
	}
}

// FileName returns the conventional name of an export written on day t.
func FileName(t time.Time) string {
	return "leetcode-tracker-" + calendar.DateKey(t) + ".json"
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// rawDocument keeps absent and null fields distinguishable while decoding.
type rawDocument struct {
	Version    string                           `json:"version"`
	ExportDate string                           `json:"exportDate"`
	UserID     string                           `json:"userId"`
	DailyGoal  *int                             `json:"dailyGoal"`
	Progress   map[string]*types.ProgressRecord `json:"progress"`
}

// Decode reads an export file. Only a progress object is required. Records
// are normalized, never rejected, and a goal outside the accepted range is
// treated as absent.
func Decode(r io.Reader) (Document, error) {
	var raw rawDocument
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if raw.Progress == nil {
		return Document{}, ErrMissingProgress
	}

	doc := Document{
		Version:  raw.Version,
		UserID:   raw.UserID,
		Progress: make(types.ProgressMap, len(raw.Progress)),
	}
	if raw.ExportDate != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw.ExportDate); err == nil {
			doc.ExportDate = t
		}
	}
	if raw.DailyGoal != nil && validation.ValidateDailyGoal(*raw.DailyGoal) == nil {
		doc.DailyGoal = *raw.DailyGoal
	}

	for id, rec := range raw.Progress {
		if id == "" {
			continue
		}
		var r types.ProgressRecord
		if rec != nil {
			r = *rec
		}
		doc.Progress[id] = r.Normalize()
	}

	return doc, nil
}

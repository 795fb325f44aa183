package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/hyperengineering/leettrack/internal/calendar"
	"github.com/hyperengineering/leettrack/internal/types"
)

// Daily goal bounds accepted from users.
const (
	MinDailyGoal = 1
	MaxDailyGoal = 20
)

// Field limits for progress updates.
const (
	MaxNotesLength = 10000
	MaxTimeSpent   = 100000
)

// ErrInvalidInput is wrapped by every error returned from Collector.Err.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidDailyGoal is returned for a goal outside [MinDailyGoal, MaxDailyGoal].
var ErrInvalidDailyGoal = fmt.Errorf("%w: daily goal must be between %d and %d", ErrInvalidInput, MinDailyGoal, MaxDailyGoal)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// Errors is a list of field failures usable as an error value.
type Errors []ValidationError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Error()
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalidInput) true for any Errors value.
func (e Errors) Is(target error) bool {
	return target == ErrInvalidInput
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// Err returns the accumulated failures as an error, or nil.
func (c *Collector) Err() error {
	if !c.HasErrors() {
		return nil
	}
	return Errors(c.errors)
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateIntRange returns an error if the value is outside [min, max].
func ValidateIntRange(field string, value, min, max int) *ValidationError {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %d and %d", min, max),
		}
	}
	return nil
}

// ValidateDateKey returns an error unless value is a YYYY-MM-DD date.
func ValidateDateKey(field, value string) *ValidationError {
	if !calendar.Valid(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be a date in YYYY-MM-DD format",
		}
	}
	return nil
}

// ValidateEmail returns an error unless value is a single bare address.
func ValidateEmail(field, value string) *ValidationError {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid email address",
		}
	}
	return nil
}

// ValidateDailyGoal rejects goals outside the accepted range.
func ValidateDailyGoal(goal int) error {
	if goal < MinDailyGoal || goal > MaxDailyGoal {
		return ErrInvalidDailyGoal
	}
	return nil
}

var (
	statusValues   = []string{string(types.StatusTodo), string(types.StatusInProgress), string(types.StatusDone)}
	priorityValues = []string{string(types.PriorityNone), string(types.PriorityLow), string(types.PriorityMedium), string(types.PriorityHigh)}
)

// ValidateProgressUpdate checks every specified field of a sparse update.
// An explicit date clear is valid.
func ValidateProgressUpdate(u types.ProgressUpdate) []ValidationError {
	var c Collector

	if u.IsEmpty() {
		c.Add(&ValidationError{Field: "updates", Message: "must specify at least one field"})
	}
	if u.Status != nil {
		c.Add(ValidateEnum("status", string(*u.Status), statusValues))
	}
	if u.Priority != nil {
		c.Add(ValidateEnum("priority", string(*u.Priority), priorityValues))
	}
	if u.DateCompleted != nil && *u.DateCompleted != "" {
		c.Add(ValidateDateKey("dateCompleted", *u.DateCompleted))
	}
	if u.Notes != nil {
		c.Add(ValidateUTF8("notes", *u.Notes))
		c.Add(ValidateNoNullBytes("notes", *u.Notes))
		c.Add(ValidateMaxLength("notes", *u.Notes, MaxNotesLength))
	}
	if u.TimeSpent != nil {
		c.Add(ValidateIntRange("timeSpent", *u.TimeSpent, 0, MaxTimeSpent))
	}

	return c.Errors()
}

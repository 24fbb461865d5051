package gateway

import (
	"errors"
	"fmt"

	"github.com/rcliao/insight-sync/internal/model"
)

// ErrSessionNotFound means the referenced conversation was deleted, expired or never existed.
var ErrSessionNotFound = errors.New("session not found")

// ValidationError reports a malformed insight payload.
type ValidationError struct {
	Reason  string
	Entries []model.Insight
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%d entries)", e.Reason, len(e.Entries))
}

// NetworkError wraps a transport failure or timeout for one gateway call.
type NetworkError struct {
	Op  string // "create", "validate", "commit", "history"
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error [%s]: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// CreateSessionError means no session id could be obtained.
type CreateSessionError struct {
	Err error
}

func (e *CreateSessionError) Error() string {
	return fmt.Sprintf("create session failed: %v", e.Err)
}

func (e *CreateSessionError) Unwrap() error {
	return e.Err
}

// IsSessionNotFound reports whether err carries ErrSessionNotFound.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// ValidateBatch checks every insight for the fields the server requires.
// It returns a *ValidationError listing the offending entries, or nil.
func ValidateBatch(insights []model.Insight) error {
	var bad []model.Insight
	for _, in := range insights {
		if in.Text == "" || !in.Priority.Valid() || !in.Origin.Valid() {
			bad = append(bad, in)
		}
	}
	if len(bad) > 0 {
		return &ValidationError{Reason: "text, priority and origin are required", Entries: bad}
	}
	return nil
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoActiveSession is returned when an owner has no flow in progress
var ErrNoActiveSession = errors.New("no active session")

// ValidationError is a recoverable rejection of a user answer.
// Reason is shown to the user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid answer: " + e.Reason
}

// Invalid builds a ValidationError with a user-facing reason
func Invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// CompletionError wraps a failure of a flow's completion handler
type CompletionError struct {
	Flow string
	Err  error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion of flow %q failed: %v", e.Flow, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Session is one owner's progress through one flow
type Session struct {
	OwnerID   int64     `json:"owner_id"`
	Flow      string    `json:"flow"`
	StepIndex int       `json:"step_index"`
	Answers   Answers   `json:"answers"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) clone() *Session {
	c := *s
	c.Answers = s.Answers.Clone()
	return &c
}

// Store holds at most one in-flight session per owner for a single flow family
type Store interface {
	// Begin creates a fresh session, replacing any unfinished one
	Begin(ctx context.Context, ownerID int64) (*Session, error)

	// Get returns the current session, or nil when no flow is active
	Get(ctx context.Context, ownerID int64) (*Session, error)

	// Advance stores value under key and moves to the next step.
	// Returns ErrNoActiveSession when Begin was not called.
	Advance(ctx context.Context, ownerID int64, key string, value any) (*Session, error)

	// End removes the session; it is a no-op when none exists
	End(ctx context.Context, ownerID int64) error
}

package conversation

import (
	"context"
	"strings"
)

// Validator turns raw user input into a stored value.
// Returning a *ValidationError asks the user to try again.
type Validator func(raw string) (any, error)

// Step is one question of a flow
type Step struct {
	Key      string
	Prompt   string
	Validate Validator
}

// CompletionHandler receives the full answer set once the last step is accepted.
// The returned text is shown to the user.
type CompletionHandler func(ctx context.Context, ownerID int64, answers Answers) (string, error)

// InvalidFormatter renders the message sent after a rejected answer
type InvalidFormatter func(step Step, reason string) string

// Flow is an immutable ordered list of steps with its completion handler
type Flow struct {
	name       string
	steps      []Step
	onComplete CompletionHandler
	invalid    InvalidFormatter
}

// FlowOption customizes a Flow
type FlowOption func(*Flow)

// WithInvalidFormatter sets how rejected answers are reported
func WithInvalidFormatter(f InvalidFormatter) FlowOption {
	return func(fl *Flow) {
		fl.invalid = f
	}
}

// NewFlow builds a flow. It panics when steps is empty or onComplete is nil,
// since flows are declared statically.
func NewFlow(name string, steps []Step, onComplete CompletionHandler, opts ...FlowOption) *Flow {
	if len(steps) == 0 {
		panic("conversation: flow " + name + " has no steps")
	}
	if onComplete == nil {
		panic("conversation: flow " + name + " has no completion handler")
	}

	f := &Flow{
		name:       name,
		steps:      append([]Step(nil), steps...),
		onComplete: onComplete,
		invalid:    defaultInvalid,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func defaultInvalid(step Step, reason string) string {
	return reason + "\n\n" + step.Prompt
}

// Name returns the flow name
func (f *Flow) Name() string {
	return f.name
}

// Len returns the number of steps
func (f *Flow) Len() int {
	return len(f.steps)
}

// Step returns the step at index i
func (f *Flow) Step(i int) Step {
	return f.steps[i]
}

// Keys returns the step keys in order
func (f *Flow) Keys() []string {
	keys := make([]string, len(f.steps))
	for i, s := range f.steps {
		keys[i] = s.Key
	}
	return keys
}

// DuplicateKeys lists keys used by more than one step.
// Later answers overwrite earlier ones for such keys.
func (f *Flow) DuplicateKeys() []string {
	seen := make(map[string]int, len(f.steps))
	var dups []string
	for _, s := range f.steps {
		seen[s.Key]++
		if seen[s.Key] == 2 {
			dups = append(dups, s.Key)
		}
	}
	return dups
}

func (f *Flow) validate(step Step, raw string) (any, error) {
	if step.Validate == nil {
		return strings.TrimSpace(raw), nil
	}
	return step.Validate(raw)
}

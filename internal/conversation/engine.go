package conversation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Result describes what happened to a submitted answer
type Result struct {
	// Handled is false when the owner had no active session
	Handled bool
	// Done is true once the flow finished and the session was removed
	Done bool
	// Reply is the next prompt, the re-prompt or the completion message
	Reply string
	// Answers is the completed answer set, set only when Done
	Answers Answers
}

// Engine drives sessions of a single flow
type Engine struct {
	flow   *Flow
	store  Store
	locks  *KeyedMutex
	logger *zap.Logger
}

// NewEngine creates an engine for flow backed by store
func NewEngine(flow *Flow, store Store, logger *zap.Logger) *Engine {
	if dups := flow.DuplicateKeys(); len(dups) > 0 {
		logger.Warn("Flow has duplicate step keys, later answers overwrite earlier ones",
			zap.String("flow", flow.Name()),
			zap.Strings("keys", dups),
		)
	}
	return &Engine{
		flow:   flow,
		store:  store,
		locks:  NewKeyedMutex(),
		logger: logger,
	}
}

// Flow returns the flow driven by the engine
func (e *Engine) Flow() *Flow {
	return e.flow
}

// Start begins the flow for ownerID and returns the first prompt.
// Any unfinished session of the same flow is discarded.
func (e *Engine) Start(ctx context.Context, ownerID int64) (string, error) {
	unlock := e.locks.Lock(ownerID)
	defer unlock()

	if _, err := e.store.Begin(ctx, ownerID); err != nil {
		return "", fmt.Errorf("failed to begin %s: %w", e.flow.Name(), err)
	}
	e.logger.Debug("Flow started",
		zap.String("flow", e.flow.Name()),
		zap.Int64("user_id", ownerID),
	)
	return e.flow.Step(0).Prompt, nil
}

// Submit feeds one inbound message to the active session of ownerID
func (e *Engine) Submit(ctx context.Context, ownerID int64, raw string) (Result, error) {
	unlock := e.locks.Lock(ownerID)
	defer unlock()

	session, err := e.store.Get(ctx, ownerID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load %s session: %w", e.flow.Name(), err)
	}
	if session == nil {
		return Result{}, ErrNoActiveSession
	}

	if session.StepIndex >= e.flow.Len() {
		// A finished session that was never ended; drop it.
		if err := e.store.End(ctx, ownerID); err != nil {
			return Result{}, fmt.Errorf("failed to end stale %s session: %w", e.flow.Name(), err)
		}
		return Result{}, ErrNoActiveSession
	}

	step := e.flow.Step(session.StepIndex)
	value, err := e.flow.validate(step, raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return Result{Handled: true, Reply: e.flow.invalid(step, verr.Reason)}, nil
		}
		return Result{Handled: true}, fmt.Errorf("failed to validate %s.%s: %w", e.flow.Name(), step.Key, err)
	}

	session, err = e.store.Advance(ctx, ownerID, step.Key, value)
	if err != nil {
		return Result{Handled: true}, fmt.Errorf("failed to advance %s: %w", e.flow.Name(), err)
	}

	if session.StepIndex < e.flow.Len() {
		return Result{Handled: true, Reply: e.flow.Step(session.StepIndex).Prompt}, nil
	}

	return e.complete(ctx, ownerID, session.Answers)
}

func (e *Engine) complete(ctx context.Context, ownerID int64, answers Answers) (Result, error) {
	reply, handlerErr := e.flow.onComplete(ctx, ownerID, answers.Clone())
	endErr := e.store.End(ctx, ownerID)

	result := Result{Handled: true, Done: true, Reply: reply, Answers: answers}
	if handlerErr != nil {
		e.logger.Error("Flow completion failed",
			zap.String("flow", e.flow.Name()),
			zap.Int64("user_id", ownerID),
			zap.Error(handlerErr),
		)
		result.Reply = ""
		return result, errors.Join(&CompletionError{Flow: e.flow.Name(), Err: handlerErr}, endErr)
	}
	if endErr != nil {
		return result, fmt.Errorf("failed to end %s session: %w", e.flow.Name(), endErr)
	}

	e.logger.Info("Flow completed",
		zap.String("flow", e.flow.Name()),
		zap.Int64("user_id", ownerID),
		zap.Int("answers", answers.Len()),
	)
	return result, nil
}

// Cancel abandons the session of ownerID without calling the completion handler
func (e *Engine) Cancel(ctx context.Context, ownerID int64) error {
	unlock := e.locks.Lock(ownerID)
	defer unlock()

	if err := e.store.End(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to cancel %s: %w", e.flow.Name(), err)
	}
	return nil
}

// Active reports whether ownerID has a session in progress
func (e *Engine) Active(ctx context.Context, ownerID int64) (bool, error) {
	s, err := e.Current(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return s != nil, nil
}

// Current returns a copy of the session of ownerID, or nil
func (e *Engine) Current(ctx context.Context, ownerID int64) (*Session, error) {
	unlock := e.locks.Lock(ownerID)
	defer unlock()

	s, err := e.store.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s session: %w", e.flow.Name(), err)
	}
	return s, nil
}

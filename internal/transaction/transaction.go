// Package transaction provides an in-process undo log for multi-step
// operations that touch external systems. Each step that succeeds
// registers a compensating action; if the operation fails the
// compensators run in reverse order of registration.
package transaction

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

type state int

const (
	stateOpen state = iota
	stateRollingBack
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateRollingBack:
		return "rolling back"
	case stateClosed:
		return "closed"
	}

	return fmt.Sprintf("state(%d)", int(s))
}

type compensator struct {
	name string
	fn   func(context.Context) error
}

// Transaction collects compensating actions while an operation makes
// forward progress. It is not safe for concurrent use; an operation
// owns its transaction for its whole lifetime.
type Transaction struct {
	log   zerolog.Logger
	undo  []compensator
	state state
}

// New returns an open transaction that logs rollback progress to log.
func New(log zerolog.Logger) *Transaction {
	return &Transaction{log: log}
}

// OnRollback registers a compensating action for a step that just
// succeeded. It panics if the transaction is no longer open, because
// registering undo work during or after rollback is a programming
// error that must not be silently dropped.
func (t *Transaction) OnRollback(name string, fn func(context.Context) error) {
	if t.state != stateOpen {
		panic(fmt.Sprintf("transaction: OnRollback(%q) on %s transaction", name, t.state))
	}
	t.undo = append(t.undo, compensator{name: name, fn: fn})
}

// Rollback runs all registered compensators in reverse order. A
// failing or panicking compensator is logged and does not stop the
// remaining ones from running. After Rollback returns the transaction
// is closed.
func (t *Transaction) Rollback(ctx context.Context) {
	if t.state != stateOpen {
		return
	}
	t.state = stateRollingBack

	for i := len(t.undo) - 1; i >= 0; i-- {
		c := t.undo[i]
		t.log.Info().Str("step", c.name).Msg("rolling back")
		if err := t.runCompensator(ctx, c); err != nil {
			t.log.Error().Err(err).Str("step", c.name).Msg("rollback step failed")
		}
	}

	t.undo = nil
	t.state = stateClosed
}

func (t *Transaction) runCompensator(ctx context.Context, c compensator) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return c.fn(ctx)
}

// Commit discards the undo log after the operation completed. The
// transaction is closed and must not be reused.
func (t *Transaction) Commit() {
	if t.state != stateOpen {
		panic(fmt.Sprintf("transaction: Commit on %s transaction", t.state))
	}
	t.undo = nil
	t.state = stateClosed
}

// Depth reports how many compensators are currently registered.
func (t *Transaction) Depth() int {
	return len(t.undo)
}

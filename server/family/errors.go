package family

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// PropagationError reports a relationship mutation that stopped after some of
// its back-reference writes were applied. The graph may violate its invariants
// until the failing step is repaired; nothing is rolled back.
type PropagationError struct {
	Op        string
	Completed []string
	Failed    string
	Err       error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("%s: partial propagation failure at %q after [%s]: %v",
		e.Op, e.Failed, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PropagationError) Unwrap() error {
	return e.Err
}

func notFound(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, a...))
}

func invalidInput(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, a...))
}

// ---------------------------------------------------------------------------------//
// Unit of work
// --------------------------------------------------------------------------------//

// propagation records the sub-steps of one multi-record mutation.
type propagation struct {
	op    string
	steps []string
}

func newPropagation(op string) *propagation {
	return &propagation{op: op}
}

// do runs a write step. Once any step has completed, a failure is returned as
// a *PropagationError so callers can tell it apart from a clean rejection.
func (p *propagation) do(step string, fn func() error) error {
	if err := fn(); err != nil {
		return p.wrap(step, err)
	}

	p.steps = append(p.steps, step)
	return nil
}

// wrap reports a failed step without recording it as completed.
func (p *propagation) wrap(step string, err error) error {
	if err == nil {
		return nil
	}
	if len(p.steps) == 0 {
		return fmt.Errorf("%s: %s: %w", p.op, step, err)
	}

	completed := make([]string, len(p.steps))
	copy(completed, p.steps)
	return &PropagationError{Op: p.op, Completed: completed, Failed: step, Err: err}
}

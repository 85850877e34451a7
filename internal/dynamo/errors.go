package dynamo

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the coordination layer. Callers match with
// errors.Is; the concrete message is added with fmt.Errorf("%w: ...").
var (
	// ErrInitialization indicates an operation attempted before the
	// simulation context has a system.
	ErrInitialization = errors.New("dynamo: simulation not initialized")

	// ErrState indicates an operation on an object whose engine handle was
	// never established.
	ErrState = errors.New("dynamo: engine handle not established")

	// ErrConfiguration indicates self-contradictory user configuration.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrInternalInvariant indicates an enabled force or method lost its
	// engine handle, or the registry was mutated during a refresh.
	ErrInternalInvariant = errors.New("dynamo: internal invariant violated")
)

// StepError wraps an engine failure with the step it occurred on.
type StepError struct {
	Step    uint64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

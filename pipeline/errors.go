package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below match them through errors.Is so callers
// can test the category without caring about the details.
var (
	// ErrInvalidStage is matched by *InvalidStageError: a stage lacks an invocable handler
	// or carries a field of an unsupported shape.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrAsyncContract is matched by *AsyncContractError: a FlowAsync handler did not
	// return an Awaitable.
	ErrAsyncContract = errors.New("async stage must return an awaitable")

	// ErrAssertion is matched by *AssertionError: an interceptor received or produced a
	// PipeState without a stage or value.
	ErrAssertion = errors.New("pipe state assertion failed")

	// ErrEmptyReduce is returned by a ReduceFlow stage folding an empty sequence
	// without an initial value.
	ErrEmptyReduce = errors.New("reduce of empty sequence with no initial value")
)

// InvalidStageError reports a stage that cannot be prepared or inserted into a definition.
type InvalidStageError struct {
	Kind   Kind
	Name   string
	Reason string
}

func (e *InvalidStageError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("pipeline.%s %q: %s", e.Kind, e.Name, e.Reason)
	}
	return fmt.Sprintf("pipeline.%s: %s", e.Kind, e.Reason)
}

func (e *InvalidStageError) Is(target error) bool { return target == ErrInvalidStage }

// AsyncContractError reports a FlowAsync handler whose result is not an Awaitable.
// It is a configuration bug and is never retried.
type AsyncContractError struct {
	Stage string
	Got   any
}

func (e *AsyncContractError) Error() string {
	return fmt.Sprintf("flowAsync %q: handler returned %T, want an awaitable with Then and Catch", e.Stage, e.Got)
}

func (e *AsyncContractError) Is(target error) bool { return target == ErrAsyncContract }

// AssertionError reports a PipeState that violates the interceptor contract.
type AssertionError struct {
	Interceptor string
	Phase       Phase
	Reason      string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("interceptor %q (%s): %s", e.Interceptor, e.Phase, e.Reason)
}

func (e *AssertionError) Is(target error) bool { return target == ErrAssertion }

// StageError wraps an error returned by a stage handler, a reducer or a stage-scoped hook.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %q: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func IsInvalidStage(err error) bool  { return errors.Is(err, ErrInvalidStage) }
func IsAsyncContract(err error) bool { return errors.Is(err, ErrAsyncContract) }
func IsAssertion(err error) bool     { return errors.Is(err, ErrAssertion) }

func stageErr(s *Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	// configuration errors keep their own type so callers can test for them
	if IsInvalidStage(err) || IsAsyncContract(err) || IsAssertion(err) {
		return err
	}
	return &StageError{Stage: s.Name(), Kind: s.Kind(), Err: err}
}

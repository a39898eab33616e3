package httpstages

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/dcshock/stageflow/pipeline"
)

// ErrExpectation is matched by every error returned from the Expect helpers.
var ErrExpectation = errors.New("expectation failed")

// Expect returns a stage handler running predicate on the input. A predicate error fails
// the stage; otherwise the input is passed through unchanged. Use after ParseJSON to
// verify the decoded result.
func Expect(predicate func(any) error) pipeline.Handler {
	if predicate == nil {
		panic("httpstages.Expect: predicate must not be nil")
	}
	return func(_ context.Context, input any) (any, error) {
		if err := check(predicate, input); err != nil {
			return nil, err
		}
		return input, nil
	}
}

// ExpectEqual returns a stage handler checking that the input equals expected
// (reflect.DeepEqual).
func ExpectEqual(expected any) pipeline.Handler {
	return Expect(equal(expected))
}

// ExpectAfter returns a stage interceptor whose post hook checks the stage output.
// Attached to a FlowAsync stage built with Get or Fetch, it checks the resolved body
// before the stages queued behind it run.
func ExpectAfter(name string, predicate func(any) error) pipeline.Interceptor {
	if predicate == nil {
		panic("httpstages.ExpectAfter: predicate must not be nil")
	}
	return pipeline.Interceptor{
		Name: name,
		Post: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
			if err := check(predicate, s.Value); err != nil {
				return s, err
			}
			return s, nil
		},
	}
}

// Keep turns predicate into a MapFlow filter: entries for which it fails are dropped
// from the output instead of failing the run.
func Keep(predicate func(any) error) pipeline.Filter {
	return func(v, _ any) bool { return predicate(v) == nil }
}

// NotEmpty fails for a nil value, an empty body and empty JSON containers.
func NotEmpty(v any) error {
	switch x := v.(type) {
	case nil:
		return errors.New("value is nil")
	case []byte:
		if len(x) == 0 {
			return errors.New("body is empty")
		}
	case string:
		if x == "" {
			return errors.New("body is empty")
		}
	case map[string]any:
		if len(x) == 0 {
			return errors.New("object is empty")
		}
	case []any:
		if len(x) == 0 {
			return errors.New("array is empty")
		}
	}
	return nil
}

func equal(expected any) func(any) error {
	return func(v any) error {
		if !reflect.DeepEqual(v, expected) {
			return fmt.Errorf("got %v, want %v", v, expected)
		}
		return nil
	}
}

func check(predicate func(any) error, v any) error {
	if err := predicate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrExpectation, err)
	}
	return nil
}

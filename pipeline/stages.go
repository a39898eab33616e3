package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Identity returns a handler that passes the value through unchanged.
func Identity() Handler {
	return identity
}

// Tap returns a handler that calls fn(ctx, value) then passes value through unchanged.
// Use for logging or side effects without changing the value.
func Tap(fn func(context.Context, any)) Handler {
	return func(ctx context.Context, v any) (any, error) {
		fn(ctx, v)
		return v, nil
	}
}

// Constant returns a handler that ignores its input and always outputs value.
func Constant(value any) Handler {
	return func(context.Context, any) (any, error) {
		return value, nil
	}
}

// ConvertFunc converts a value of type A to type B. Used by Transform to build a handler.
type ConvertFunc[A, B any] func(ctx context.Context, a A) (B, error)

// Transform returns a handler that converts the previous stage's output (type A) to
// type B. Any other input type fails the stage.
func Transform[A, B any](convert ConvertFunc[A, B]) Handler {
	return func(ctx context.Context, input any) (any, error) {
		a, ok := input.(A)
		if !ok {
			var zero A
			return nil, fmt.Errorf("transform: expected %T, got %T", zero, input)
		}
		return convert(ctx, a)
	}
}

// Validate returns a handler that passes the value through only if predicate(v) is
// true. Otherwise it fails with errMsg (or "validation failed").
func Validate[T any](predicate func(T) bool, errMsg string) Handler {
	return func(_ context.Context, input any) (any, error) {
		v, ok := input.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("validate: expected %T, got %T", zero, input)
		}
		if !predicate(v) {
			if errMsg == "" {
				errMsg = "validation failed"
			}
			return nil, fmt.Errorf("%s", errMsg)
		}
		return input, nil
	}
}

// Delay returns an async handler resolving to its input after d. If fn is non-nil the
// future resolves to fn(value) instead.
func Delay(d time.Duration, fn Handler) AsyncHandler {
	return func(ctx context.Context, v any) Awaitable {
		return After(d, func() (any, error) {
			if fn == nil {
				return v, nil
			}
			return fn(ctx, v)
		})
	}
}

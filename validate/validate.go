// Package validate connects value validators to pipelines. A Validator reports a
// Result; Handler and Interceptor turn it into a stage or a stage interceptor.
package validate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/dcshock/stageflow/pipeline"
)

// ErrInvalid matches every validation failure reported by this package.
var ErrInvalid = errors.New("validation failed")

// ErrPending is returned by Handler when a validator is still loading.
var ErrPending = errors.New("validation pending")

// Result is the outcome of a validation. Value is the (possibly converted) value,
// Err is set when the value is invalid and Loading when the verdict is not known yet.
type Result struct {
	Value   any
	Err     error
	Loading bool
}

// Validator checks a value.
type Validator interface {
	Validate(value any) Result
}

// Func adapts a function to a Validator.
type Func func(value any) Result

func (f Func) Validate(value any) Result { return f(value) }

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error lists the failed rules of one validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			msgs = append(msgs, f.Message)
			continue
		}
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }

var (
	std     *validator.Validate
	stdOnce sync.Once
)

func engine() *validator.Validate {
	stdOnce.Do(func() {
		std = validator.New(validator.WithRequiredStructEnabled())
		std.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return std
}

// Struct returns a Validator checking structs (or pointers to structs) against
// their `validate` tags. Fields are reported by their json names.
func Struct() Validator {
	return Func(func(value any) Result {
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Pointer {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return Result{Value: value, Err: &Error{Fields: []FieldError{{Rule: "struct", Message: fmt.Sprintf("expected a struct, got %T", value)}}}}
		}
		return Result{Value: value, Err: convert(engine().Struct(value))}
	})
}

// Var returns a Validator checking a single value against tag, e.g. "required,gte=0".
func Var(tag string) Validator {
	return Func(func(value any) Result {
		return Result{Value: value, Err: convert(engine().Var(value, tag))}
	})
}

// Chain runs validators in order, feeding each the value produced by the previous
// one. It stops at the first invalid or loading result.
func Chain(vs ...Validator) Validator {
	return Func(func(value any) Result {
		res := Result{Value: value}
		for _, v := range vs {
			res = v.Validate(res.Value)
			if res.Err != nil || res.Loading {
				return res
			}
		}
		return res
	})
}

func convert(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, FieldError{Field: e.Field(), Rule: e.Tag(), Message: message(e)})
	}
	return &Error{Fields: fields}
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

// Handler returns a stage handler passing on the validated value. Invalid values
// fail the stage; a loading result fails it with ErrPending.
func Handler(v Validator) pipeline.Handler {
	return func(_ context.Context, value any) (any, error) {
		res := v.Validate(value)
		switch {
		case res.Err != nil:
			return nil, res.Err
		case res.Loading:
			return nil, ErrPending
		}
		return res.Value, nil
	}
}

// Interceptor returns a stage interceptor validating the stage input. While the
// validator is loading the stage is skipped; an invalid value fails the stage.
func Interceptor(name string, v Validator) pipeline.Interceptor {
	return pipeline.Interceptor{
		Name: name,
		Pre: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
			res := v.Validate(s.Value)
			if res.Err != nil {
				return s, res.Err
			}
			if res.Loading {
				s.Skip = true
				return s, nil
			}
			if res.Value != nil {
				s.Value = res.Value
			}
			return s, nil
		},
	}
}

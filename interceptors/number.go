package interceptors

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/dcshock/stageflow/pipeline"
)

// ToFloat converts v to a float64. Numbers are widened, booleans become 0 or 1 and
// strings are parsed after trimming (the empty string is 0). NaN and any other type
// are rejected.
func ToFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case bool:
		if x {
			f = 1
		}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("can not convert %q to a number", x)
		}
		f = p
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			f = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		default:
			return 0, fmt.Errorf("can not convert %T to a number", v)
		}
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("can not convert %v to a number", v)
	}
	return f, nil
}

// RoundTo rounds f to digits significant digits. digits must be in [1, 100].
func RoundTo(f float64, digits int) (float64, error) {
	if digits < 1 || digits > 100 {
		return 0, fmt.Errorf("digits %d out of range [1, 100]", digits)
	}
	if math.IsInf(f, 0) || f == 0 {
		return f, nil
	}
	return strconv.ParseFloat(strconv.FormatFloat(f, 'g', digits, 64), 64)
}

// ToNumber returns a stage interceptor whose pre hook converts the value with
// ToFloat. A value that cannot be converted fails the stage.
func ToNumber(name string) pipeline.Interceptor {
	return pipeline.Interceptor{
		Name: name,
		Pre: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
			f, err := ToFloat(s.Value)
			if err != nil {
				return s, err
			}
			s.Value = f
			return s, nil
		},
	}
}

// RoundNumber returns an interceptor whose post hook converts the value with ToFloat
// and rounds it to digits significant digits. As a pipeline-scoped interceptor it
// rounds the final result of the run.
func RoundNumber(name string, digits int) pipeline.Interceptor {
	return pipeline.Interceptor{
		Name: name,
		Post: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
			f, err := ToFloat(s.Value)
			if err != nil {
				return s, err
			}
			r, err := RoundTo(f, digits)
			if err != nil {
				return s, err
			}
			s.Value = r
			return s, nil
		},
	}
}

package httpstages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dcshock/stageflow/pipeline"
)

// ParseJSON returns a stage handler that unmarshals the input from JSON. Input must be
// []byte, json.RawMessage or string (a response body). Output is the decoded value
// (map[string]any for objects). Inside a MapFlow a body stays one entry: byte slices
// are not split.
func ParseJSON() pipeline.Handler {
	return func(_ context.Context, input any) (any, error) {
		raw, err := rawJSON("parsejson", input)
		if err != nil {
			return nil, err
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("parsejson: %w", err)
		}
		return out, nil
	}
}

// ParseJSONTo returns a stage handler that unmarshals the input into a value of type T.
// Output is *T.
func ParseJSONTo[T any]() pipeline.Handler {
	return func(_ context.Context, input any) (any, error) {
		raw, err := rawJSON("parsejsonto", input)
		if err != nil {
			return nil, err
		}
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("parsejsonto: %w", err)
		}
		return &out, nil
	}
}

func rawJSON(op string, input any) ([]byte, error) {
	switch v := input.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("%s: input must be []byte, json.RawMessage or string, got %T", op, input)
	}
}

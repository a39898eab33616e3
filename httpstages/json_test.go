package httpstages

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dcshock/stageflow/pipeline"
)

func TestParseJSON_BodyTypes(t *testing.T) {
	for name, body := range map[string]any{
		"bytes":  []byte(`{"a":1}`),
		"raw":    json.RawMessage(`{"a":1}`),
		"string": `{"a":1}`,
	} {
		out, err := ParseJSON()(context.Background(), body)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if m, ok := out.(map[string]any); !ok || m["a"] != 1.0 {
			t.Errorf("%s: got %#v", name, out)
		}
	}
}

func TestParseJSON_Errors(t *testing.T) {
	if _, err := ParseJSON()(context.Background(), 42); err == nil {
		t.Error("expected error for a non-body input")
	}
	if _, err := ParseJSON()(context.Background(), `{"a":`); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

// A single []byte body is one MapFlow entry, not a list of bytes.
func TestParseJSON_MapFlowOverOneBody(t *testing.T) {
	d, err := pipeline.New("one-body", []pipeline.StageSpec{
		{Name: "parse", Kind: pipeline.MapFlow, Handler: ParseJSON()},
	}, pipeline.WithRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	res, err := d.Flow(context.Background(), []byte(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	out, ok := res.Value().([]any)
	if !ok || len(out) != 1 {
		t.Fatalf("expected one parsed entry, got %#v", res.Value())
	}
	if m := out[0].(map[string]any); m["a"] != 1.0 {
		t.Errorf("got %v", m)
	}
}

func TestParseJSON_MapThenReduce(t *testing.T) {
	sum := func(acc, v any) any { return acc.(float64) + v.(map[string]any)["n"].(float64) }
	d, err := pipeline.New("bodies", []pipeline.StageSpec{
		{Name: "parse", Kind: pipeline.MapFlow, Handler: ParseJSON()},
		{Name: "sum", Kind: pipeline.ReduceFlow, Handler: sum, InitialValue: 0.0},
	}, pipeline.WithRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	in := []any{[]byte(`{"n":1}`), json.RawMessage(`{"n":2}`), `{"n":3}`}
	res, err := d.Flow(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value() != 6.0 {
		t.Errorf("expected 6, got %v", res.Value())
	}
}

func TestParseJSONTo_InRun(t *testing.T) {
	type status struct {
		State   string `json:"state"`
		Version int    `json:"version"`
	}
	r, err := pipeline.NewRun(context.Background(), `{"state":"up","version":3}`, pipeline.WithRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Flow(ParseJSONTo[status]()); err != nil {
		t.Fatal(err)
	}
	if err := r.Flow(func(v any) any { return v.(*status).Version }); err != nil {
		t.Fatal(err)
	}
	res, err := r.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if res.Value() != 3 {
		t.Errorf("expected version 3, got %v", res.Value())
	}
}

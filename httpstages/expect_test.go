package httpstages

import (
	"context"
	"errors"
	"testing"

	"github.com/dcshock/stageflow/pipeline"
)

func TestExpect(t *testing.T) {
	tests := []struct {
		name    string
		stage   pipeline.Handler
		in      any
		wantErr bool
	}{
		{"status ok", Expect(checkStatus), map[string]any{"status": "ok"}, false},
		{"status error", Expect(checkStatus), map[string]any{"status": "error"}, true},
		{"equal", ExpectEqual(map[string]any{"a": 1.0}), map[string]any{"a": 1.0}, false},
		{"not equal", ExpectEqual("expected"), "other", true},
	}
	for _, tt := range tests {
		out, err := tt.stage(context.Background(), tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrExpectation) {
				t.Errorf("%s: expected ErrExpectation, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
		}
		if out == nil {
			t.Errorf("%s: input not passed through", tt.name)
		}
	}
}

func TestNotEmpty(t *testing.T) {
	for _, v := range []any{nil, []byte{}, "", map[string]any{}, []any{}} {
		if NotEmpty(v) == nil {
			t.Errorf("NotEmpty(%#v): expected error", v)
		}
	}
	for _, v := range []any{[]byte("x"), "x", map[string]any{"a": 1}, []any{1}, 0} {
		if err := NotEmpty(v); err != nil {
			t.Errorf("NotEmpty(%#v): %v", v, err)
		}
	}
}

func asyncBody(body string) pipeline.StageSpec {
	return pipeline.StageSpec{
		Name:         "body",
		Handler:      func(any) *pipeline.Future { return pipeline.Resolved([]byte(body)) },
		Interceptors: []pipeline.Interceptor{ExpectAfter("non-empty", NotEmpty)},
	}
}

func TestExpectAfter_ChecksAsyncOutput(t *testing.T) {
	r, err := pipeline.NewRun(context.Background(), nil, pipeline.WithRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.FlowAsync(asyncBody(`{"status":"ok"}`)); err != nil {
		t.Fatal(err)
	}
	if err := r.Flow(ParseJSON()); err != nil {
		t.Fatal(err)
	}
	if err := r.Flow(Expect(checkStatus)); err != nil {
		t.Fatal(err)
	}
	res, err := r.Finish()
	if err != nil {
		t.Fatal(err)
	}
	out, err := await(t, res.Future())
	if err != nil {
		t.Fatal(err)
	}
	if out.(map[string]any)["status"] != "ok" {
		t.Errorf("got %v", out)
	}
}

func TestExpectAfter_FailureDropsQueuedStages(t *testing.T) {
	r, err := pipeline.NewRun(context.Background(), nil, pipeline.WithRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.FlowAsync(asyncBody("")); err != nil {
		t.Fatal(err)
	}
	parsed := make(chan struct{}, 1)
	if err := r.Flow(func(v any) any { parsed <- struct{}{}; return v }); err != nil {
		t.Fatal(err)
	}
	res, err := r.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := await(t, res.Future()); !errors.Is(err, ErrExpectation) {
		t.Fatalf("expected ErrExpectation, got %v", err)
	}
	select {
	case <-parsed:
		t.Error("queued stage ran after a failed expectation")
	default:
	}
}

func TestKeep_DropsEntriesBeforeParsing(t *testing.T) {
	d, err := pipeline.New("keep", []pipeline.StageSpec{
		{Name: "parse", Kind: pipeline.MapFlow, Handler: ParseJSON(), Filter: Keep(NotEmpty)},
	}, pipeline.WithRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	res, err := d.Flow(context.Background(), []any{[]byte(`{"a":1}`), []byte{}, `{"a":2}`})
	if err != nil {
		t.Fatal(err)
	}
	out, ok := res.Value().([]any)
	if !ok || len(out) != 2 {
		t.Fatalf("expected two parsed entries, got %#v", res.Value())
	}
	if out[1].(map[string]any)["a"] != 2.0 {
		t.Errorf("got %v", out)
	}
}

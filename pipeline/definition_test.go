package pipeline

import (
	"context"
	"testing"
)

func TestDefinition_FlowAndPush(t *testing.T) {
	ctx := context.Background()
	d, err := New("numbers", []StageSpec{
		{Name: "pipe1", Handler: func(v any) any { return v }},
		{Handler: negate},
	}, WithRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	res, err := d.Flow(ctx, 10.0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value() != -10.0 {
		t.Errorf("expected -10, got %v", res.Value())
	}

	s, err := PrepareStage(3, Flow, invert)
	if err != nil {
		t.Fatal(err)
	}
	if n, err := d.Push(s); err != nil || n != 3 {
		t.Fatalf("Push: %d %v", n, err)
	}
	res, err = d.Flow(ctx, 10.0)
	if err != nil {
		t.Fatal(err)
	}
	if !closeTo(res.Value().(float64), -0.1) {
		t.Errorf("expected -0.1, got %v", res.Value())
	}
}

func TestDefinition_AsyncFlow(t *testing.T) {
	d, err := New("async", nil, WithRegistry(nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddFlow(negate); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddFlowAsync(func(v any) *Future { return Resolved(double(v)) }); err != nil {
		t.Fatal(err)
	}
	res, err := d.Flow(context.Background(), 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsAsync() {
		t.Fatal("expected a future")
	}
	v, err := await(t, res)
	if err != nil || v != -4.0 {
		t.Errorf("got %v, %v", v, err)
	}
}

func TestDefinition_SequenceOps(t *testing.T) {
	d, err := New("ops", []StageSpec{
		{Name: "a", Handler: negate},
		{Name: "b", Handler: double},
		{Name: "c", Handler: triple},
	})
	if err != nil {
		t.Fatal(err)
	}
	names := func(d *Definition) string {
		return d.Reduce(func(acc any, s *Stage, _ int) any { return acc.(string) + s.Name() }, "").(string)
	}

	if got := names(d.Slice(1, 3)); got != "bc" {
		t.Errorf("Slice: %s", got)
	}
	if got := names(d.Filter(func(s *Stage, _ int) bool { return s.Name() != "b" })); got != "ac" {
		t.Errorf("Filter: %s", got)
	}
	mapped, err := d.Map(func(s *Stage, i int) *Stage { return s.WithName(s.Name() + s.Name()) })
	if err != nil || names(mapped) != "aabbcc" {
		t.Errorf("Map: %v %v", names(mapped), err)
	}
	if _, err := d.Map(func(*Stage, int) *Stage { return nil }); !IsInvalidStage(err) {
		t.Errorf("Map to nil: expected InvalidStageError, got %v", err)
	}
	if got := names(d.Concat(d.Slice(0, 1))); got != "abca" {
		t.Errorf("Concat: %s", got)
	}

	removed, err := d.Splice(1, 1, d.At(0).WithName("x"), d.At(-1).WithName("y"))
	if err != nil || len(removed) != 1 || removed[0].Name() != "b" {
		t.Fatalf("Splice: %v %v", removed, err)
	}
	if got := names(d); got != "axyc" {
		t.Errorf("after Splice: %s", got)
	}
	if s := d.Shift(); s.Name() != "a" {
		t.Errorf("Shift: %s", s.Name())
	}
	if s := d.Pop(); s.Name() != "c" {
		t.Errorf("Pop: %s", s.Name())
	}
	if _, err := d.RemoveAt(0); err != nil {
		t.Fatal(err)
	}
	if n, err := d.Unshift(removed[0]); err != nil || n != 2 {
		t.Errorf("Unshift: %d %v", n, err)
	}
	if got := names(d); got != "by" || d.Len() != 2 {
		t.Errorf("final: %s (%d)", got, d.Len())
	}
	if _, err := d.Push(&Stage{name: "empty"}); !IsInvalidStage(err) {
		t.Errorf("Push invalid: expected InvalidStageError, got %v", err)
	}
	if _, err := d.RemoveAt(5); err == nil {
		t.Error("RemoveAt out of range: expected error")
	}
	if d.At(7) != nil {
		t.Error("At out of range should be nil")
	}
}

func TestDefinition_NewRejectsInvalidSpec(t *testing.T) {
	_, err := New("bad", []StageSpec{{Name: "no-handler"}})
	if !IsInvalidStage(err) {
		t.Errorf("expected InvalidStageError, got %v", err)
	}
}

func TestDefinition_UsesRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommonStageInterceptors(Interceptor{Name: "plus-one", Post: func(_ context.Context, s PipeState) (PipeState, error) {
		s.Value = s.Value.(float64) + 1
		return s, nil
	}})
	d, err := New("reg", []StageSpec{{Handler: double}, {Handler: double}}, WithRegistry(reg))
	if err != nil {
		t.Fatal(err)
	}
	res, err := d.Flow(context.Background(), 1.0)
	if err != nil {
		t.Fatal(err)
	}
	// ((1*2)+1)*2+1
	if res.Value() != 7.0 {
		t.Errorf("expected 7, got %v", res.Value())
	}
}

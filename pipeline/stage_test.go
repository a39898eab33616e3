package pipeline

import (
	"context"
	"testing"
)

func TestPrepareStage_DefaultsAndShapes(t *testing.T) {
	s, err := PrepareStage(3, MapFlow, func(v any) any { return v })
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "3-mapFlow" || s.Kind() != MapFlow || s.Ordinal() != 3 {
		t.Errorf("unexpected stage %s kind=%v ordinal=%d", s.Name(), s.Kind(), s.Ordinal())
	}

	s, err = PrepareStage(1, Flow, &StageSpec{
		Name:         "named",
		Handler:      func(context.Context, any) (any, error) { return nil, nil },
		Interceptors: []Interceptor{{}, {Name: "keep"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	ics := s.Interceptors()
	if ics[0].Name != "named-interceptor-0" || ics[1].Name != "keep" {
		t.Errorf("interceptor names: %q %q", ics[0].Name, ics[1].Name)
	}

	again, err := PrepareStage(9, Flow, s)
	if err != nil || again != s {
		t.Errorf("prepared stage should pass through, got %v %v", again, err)
	}
}

func TestPrepareStage_Rejects(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		raw  any
	}{
		{"nil", Flow, nil},
		{"not a function", Flow, "nope"},
		{"missing handler", Flow, StageSpec{Name: "x"}},
		{"sync handler on async stage", FlowAsync, func(any) (any, error) { return nil, nil }},
		{"filter outside mapFlow", Flow, StageSpec{Handler: func(v any) any { return v }, Filter: func(any) bool { return true }}},
		{"bad filter", MapFlow, StageSpec{Handler: func(v any) any { return v }, Filter: 1}},
		{"bad reducer", ReduceFlow, func(v any) any { return v }},
		{"unknown kind", Kind(9), func(v any) any { return v }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PrepareStage(1, tt.kind, tt.raw); !IsInvalidStage(err) {
				t.Errorf("expected InvalidStageError, got %v", err)
			}
		})
	}
}

func TestStage_CopiesAreIndependent(t *testing.T) {
	s, err := PrepareStage(1, Flow, func(v any) any { return v })
	if err != nil {
		t.Fatal(err)
	}
	renamed := s.WithName("other")
	swapped := s.WithHandler(Constant(1))
	if s.Name() != "1-flow" || renamed.Name() != "other" {
		t.Errorf("WithName changed the original: %s %s", s.Name(), renamed.Name())
	}
	out, _ := swapped.handler(context.Background(), 5)
	orig, _ := s.handler(context.Background(), 5)
	if out != 1 || orig != 5 {
		t.Errorf("WithHandler: got %v, original %v", out, orig)
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"": Flow, "flow": Flow, "mapFlow": MapFlow, "reduce": ReduceFlow, "FlowAsync": FlowAsync} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseKind("parallel"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

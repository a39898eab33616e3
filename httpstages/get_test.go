package httpstages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dcshock/stageflow/pipeline"
)

func await(t *testing.T, aw pipeline.Awaitable) (any, error) {
	t.Helper()
	f, ok := aw.(*pipeline.Future)
	if !ok {
		t.Fatalf("expected *pipeline.Future, got %T", aw)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Await(ctx)
}

func TestGet(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	stage := Get(nil, ts.URL)
	out, err := await(t, stage(context.Background(), "ignored"))
	if err != nil {
		t.Fatal(err)
	}
	body, ok := out.([]byte)
	if !ok {
		t.Fatalf("expected []byte, got %T", out)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body: got %q", body)
	}
}

func TestGet_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	stage := Get(nil, ts.URL)
	_, err := await(t, stage(context.Background(), "ignored"))
	if err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body"))
	}))
	defer ts.Close()

	stage := Fetch(ts.Client())
	out, err := await(t, stage(context.Background(), ts.URL))
	if err != nil {
		t.Fatal(err)
	}
	body, ok := out.([]byte)
	if !ok {
		t.Fatalf("expected []byte, got %T", out)
	}
	if string(body) != "body" {
		t.Errorf("body: got %q", body)
	}
}

func TestFetch_InputNotString(t *testing.T) {
	stage := Fetch(nil)
	_, err := await(t, stage(context.Background(), 123))
	if err == nil {
		t.Fatal("expected error for non-string input")
	}
}

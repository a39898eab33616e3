// Package store is where pipeline results end up: a small path-addressed key/value
// interface with an in-memory and a Redis implementation, and Commit to write a
// (possibly async) pipeline result into one.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dcshock/stageflow/pipeline"
)

// ErrNotFound is returned by Get for a path that holds no value.
var ErrNotFound = errors.New("store: not found")

// Store holds values by path (e.g. "orders.total").
type Store interface {
	Put(ctx context.Context, path string, value any) error
	// Patch writes several paths at once.
	Patch(ctx context.Context, values map[string]any) error
	Get(ctx context.Context, path string) (any, error)
}

// Commit waits for res to settle and puts its value at path. It returns the value
// written, or the run error if the pipeline failed, in which case nothing is written.
func Commit(ctx context.Context, s Store, path string, res pipeline.Result) (any, error) {
	v, err := res.Await(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Put(ctx, path, v); err != nil {
		return nil, fmt.Errorf("commit %q: %w", path, err)
	}
	return v, nil
}

// Options selects and configures a store for Open.
type Options struct {
	// Kind is "memory" (default) or "redis".
	Kind   string
	Addr   string
	Prefix string
	// TTL applies to Redis keys; zero means no expiration.
	TTL time.Duration
}

// Open returns the store described by opts. Redis stores are pinged first.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		s := DialRedis(opts.Addr, opts.Prefix, opts.TTL)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown kind %q", opts.Kind)
	}
}

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]any)}
}

func (m *MemoryStore) Put(_ context.Context, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[path] = value
	return nil
}

func (m *MemoryStore) Patch(_ context.Context, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, v := range values {
		m.values[path] = v
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, path string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[path]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return v, nil
}

// Paths returns the stored paths in sorted order.
func (m *MemoryStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.values))
	for p := range m.values {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

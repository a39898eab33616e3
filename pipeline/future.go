package pipeline

import (
	"context"
	"sync"
	"time"
)

// Awaitable is the contract a FlowAsync handler's result must satisfy: callbacks
// registered with Then and Catch are invoked once, when the work is fulfilled or
// rejected. Both methods return the receiver so calls can be chained.
type Awaitable interface {
	Then(onFulfilled func(value any)) Awaitable
	Catch(onRejected func(err error)) Awaitable
}

// Future is a write-once result that implements Awaitable. Callbacks registered
// after settlement run immediately on the caller's goroutine.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     any
	err       error
	fulfilled []func(any)
	rejected  []func(error)
}

// NewFuture returns a pending future and the functions that settle it. Only the first
// call to resolve or reject has an effect.
func NewFuture() (f *Future, resolve func(any), reject func(error)) {
	f = &Future{done: make(chan struct{})}
	return f, func(v any) { f.settle(v, nil) }, func(err error) { f.settle(nil, err) }
}

// Resolved returns a future already fulfilled with v.
func Resolved(v any) *Future {
	f, resolve, _ := NewFuture()
	resolve(v)
	return f
}

// Rejected returns a future already rejected with err.
func Rejected(err error) *Future {
	f, _, reject := NewFuture()
	reject(err)
	return f
}

// Go runs fn on a new goroutine and returns a future for its result.
func Go(ctx context.Context, fn func(ctx context.Context) (any, error)) *Future {
	f, resolve, reject := NewFuture()
	go func() {
		v, err := fn(ctx)
		if err != nil {
			reject(err)
			return
		}
		resolve(v)
	}()
	return f
}

// After returns a future that runs fn once d has elapsed.
func After(d time.Duration, fn func() (any, error)) *Future {
	f, resolve, reject := NewFuture()
	time.AfterFunc(d, func() {
		v, err := fn()
		if err != nil {
			reject(err)
			return
		}
		resolve(v)
	})
	return f
}

func (f *Future) settle(v any, err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.value, f.err = v, err
	fulfilled, rejected := f.fulfilled, f.rejected
	f.fulfilled, f.rejected = nil, nil
	close(f.done)
	f.mu.Unlock()

	if err != nil {
		for _, cb := range rejected {
			cb(err)
		}
		return
	}
	for _, cb := range fulfilled {
		cb(v)
	}
}

// Then implements Awaitable.
func (f *Future) Then(onFulfilled func(any)) Awaitable {
	f.mu.Lock()
	if !f.settled {
		f.fulfilled = append(f.fulfilled, onFulfilled)
		f.mu.Unlock()
		return f
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	if err == nil {
		onFulfilled(v)
	}
	return f
}

// Catch implements Awaitable.
func (f *Future) Catch(onRejected func(error)) Awaitable {
	f.mu.Lock()
	if !f.settled {
		f.rejected = append(f.rejected, onRejected)
		f.mu.Unlock()
		return f
	}
	err := f.err
	f.mu.Unlock()
	if err != nil {
		onRejected(err)
	}
	return f
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future settles or ctx is done. A cancelled ctx does not
// cancel the underlying work; it only stops waiting.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

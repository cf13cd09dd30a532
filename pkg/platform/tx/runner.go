package tx

import (
	"context"
	"sync"
)

// Runner runs a unit of work atomically with respect to other units of work.
// Implementations wrap a SQL transaction, a BoltDB read-write transaction or,
// in-memory, a coarse lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MutexRunner serializes units of work for in-memory stores. In-memory stores
// cannot roll back, so callers must not write before their last fallible step.
// Nested calls made with the context passed to fn join the held lock.
type MutexRunner struct {
	mu sync.Mutex
}

func NewMutexRunner() *MutexRunner {
	return &MutexRunner{}
}

func (r *MutexRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if held, _ := ctx.Value(heldKey{}).(*MutexRunner); held == r {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.WithValue(ctx, heldKey{}, r))
}

type heldKey struct{}

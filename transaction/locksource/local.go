package locksource

import (
	"context"
	"sync"
)

// Local provides locks backed by local concurrency primitives. It's the
// default ContextLock for a single-process conda-core invocation: a prefix
// or cache directory touched only by one process at a time needs nothing
// more than process-local mutual exclusion.
//
// The zero Local is ready for use. A Local must not be copied after use.
type Local struct {
	m sync.Map
}

// barrier is a more descriptive name for a chan struct{} used as an
// execution barrier.
type barrier chan struct{}

var _ ContextLock = (*Local)(nil)

// Lock implements ContextLock.
func (l *Local) Lock(ctx context.Context, key string) (context.Context, context.CancelFunc) {
	for {
		v, load := l.m.LoadOrStore(key, make(barrier))
		b := v.(barrier)
		if load { // Do not have the lock.
			select {
			case <-b:
				continue
			case <-ctx.Done():
				return ctx, func() {}
			}
		}
		// Have the lock.
		c, f := context.WithCancel(ctx)
		return c, l.cancelfunc(b, key, f)
	}
}

// TryLock implements ContextLock.
func (l *Local) TryLock(ctx context.Context, key string) (context.Context, context.CancelFunc) {
	c, f := context.WithCancel(ctx)
	v, load := l.m.LoadOrStore(key, make(barrier))
	if load {
		f()
		return c, func() {}
	}
	b := v.(barrier)
	return c, l.cancelfunc(b, key, f)
}

// cancelfunc returns a context.CancelFunc that calls next and then unlocks.
func (l *Local) cancelfunc(b barrier, key string, next context.CancelFunc) context.CancelFunc {
	return func() {
		next()          // Cancel the child Context.
		l.m.Delete(key) // Remove the barrier.
		close(b)        // Alert any waiting goroutines.
	}
}

// Package pglock provides a locksource.ContextLock backed by PostgreSQL
// advisory locks, for conda-core deployments where multiple processes
// share one package cache or prefix (for example, a CI fleet with a
// shared NFS-mounted pkgs dir).
//
// Contexts derived from a Locker are canceled when the underlying
// connection to the lock provider is lost, or when a parent context is
// canceled.
package pglock

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Locker that pulls connections from the provided pool.
//
// The provided context is only used for initial setup. Close must be
// called to release held resources.
func New(ctx context.Context, cfg *pgxpool.Config) (*Locker, error) {
	cfg = cfg.Copy()
	cfg.MaxConns = 2
	cfg.MinConns = 1
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pglock: failed to create pool: %w", err)
	}
	l := &Locker{
		p:  p,
		rc: sync.NewCond(&sync.Mutex{}),
	}
	runtime.SetFinalizer(l, func(l *Locker) {
		panic("pglock.Locker not closed")
	})
	go l.run(ctx)
	go l.ping(ctx)

	ready := make(chan struct{})
	go func() {
		l.rc.L.Lock()
		defer l.rc.L.Unlock()
		for l.conn == nil && l.gen != -1 {
			l.rc.Wait()
		}
		close(ready)
	}()
	select {
	case <-ready:
	case <-ctx.Done():
		l.Close()
		return nil, ctx.Err()
	}
	return l, nil
}

// Locker provides context-scoped locks over a set of shared Postgres
// advisory-lock keys.
type Locker struct {
	p *pgxpool.Pool

	rc   *sync.Cond
	conn *pgconn.PgConn
	cur  map[string]struct{}
	gone chan struct{}
	// gen tracks which generation of connection is available. A lock
	// acquired under a stale generation is no longer valid. gen < 0
	// means the Locker is shutting down.
	gen int
}

var (
	errExiting    = errors.New("pglock: exiting")
	errLockFail   = errors.New("pglock: lock acquisition failed")
	errDoubleLock = errors.New("pglock: lock already held")
	errConnGone   = errors.New("pglock: connection gone")
)

func (l *Locker) run(ctx context.Context) {
	for {
		tctx, done := context.WithTimeout(ctx, 5*time.Second)
		err := l.p.AcquireFunc(tctx, l.reconnect(ctx))
		done()
		switch {
		case errors.Is(err, errExiting), errors.Is(err, nil):
			return
		case errors.Is(err, context.DeadlineExceeded):
			// retry immediately
		default:
			// unexpected error; retry immediately
		}
	}
}

// Close spins down background goroutines and frees resources.
func (l *Locker) Close() error {
	runtime.SetFinalizer(l, nil)
	l.rc.L.Lock()
	defer l.rc.L.Unlock()
	l.gen = -1
	l.rc.Broadcast()
	return nil
}

// reconnect acquires a connection, stashes it, then suspends until
// awoken. Every other method strobes the Cond to wake this loop and
// check whether the connection has died.
func (l *Locker) reconnect(ctx context.Context) func(*pgxpool.Conn) error {
	return func(c *pgxpool.Conn) error {
		l.rc.L.Lock()
		defer l.rc.L.Unlock()
		l.conn = c.Conn().PgConn()
		l.gone = make(chan struct{})
		l.cur = make(map[string]struct{}, 16)
		l.gen++
		defer func() {
			close(l.gone)
			l.gone = nil
			l.conn = nil
			l.cur = nil
		}()
		l.rc.Broadcast()

		for l.gen > 0 {
			pctx, done := context.WithTimeout(ctx, time.Second)
			err := c.Ping(pctx)
			done()
			if err != nil {
				return err
			}
			l.rc.Wait()
		}
		return errExiting
	}
}

func (l *Locker) ping(ctx context.Context) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		<-t.C
		l.rc.L.Lock()
		leave := l.gen < 0
		l.rc.L.Unlock()
		if leave {
			return
		}
		l.rc.Broadcast()
	}
}

// TryLock attempts to lock on the provided key. If unsuccessful, an
// already-canceled Context is returned.
func (l *Locker) TryLock(parent context.Context, key string) (context.Context, context.CancelFunc) {
	child, done := context.WithCancel(parent)
	w, err := l.try(parent, key, done)
	if err == nil {
		return child, w.Unwatch
	}
	if !errors.Is(err, errConnGone) && !errors.Is(err, errLockFail) && !errors.Is(err, errDoubleLock) {
		l.rc.Broadcast()
	}
	done()
	return child, done
}

// Lock attempts to obtain the named lock until it succeeds or the passed
// Context is canceled.
func (l *Locker) Lock(parent context.Context, key string) (context.Context, context.CancelFunc) {
	child, done := context.WithCancel(parent)
	for wait := 500 * time.Millisecond; ; backoff(&wait) {
		w, err := l.try(parent, key, done)
		if err == nil {
			return child, w.Unwatch
		}
		if !errors.Is(err, errConnGone) && !errors.Is(err, errLockFail) && !errors.Is(err, errDoubleLock) {
			l.rc.Broadcast()
		}

		t := time.NewTimer(wait)
		select {
		case <-parent.Done():
			t.Stop()
			done()
			return parent, func() {}
		case <-t.C:
			t.Stop()
		}
	}
}

// backoff implements a doubling backoff, capped at 10 seconds.
func backoff(w *time.Duration) {
	const max = 10 * time.Second
	*w *= 2
	if *w > max {
		*w = max
	}
}

// try attempts to take an advisory lock, reporting an error if
// unsuccessful. On success the returned watcher releases the lock when
// told to unwatch.
func (l *Locker) try(ctx context.Context, key string, cf context.CancelFunc) (*watcher, error) {
	const query = `SELECT lock FROM pg_try_advisory_lock($1) lock WHERE lock = true;`
	kb := keyify(key)
	l.rc.L.Lock()
	defer l.rc.L.Unlock()
	if l.conn == nil {
		return nil, errConnGone
	}
	if _, ok := l.cur[key]; ok {
		return nil, errDoubleLock
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tag, err := l.conn.ExecParams(ctx, query, [][]byte{kb}, nil, []int16{1}, nil).Close()
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, errLockFail
	}
	l.cur[key] = struct{}{}
	w := newWatcher(l.unlock(ctx, key, kb, l.gen, cf))
	go w.Watch(l.gone)
	return w, nil
}

// unlock returns a function that unconditionally calls next and releases
// the advisory lock if it's still held under the same connection
// generation it was acquired under.
func (l *Locker) unlock(ctx context.Context, key string, kb []byte, gen int, next context.CancelFunc) context.CancelFunc {
	const query = `SELECT lock FROM pg_advisory_unlock($1) lock WHERE lock = true;`
	return func() {
		defer next()
		l.rc.L.Lock()
		defer l.rc.L.Unlock()

		if gen < l.gen || l.conn == nil || l.gen < 0 {
			// The connection has been replaced or torn down since
			// acquisition; there's no lock left for this process to
			// release.
			return
		}

		qctx := ctx
		var done context.CancelFunc
		if err := ctx.Err(); err != nil {
			qctx, done = context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
		}

		tag, err := l.conn.ExecParams(qctx, query, [][]byte{kb}, nil, []int16{1}, nil).Close()
		if err != nil {
			l.rc.Broadcast()
			return
		}
		if _, ok := l.cur[key]; !ok || tag.RowsAffected() == 0 {
			// lock protocol mismatch; nothing further to do
		}
		delete(l.cur, key)
	}
}

// watcher waits on two cancellation sources and calls the wrapped
// function exactly once, as soon as possible.
type watcher struct {
	once     sync.Once
	onCancel func()
	done     chan struct{}
}

func newWatcher(onCancel func()) *watcher {
	return &watcher{onCancel: onCancel, done: make(chan struct{})}
}

// Watch blocks until ch is closed (connection lost) or Unwatch is called.
// Run it as its own goroutine.
func (w *watcher) Watch(ch <-chan struct{}) {
	select {
	case <-ch:
		w.once.Do(w.onCancel)
		<-w.done
	case <-w.done:
	}
}

// Unwatch tears down the watch. It must be called unconditionally.
func (w *watcher) Unwatch() {
	w.once.Do(w.onCancel)
	close(w.done)
}

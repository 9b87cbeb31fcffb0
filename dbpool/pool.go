// Package dbpool implements the database connection pool the server's
// design calls an "external collaborator": a mutex-guarded queue of
// connections, handed out via a scoped lease that re-enqueues on
// release. Waiters queue up in call order behind per-waiter channels
// rather than a bare condition variable, so that when a connection
// becomes available it always goes to whichever blocked Acquire called
// first, instead of whichever the Go runtime's scheduler happens to wake.
//
// Grounded on original_source/src/utils/db/DbConnectionPool.cc, with two
// deliberate redesigns: the original is a process-global singleton
// (DbConnectionPool::getInstance()) — this module exposes an explicit
// *Handle instead, constructed by the caller and threaded through
// config/server setup, per the distilled spec's §9 "no global singleton"
// resolution; and the original's wait is a bare condition variable with
// no ordering guarantee, upgraded to the FIFO waiter queue below to
// satisfy SPEC_FULL §8's pool fairness property, which the original
// itself doesn't actually guarantee either.
package dbpool

import (
	"context"
	"errors"
	"sync"

	"github.com/ignis-web/ignis/log"
)

// Conn is the minimal interface a pooled connection must satisfy. The
// retrieval pack carries no concrete database driver dependency, so this
// stays an interface a caller's own driver implements — the one place
// this module does not wire a third-party client, since none appears
// anywhere in the examples.
type Conn interface {
	Ping() error
	Close() error
}

// Factory creates a new Conn, used both for initial pool population and
// for reconnecting a connection that fails its health check.
type Factory func() (Conn, error)

// ErrNotInitialized is returned by Acquire when the pool has never been
// populated — mirroring the original's "Connection pool not initialized"
// exception, since Acquire must not block forever waiting on a pool that
// will never receive connections.
var ErrNotInitialized = errors.New("dbpool: not initialized")

// waiter is one blocked Acquire call's place in the FIFO queue. ch is
// buffered 1 so dispatchLocked's send never blocks while holding the
// pool's mutex.
type waiter struct {
	ch chan Conn
}

// Handle is a single connection pool instance. The zero value is not
// usable; construct with New.
type Handle struct {
	mu          sync.Mutex
	factory     Factory
	conns       []Conn
	initialized bool
	waiters     []*waiter
}

// New returns an empty, uninitialized Handle.
func New(factory Factory) *Handle {
	return &Handle{factory: factory}
}

// Init populates the pool with size freshly created connections. Calling
// Init more than once is a no-op, matching the original's "ensure only
// initialized once" guard.
func (h *Handle) Init(size int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	for i := 0; i < size; i++ {
		conn, err := h.factory()
		if err != nil {
			return err
		}

		h.conns = append(h.conns, conn)
	}

	h.initialized = true
	log.Infof("dbpool: initialized with %d connections", size)
	return nil
}

// Lease is a connection checked out of the pool. Release must be called
// exactly once to return it — typically via defer.
type Lease struct {
	handle *Handle
	conn   Conn
}

// Conn exposes the underlying connection.
func (l *Lease) Conn() Conn {
	return l.conn
}

// Release re-enqueues the connection, handing it straight to the
// longest-waiting blocked Acquire if there is one.
func (l *Lease) Release() {
	l.handle.mu.Lock()
	l.handle.conns = append(l.handle.conns, l.conn)
	l.handle.dispatchLocked()
	l.handle.mu.Unlock()
}

// dispatchLocked hands queued connections to queued waiters, oldest
// waiter first, until one side or the other runs out. Called with mu
// held. Never blocks: each waiter's channel is buffered 1 and received
// from at most once.
func (h *Handle) dispatchLocked() {
	for len(h.conns) > 0 && len(h.waiters) > 0 {
		w := h.waiters[0]
		h.waiters = h.waiters[1:]

		conn := h.conns[len(h.conns)-1]
		h.conns = h.conns[:len(h.conns)-1]
		w.ch <- conn
	}
}

func (h *Handle) removeWaiterLocked(w *waiter) bool {
	for i, cand := range h.waiters {
		if cand == w {
			h.waiters = append(h.waiters[:i], h.waiters[i+1:]...)
			return true
		}
	}

	return false
}

// Acquire blocks until a connection is available, the pool is
// initialized and has capacity, or ctx is done. Concurrent callers are
// served strictly in call order: each blocked Acquire queues a waiter
// behind the ones already queued, and dispatchLocked always hands a
// freed connection to the front of that queue. A connection that fails
// its Ping is reconnected via the factory before being handed out.
func (h *Handle) Acquire(ctx context.Context) (*Lease, error) {
	h.mu.Lock()

	if !h.initialized {
		h.mu.Unlock()
		return nil, ErrNotInitialized
	}

	var conn Conn
	if len(h.conns) > 0 && len(h.waiters) == 0 {
		conn = h.conns[len(h.conns)-1]
		h.conns = h.conns[:len(h.conns)-1]
		h.mu.Unlock()
	} else {
		w := &waiter{ch: make(chan Conn, 1)}
		h.waiters = append(h.waiters, w)
		h.mu.Unlock()

		select {
		case conn = <-w.ch:
		case <-ctx.Done():
			h.mu.Lock()
			if h.removeWaiterLocked(w) {
				h.mu.Unlock()
				return nil, ctx.Err()
			}
			h.mu.Unlock()

			// dispatchLocked already handed us a connection in the race
			// between ctx firing and our removal; put it back for the
			// next waiter in line rather than leaking it.
			conn = <-w.ch
			h.mu.Lock()
			h.conns = append(h.conns, conn)
			h.dispatchLocked()
			h.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	if err := conn.Ping(); err != nil {
		log.Warnf("dbpool: connection lost, reconnecting: %v", err)

		fresh, ferr := h.factory()
		if ferr != nil {
			h.mu.Lock()
			h.conns = append(h.conns, conn)
			h.dispatchLocked()
			h.mu.Unlock()
			return nil, ferr
		}

		conn = fresh
	}

	return &Lease{handle: h, conn: conn}, nil
}

// Close releases every idle connection. In-flight leases are unaffected
// and will re-enqueue into a pool nobody will drain further — callers
// should stop issuing Acquire calls before Close.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for _, conn := range h.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	h.conns = nil
	return firstErr
}

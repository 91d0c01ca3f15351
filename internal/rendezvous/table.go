// Package rendezvous pairs a single waiter with a single answer per key.
//
// A waiter registers with Begin before it asks the user anything, then blocks
// in Wait. Whoever receives the answer calls Resolve. Cells are removed when
// the wait ends, whatever the outcome, so a late Resolve reports false.
package rendezvous

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrTimeout    = errors.New("rendezvous: timed out waiting for answer")
	ErrSuperseded = errors.New("rendezvous: superseded by a newer wait")
	ErrCancelled  = errors.New("rendezvous: wait cancelled")
)

type cell[V any] struct {
	answer chan V
	gone   chan struct{}

	// set under the table lock before gone is closed
	cancelled bool
}

type Table[K comparable, V any] struct {
	mu    sync.Mutex
	cells map[K]*cell[V]
}

func New[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{cells: make(map[K]*cell[V])}
}

// Ticket is a registered wait on one key.
type Ticket[K comparable, V any] struct {
	table *Table[K, V]
	key   K
	c     *cell[V]
}

// Begin opens a fresh cell for key. An outstanding cell for the same key is
// superseded and its waiter returns ErrSuperseded.
func (t *Table[K, V]) Begin(key K) *Ticket[K, V] {
	c := &cell[V]{answer: make(chan V, 1), gone: make(chan struct{})}

	t.mu.Lock()
	if old, ok := t.cells[key]; ok {
		close(old.gone)
	}
	t.cells[key] = c
	t.mu.Unlock()

	return &Ticket[K, V]{table: t, key: key, c: c}
}

// Resolve hands v to whoever waits on key. It returns false when nobody is
// waiting, which callers treat as a stale answer.
func (t *Table[K, V]) Resolve(key K, v V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.cells[key]
	if !ok {
		return false
	}
	delete(t.cells, key)
	c.answer <- v
	return true
}

// Pending reports whether a wait is outstanding for key.
func (t *Table[K, V]) Pending(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.cells[key]
	return ok
}

func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cells)
}

// Cancel drops the wait for key, if any. Its waiter returns ErrCancelled.
func (t *Table[K, V]) Cancel(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cells[key]
	if !ok {
		return false
	}
	t.cancelLocked(key, c)
	return true
}

func (t *Table[K, V]) cancelLocked(key K, c *cell[V]) {
	c.cancelled = true
	close(c.gone)
	delete(t.cells, key)
}

// Cancel drops this ticket's wait. A newer wait on the same key is left alone.
func (tk *Ticket[K, V]) Cancel() bool {
	t := tk.table
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.cells[tk.key]; ok && cur == tk.c {
		t.cancelLocked(tk.key, tk.c)
		return true
	}
	return false
}

func (t *Table[K, V]) evict(key K, c *cell[V]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.cells[key]; ok && cur == c {
		delete(t.cells, key)
	}
}

// Wait blocks until the answer arrives, timeout elapses, the ticket is
// superseded or cancelled, or ctx ends. The cell is always evicted on return.
func (tk *Ticket[K, V]) Wait(ctx context.Context, timeout time.Duration) (V, error) {
	defer tk.table.evict(tk.key, tk.c)

	var zero V
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-tk.c.answer:
		return v, nil
	case <-tk.c.gone:
		if tk.c.cancelled {
			return zero, ErrCancelled
		}
		return zero, ErrSuperseded
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		// An answer may have landed as the timer fired
		select {
		case v := <-tk.c.answer:
			return v, nil
		default:
			return zero, ErrTimeout
		}
	}
}

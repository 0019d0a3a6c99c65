package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTimeout bounds how long Acquire waits for the gate.
const DefaultTimeout = 2 * time.Minute

var (
	// ErrBusy is returned when the gate could not be acquired in time.
	ErrBusy = errors.New("gate: busy")
	// ErrInterrupted is returned when the caller's context ends while queued.
	ErrInterrupted = errors.New("gate: interrupted")
)

// Gate is a process-wide mutual exclusion token with FIFO hand-off and a
// bounded wait. At most one Ticket holds it at any instant.
type Gate struct {
	timeout time.Duration

	mu     sync.Mutex
	holder *Ticket
	queue  []*Ticket
	seq    uint64
}

// Ticket represents one acquisition attempt. A granted ticket owns the gate
// until Release is called.
type Ticket struct {
	gate  *Gate
	seq   uint64
	ready chan struct{}
}

// New returns a gate that waits at most timeout in Acquire. A timeout of
// zero or less never waits: Acquire succeeds only when the gate is free.
func New(timeout time.Duration) *Gate {
	return &Gate{timeout: timeout}
}

// Timeout reports the configured maximum wait.
func (g *Gate) Timeout() time.Duration {
	return g.timeout
}

// Acquire blocks until the gate is handed to this caller, the timeout
// elapses (ErrBusy) or ctx is done (ErrInterrupted wrapping ctx.Err()).
// Waiters are served strictly in arrival order. A failed Acquire leaves no
// trace in the queue and never owns the gate.
func (g *Gate) Acquire(ctx context.Context) (*Ticket, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	g.mu.Lock()
	g.seq++
	t := &Ticket{gate: g, seq: g.seq, ready: make(chan struct{})}
	if g.holder == nil && len(g.queue) == 0 {
		g.holder = t
		close(t.ready)
		g.mu.Unlock()
		return t, nil
	}
	if g.timeout <= 0 {
		g.mu.Unlock()
		return nil, ErrBusy
	}
	g.queue = append(g.queue, t)
	g.mu.Unlock()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case <-t.ready:
		return t, nil
	case <-timer.C:
		return nil, g.abandon(t, ErrBusy)
	case <-ctx.Done():
		return nil, g.abandon(t, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err()))
	}
}

// abandon withdraws t from the queue. If the gate was handed to t while it
// was giving up, ownership moves on to the next waiter.
func (g *Gate) abandon(t *Ticket, cause error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder == t {
		g.grantNextLocked()
		return cause
	}
	for idx, queued := range g.queue {
		if queued == t {
			copy(g.queue[idx:], g.queue[idx+1:])
			g.queue[len(g.queue)-1] = nil
			g.queue = g.queue[:len(g.queue)-1]
			break
		}
	}
	return cause
}

func (g *Gate) grantNextLocked() {
	if len(g.queue) == 0 {
		g.holder = nil
		return
	}
	next := g.queue[0]
	g.queue[0] = nil
	g.queue = g.queue[1:]
	g.holder = next
	close(next.ready)
}

// Held reports whether some ticket currently owns the gate.
func (g *Gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder != nil
}

// Waiting reports the number of queued acquisition attempts.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Release hands the gate to the next waiter. Only the current holder can
// release; calling Release again, or on a ticket that does not hold the
// gate, is a no-op.
func (t *Ticket) Release() {
	if t == nil || t.gate == nil {
		return
	}
	g := t.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != t {
		return
	}
	g.grantNextLocked()
}

// Seq reports the arrival order of the ticket, starting at 1.
func (t *Ticket) Seq() uint64 {
	if t == nil {
		return 0
	}
	return t.seq
}

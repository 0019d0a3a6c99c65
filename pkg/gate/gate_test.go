package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGate_AcquireRelease(t *testing.T) {
	g := New(time.Second)
	ticket, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !g.Held() {
		t.Fatalf("expected gate held")
	}
	ticket.Release()
	if g.Held() {
		t.Fatalf("expected gate free after release")
	}
	ticket.Release()
	if g.Held() {
		t.Fatalf("second release must be a no-op")
	}
}

func TestGate_ReleaseByStaleTicketIsNoop(t *testing.T) {
	g := New(time.Second)
	first, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire first: %v", err)
	}
	first.Release()

	second, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire second: %v", err)
	}
	first.Release()
	if !g.Held() {
		t.Fatalf("stale ticket released the gate held by another ticket")
	}
	second.Release()
}

func TestGate_FIFOOrder(t *testing.T) {
	g := New(5 * time.Second)
	holder, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire holder: %v", err)
	}

	const waiters = 8
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ticket, err := g.Acquire(context.Background())
			if err != nil {
				t.Errorf("waiter %d: %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			ticket.Release()
		}(i)
		// stagger arrivals so queue order is the loop order
		waitFor(t, func() bool { return g.Waiting() == i+1 })
	}

	holder.Release()
	wg.Wait()

	want := make([]int, waiters)
	for i := range want {
		want[i] = i
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("grant order mismatch (-want +got):\n%s", diff)
	}
}

func TestGate_TimeoutReturnsBusy(t *testing.T) {
	g := New(20 * time.Millisecond)
	holder, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire holder: %v", err)
	}
	defer holder.Release()

	start := time.Now()
	ticket, err := g.Acquire(context.Background())
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if ticket != nil {
		t.Fatalf("expected no ticket on timeout")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("returned before timeout: %s", elapsed)
	}
	if g.Waiting() != 0 {
		t.Fatalf("timed out waiter left in queue")
	}
}

func TestGate_ZeroTimeoutNeverWaits(t *testing.T) {
	g := New(0)
	holder, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire holder: %v", err)
	}
	defer holder.Release()
	if _, err := g.Acquire(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestGate_CancelWhileQueued(t *testing.T) {
	g := New(5 * time.Second)
	holder, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire holder: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Acquire(ctx)
		done <- err
	}()
	waitFor(t, func() bool { return g.Waiting() == 1 })

	cancel()
	err = <-done
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected interrupted/canceled, got %v", err)
	}
	if g.Waiting() != 0 {
		t.Fatalf("cancelled waiter left in queue")
	}

	holder.Release()
	if g.Held() {
		t.Fatalf("gate handed to a cancelled waiter")
	}
}

func TestGate_CancelledContextFailsFast(t *testing.T) {
	g := New(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Acquire(ctx); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if g.Held() {
		t.Fatalf("cancelled acquire must not hold the gate")
	}
}

func TestGate_MutualExclusionUnderLoad(t *testing.T) {
	g := New(5 * time.Second)
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := g.Acquire(context.Background())
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer ticket.Release()
			n := inside.Add(1)
			for {
				seen := maxSeen.Load()
				if n <= seen || maxSeen.CompareAndSwap(seen, n) {
					break
				}
			}
			time.Sleep(100 * time.Microsecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()
	if got := maxSeen.Load(); got != 1 {
		t.Fatalf("expected at most one holder, saw %d", got)
	}
}

func TestGate_WaiterGrantedAfterTimeoutOfEarlierWaiter(t *testing.T) {
	g := New(5 * time.Second)
	holder, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire holder: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := g.Acquire(ctx)
		first <- err
	}()
	waitFor(t, func() bool { return g.Waiting() == 1 })

	second := make(chan *Ticket, 1)
	go func() {
		ticket, err := g.Acquire(context.Background())
		if err != nil {
			t.Errorf("second acquire: %v", err)
		}
		second <- ticket
	}()
	waitFor(t, func() bool { return g.Waiting() == 2 })

	cancel()
	<-first
	holder.Release()

	ticket := <-second
	if ticket == nil || ticket.Seq() != 3 {
		t.Fatalf("expected third ticket to own the gate, got %+v", ticket)
	}
	ticket.Release()
}

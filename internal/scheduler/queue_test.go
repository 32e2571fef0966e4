package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aruniverse/rushstack/internal/graph"
)

// mustNext pulls one operation from the queue, failing the test on error or on
// unexpected exhaustion.
func mustNext(t *testing.T, q *WorkQueue) *graph.Operation {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	op, err := q.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v, want operation", err)
	}
	return op
}

// finish completes an operation as the execution component would: the graph
// mutation and the reconciliation happen in one critical section.
func finish(q *WorkQueue, op *graph.Operation, status graph.Status) {
	q.Update(func() { op.Finish(status) })
}

// TestDispatchFollowsDependencies runs the canonical A -> B -> C scenario:
// equal weights, no comparator preference beyond critical path, dispatch must
// be A then B then C with caller-driven unblocking in between.
func TestDispatchFollowsDependencies(t *testing.T) {
	ops := chain("A", "B", "C")
	q, err := NewWorkQueue(ops, ByCriticalPath)
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	for _, want := range []string{"A", "B", "C"} {
		op := mustNext(t, q)
		if op.Name != want {
			t.Fatalf("dispatch = %s, want %s", op.Name, want)
		}
		finish(q, op, graph.StatusSucceeded)
	}

	if _, err := q.Next(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next() after drain error = %v, want ErrExhausted", err)
	}
}

// TestDependentNeverDispatchedEarly verifies a request for work blocks while
// the only remaining operations still have outstanding dependencies.
func TestDependentNeverDispatchedEarly(t *testing.T) {
	ops := chain("A", "B")
	q, err := NewWorkQueue(ops, ByCriticalPath)
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	a := mustNext(t, q)
	if a.Name != "A" {
		t.Fatalf("first dispatch = %s, want A", a.Name)
	}

	got := make(chan *graph.Operation, 1)
	go func() {
		op, err := q.Next(context.Background())
		if err == nil {
			got <- op
		}
	}()

	// B has an unmet dependency; the request must stay asleep.
	select {
	case op := <-got:
		t.Fatalf("received %s while its dependency was outstanding", op.Name)
	case <-time.After(50 * time.Millisecond):
	}

	finish(q, a, graph.StatusSucceeded)

	select {
	case op := <-got:
		if op.Name != "B" {
			t.Errorf("received %s after unblocking, want B", op.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for B after its dependency completed")
	}
}

// TestConcurrentRequestersGetDistinctOperations races N workers against a
// backlog of exactly N independent ready operations: each must receive exactly
// one distinct operation.
func TestConcurrentRequestersGetDistinctOperations(t *testing.T) {
	const n = 8

	ops := make([]*graph.Operation, n)
	for i := range ops {
		ops[i] = graph.NewOperation(string(rune('A'+i)), "true", 1)
	}
	q, err := NewWorkQueue(ops, ByCriticalPath)
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	var wg sync.WaitGroup
	received := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			op, err := q.Next(ctx)
			if err != nil {
				t.Errorf("Next() error = %v", err)
				return
			}
			received <- op.Name
		}()
	}
	wg.Wait()
	close(received)

	seen := make(map[string]bool)
	for name := range received {
		if seen[name] {
			t.Errorf("operation %s delivered twice", name)
		}
		seen[name] = true
	}
	if len(seen) != n {
		t.Errorf("delivered %d distinct operations, want %d", len(seen), n)
	}
}

// TestExhaustionIsIdempotent verifies every request after the backlog empties
// resolves with the exhaustion signal, repeatedly.
func TestExhaustionIsIdempotent(t *testing.T) {
	a := graph.NewOperation("A", "true", 1)
	q, err := NewWorkQueue([]*graph.Operation{a}, ByCriticalPath)
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	finish(q, mustNext(t, q), graph.StatusSucceeded)

	for i := 0; i < 3; i++ {
		if _, err := q.Next(context.Background()); !errors.Is(err, ErrExhausted) {
			t.Errorf("Next() #%d error = %v, want ErrExhausted", i, err)
		}
	}
}

// TestExhaustionReleasesPendingRequests verifies a request issued before
// exhaustion is released with the done signal when the backlog empties, here
// via an upstream failure blocking the rest of the graph.
func TestExhaustionReleasesPendingRequests(t *testing.T) {
	ops := chain("A", "B")
	q, err := NewWorkQueue(ops, ByCriticalPath)
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	a := mustNext(t, q)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Next(context.Background())
		errCh <- err
	}()

	// Give the second requester time to register before failing A.
	time.Sleep(20 * time.Millisecond)

	// A fails: B's subtree is blocked, reconciliation drops it, and the
	// pending request must be released with exhaustion.
	finish(q, a, graph.StatusFailed)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrExhausted) {
			t.Errorf("pending Next() error = %v, want ErrExhausted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending request never released after exhaustion")
	}
}

// TestEmptyGraphExhaustsImmediately verifies a queue built from zero
// operations resolves every request with exhaustion.
func TestEmptyGraphExhaustsImmediately(t *testing.T) {
	q, err := NewWorkQueue(nil, ByCriticalPath)
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	if _, err := q.Next(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next() error = %v, want ErrExhausted", err)
	}
}

// TestHeavierWeightDispatchedFirst supplies a "higher weight first" comparator
// over two independent operations and requests twice in sequence.
func TestHeavierWeightDispatchedFirst(t *testing.T) {
	x := graph.NewOperation("X", "true", 2)
	y := graph.NewOperation("Y", "true", 9)
	q, err := NewWorkQueue([]*graph.Operation{x, y}, func(a, b *graph.Operation) int {
		return a.Weight - b.Weight
	})
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	if op := mustNext(t, q); op.Name != "Y" {
		t.Errorf("first dispatch = %s, want Y (heavier)", op.Name)
	}
	if op := mustNext(t, q); op.Name != "X" {
		t.Errorf("second dispatch = %s, want X", op.Name)
	}
}

// TestRequestCancellation verifies cancelling a pending request wakes only
// that requester and leaves the queue usable.
func TestRequestCancellation(t *testing.T) {
	ops := chain("A", "B")
	q, err := NewWorkQueue(ops, ByCriticalPath)
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	a := mustNext(t, q)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Next(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled Next() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request never returned")
	}

	// The queue must still dispatch to a fresh requester.
	finish(q, a, graph.StatusSucceeded)
	if op := mustNext(t, q); op.Name != "B" {
		t.Errorf("dispatch after cancellation = %s, want B", op.Name)
	}
}

// TestReconcilePicksUpExternalMutation verifies a graph mutation applied
// outside Update is observed on the next manual reconciliation.
func TestReconcilePicksUpExternalMutation(t *testing.T) {
	ops := chain("A", "B")
	q, err := NewWorkQueue(ops, ByCriticalPath)
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	a := mustNext(t, q)
	a.Finish(graph.StatusSucceeded)

	q.Reconcile()

	if op := mustNext(t, q); op.Name != "B" {
		t.Errorf("dispatch after Reconcile = %s, want B", op.Name)
	}
}

// TestUpdateSerializesConcurrentFinishes races two workers over a graph whose
// operations share a consumer: both finishes mutate the consumer's dependency
// set, which must not interleave with each other or with the backlog scan.
func TestUpdateSerializesConcurrentFinishes(t *testing.T) {
	for i := 0; i < 200; i++ {
		a := graph.NewOperation("A", "true", 1)
		b := graph.NewOperation("B", "true", 1)
		c := graph.NewOperation("C", "true", 1)
		c.DependOn(a)
		c.DependOn(b)

		q, err := NewWorkQueue([]*graph.Operation{a, b, c}, ByCriticalPath)
		if err != nil {
			t.Fatalf("NewWorkQueue() error = %v", err)
		}

		var wg sync.WaitGroup
		for w := 0; w < 2; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					op, err := q.Next(context.Background())
					if err != nil {
						return
					}
					finish(q, op, graph.StatusSucceeded)
				}
			}()
		}
		wg.Wait()

		if c.Status != graph.StatusSucceeded {
			t.Fatalf("iteration %d: C status = %s, want %s", i, c.Status, graph.StatusSucceeded)
		}
		if remaining := q.Remaining(); remaining != 0 {
			t.Fatalf("iteration %d: %d operations left in backlog", i, remaining)
		}
	}
}

// TestInvalidStatusPanics verifies that finding a queued operation in a
// non-Ready, non-Blocked status is treated as a fatal contract violation.
func TestInvalidStatusPanics(t *testing.T) {
	a := graph.NewOperation("A", "true", 1)
	q, err := NewWorkQueue([]*graph.Operation{a}, ByCriticalPath)
	if err != nil {
		t.Fatalf("NewWorkQueue() error = %v", err)
	}

	// Corrupt the contract: the operation is still queued but claims to be
	// executing already.
	a.Status = graph.StatusExecuting

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on invalid queued status")
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, "A") || !strings.Contains(msg, string(graph.StatusExecuting)) {
			t.Errorf("panic %v does not name the operation and its status", r)
		}
	}()

	q.Next(context.Background())
}

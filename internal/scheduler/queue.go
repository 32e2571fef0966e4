package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aruniverse/rushstack/internal/graph"
)

// ErrExhausted is returned by WorkQueue.Next once the backlog is permanently
// empty. Like io.EOF it signals normal termination, not a failure; every
// outstanding and future Next call receives it once the queue drains.
var ErrExhausted = errors.New("work queue exhausted")

// WorkQueue hands ready operations to an arbitrary number of concurrent
// workers. It owns no goroutines of its own: it is a passive shared object
// whose only job is to reconcile its backlog against outstanding requests.
//
// One *WorkQueue is shared by every worker; all of them pull from the same
// backlog, so no operation is ever delivered twice. The queue never mutates
// dependency sets itself. Callers finish an operation inside Update (see
// graph.Operation.Finish) so the graph mutation and the backlog rescan form
// one critical section; Reconcile rescans without a mutation.
type WorkQueue struct {
	mu        sync.Mutex
	backlog   []*graph.Operation        // ascending priority; the tail is dispatched first
	waiters   []chan *graph.Operation   // outstanding Next calls, oldest first
	exhausted bool
}

// NewWorkQueue validates and ranks the fully-wired operation set and seeds the
// backlog with it. Construction is one-shot: operations cannot be added later.
// Returns a *CycleError if the graph contains a dependency cycle.
func NewWorkQueue(ops []*graph.Operation, cmp Compare) (*WorkQueue, error) {
	backlog, err := rank(ops, cmp)
	if err != nil {
		return nil, err
	}
	return &WorkQueue{backlog: backlog}, nil
}

// Next blocks the calling goroutine until a ready operation is available or the
// queue is exhausted. Requests are satisfied in FIFO order. Cancelling ctx
// abandons the request without affecting other workers; an operation that was
// already assigned to the cancelled request is returned to the backlog.
func (q *WorkQueue) Next(ctx context.Context) (*graph.Operation, error) {
	ch := make(chan *graph.Operation, 1)

	q.mu.Lock()
	if q.exhausted {
		q.mu.Unlock()
		return nil, ErrExhausted
	}
	q.waiters = append(q.waiters, ch)
	q.reconcileLocked()
	q.mu.Unlock()

	select {
	case op, ok := <-ch:
		if !ok {
			return nil, ErrExhausted
		}
		return op, nil
	case <-ctx.Done():
		q.abandon(ch)
		return nil, ctx.Err()
	}
}

// Reconcile matches ready backlog operations to pending requests. Callers must
// invoke it after mutating the graph outside the normal Next cycle (the queue
// has no other way to learn that dependency sets changed). Next calls it
// implicitly. Concurrent callers must apply their graph mutations through
// Update instead.
func (q *WorkQueue) Reconcile() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reconcileLocked()
}

// Update runs fn under the queue's lock, then reconciles. Finishing an
// operation mutates consumer dependency sets that the reconcile scan reads,
// and two finishes sharing a consumer write the same map, so with concurrent
// workers the mutation and the scan must be one critical section.
func (q *WorkQueue) Update(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn()
	q.reconcileLocked()
}

// Remaining reports how many operations are still in the backlog.
func (q *WorkQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// reconcileLocked scans the backlog from the high-priority tail, dispatching
// ready operations to waiters in FIFO order. Scanning stops once no waiters
// remain. If the backlog empties, every current waiter is released with the
// exhaustion signal and the queue enters its terminal state: all future Next
// calls return ErrExhausted immediately.
//
// Callers must hold q.mu.
func (q *WorkQueue) reconcileLocked() {
	for i := len(q.backlog) - 1; i >= 0 && len(q.waiters) > 0; i-- {
		op := q.backlog[i]
		switch {
		case op.Status == graph.StatusBlocked:
			// An upstream failure took this operation out of the run.
			q.backlog = append(q.backlog[:i], q.backlog[i+1:]...)
		case op.Status != graph.StatusReady:
			panic(fmt.Sprintf("scheduler invariant violated: operation %q is still queued with status %q", op.Name, op.Status))
		case len(op.Dependencies) == 0:
			q.backlog = append(q.backlog[:i], q.backlog[i+1:]...)
			w := q.waiters[0]
			q.waiters = q.waiters[1:]
			w <- op
		}
	}

	if len(q.backlog) == 0 && !q.exhausted {
		q.exhausted = true
		for _, w := range q.waiters {
			close(w)
		}
		q.waiters = nil
	}
}

// abandon removes a cancelled waiter. If the waiter was already satisfied the
// delivered operation goes back onto the backlog so another worker can claim it.
func (q *WorkQueue) abandon(ch chan *graph.Operation) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiters {
		if w == ch {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return
		}
	}

	select {
	case op, ok := <-ch:
		if ok && !q.exhausted {
			q.backlog = append(q.backlog, op)
			q.reconcileLocked()
		}
	default:
	}
}

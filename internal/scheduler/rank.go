package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aruniverse/rushstack/internal/graph"
)

// Compare orders two operations for dispatch. A positive result means a should
// run before b, negative means b first, zero means no preference. The comparator
// is the final tie-break authority; critical-path length is exposed on each
// operation as data it may read, but nothing forces it to.
type Compare func(a, b *graph.Operation) int

// ByCriticalPath prefers the operation with the longest weighted chain of
// dependent work still ahead of it. Starting those first minimizes the overall
// makespan of the run.
func ByCriticalPath(a, b *graph.Operation) int {
	return a.CriticalPathLength - b.CriticalPathLength
}

// CycleError reports a dependency cycle found while ranking the graph. Chain
// holds the node names in traversal order, from the first repeated node back to
// itself.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s; one of these dependencies must be removed before the graph can be scheduled",
		strings.Join(e.Chain, " -> "))
}

// rank computes every operation's critical-path length and returns the initial
// backlog, sorted so the highest-priority operation sits at the tail (the queue
// pops from the tail, which removes without shifting earlier elements).
//
// The walk goes forward along consumer edges:
//
//	CriticalPathLength = Weight + max(CriticalPathLength of each consumer, 0)
//
// Each operation is computed at most once; revisiting an operation that is
// still on the active walk stack means the graph has a cycle, which is fatal.
func rank(ops []*graph.Operation, cmp Compare) ([]*graph.Operation, error) {
	computed := make(map[*graph.Operation]bool, len(ops))
	onStack := make(map[*graph.Operation]bool)
	var stack []*graph.Operation

	var walk func(op *graph.Operation) error
	walk = func(op *graph.Operation) error {
		if computed[op] {
			return nil
		}
		if onStack[op] {
			return cycleFrom(stack, op)
		}

		onStack[op] = true
		stack = append(stack, op)

		longest := 0
		for consumer := range op.Consumers {
			if err := walk(consumer); err != nil {
				return err
			}
			if consumer.CriticalPathLength > longest {
				longest = consumer.CriticalPathLength
			}
		}
		op.CriticalPathLength = op.Weight + longest
		computed[op] = true

		delete(onStack, op)
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, op := range ops {
		if err := walk(op); err != nil {
			return nil, err
		}
	}

	backlog := make([]*graph.Operation, len(ops))
	copy(backlog, ops)
	// Stable sort, so operations the comparator considers equal keep their
	// construction order. cmp > 0 means "a first" and the queue consumes from
	// the tail, so ascending order puts the preferred operation last.
	sort.SliceStable(backlog, func(i, j int) bool {
		return cmp(backlog[i], backlog[j]) < 0
	})
	return backlog, nil
}

// cycleFrom slices the active walk stack from the first occurrence of repeated
// and closes the loop with it, producing the full cyclic chain.
func cycleFrom(stack []*graph.Operation, repeated *graph.Operation) *CycleError {
	start := 0
	for i, op := range stack {
		if op == repeated {
			start = i
			break
		}
	}

	chain := make([]string, 0, len(stack)-start+1)
	for _, op := range stack[start:] {
		chain = append(chain, op.Name)
	}
	chain = append(chain, repeated.Name)
	return &CycleError{Chain: chain}
}

package graph

import (
	"fmt"

	"github.com/gammazero/toposort"
)

// Builder assembles an operation graph from declared operations and dependency
// names, then resolves the names into wired Operation pointers. Building is
// one-shot: the resulting operations are handed to the scheduler and no further
// operations may be added.
type Builder struct {
	ops     map[string]*Operation
	order   []string            // insertion order, kept for deterministic output
	pending map[string][]string // operation name -> declared dependency names
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		ops:     make(map[string]*Operation),
		pending: make(map[string][]string),
	}
}

// Add declares an operation. Returns an error if the name is already taken or
// the weight is negative. A zero weight is promoted to 1 so that unweighted
// graphs still rank by chain length.
func (b *Builder) Add(name, command string, weight int, dependsOn ...string) error {
	if name == "" {
		return fmt.Errorf("operation name cannot be empty")
	}
	if _, exists := b.ops[name]; exists {
		return fmt.Errorf("operation with name %q already exists", name)
	}
	if weight < 0 {
		return fmt.Errorf("operation %q has negative weight %d", name, weight)
	}
	if weight == 0 {
		weight = 1
	}

	b.ops[name] = NewOperation(name, command, weight)
	b.order = append(b.order, name)
	b.pending[name] = dependsOn
	return nil
}

// Build resolves all declared dependency names and wires the mutual
// dependency/consumer edges. Returns an error if any operation depends on a
// name that was never added. Cycle detection is deliberately not done here;
// the scheduler reports cycles with the full offending chain.
func (b *Builder) Build() ([]*Operation, error) {
	for name, deps := range b.pending {
		op := b.ops[name]
		for _, depName := range deps {
			dep, exists := b.ops[depName]
			if !exists {
				return nil, fmt.Errorf("operation %q depends on non-existent operation %q", name, depName)
			}
			op.DependOn(dep)
		}
	}

	ops := make([]*Operation, 0, len(b.order))
	for _, name := range b.order {
		ops = append(ops, b.ops[name])
	}
	return ops, nil
}

// Get returns a declared operation by name.
func (b *Builder) Get(name string) (*Operation, bool) {
	op, exists := b.ops[name]
	return op, exists
}

// TopologicalOrder returns the operation names sorted so that every operation
// appears after all of its dependencies. Used for listing the graph; execution
// order is decided by the scheduler, not by this.
func (b *Builder) TopologicalOrder() ([]string, error) {
	var edges []toposort.Edge
	for _, name := range b.order {
		deps := b.pending[name]
		if len(deps) == 0 {
			// Edge from nil keeps dependency-free operations in the result.
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		for _, depName := range deps {
			edges = append(edges, toposort.Edge{depName, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("graph contains cycle: %w", err)
	}

	names := make([]string, 0, len(sorted))
	for _, name := range sorted {
		if name != nil {
			names = append(names, name.(string))
		}
	}
	return names, nil
}

package graph

// Status represents the current state of an operation.
type Status string

const (
	// StatusReady means the operation can run as soon as its dependency set is empty.
	StatusReady Status = "ready"
	// StatusBlocked means the operation will never run (an upstream dependency failed).
	StatusBlocked Status = "blocked"
	// StatusExecuting means a worker is currently running the operation.
	StatusExecuting Status = "executing"
	// StatusSucceeded means the operation finished with exit code zero.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the operation finished with a non-zero exit code or could not start.
	StatusFailed Status = "failed"
	// StatusSkipped means the operation was never dispatched before the run ended.
	StatusSkipped Status = "skipped"
)

// Operation is a unit of schedulable work in the graph: a shell command plus its
// dependency edges. Dependencies and Consumers are mutual inverses: dep is in
// op.Dependencies exactly when op is in dep.Consumers.
//
// Ownership is split between components. The graph builder creates operations and
// wires edges. The scheduler writes CriticalPathLength once during ranking and only
// reads Status afterwards. The runner owns Status transitions and removes finished
// operations from their consumers' dependency sets.
type Operation struct {
	Name    string
	Command string
	Weight  int
	Locks   []string // resource keys held exclusively while the command runs
	Status  Status

	Dependencies map[*Operation]struct{}
	Consumers    map[*Operation]struct{}

	// CriticalPathLength is the longest weighted chain of consumer work hanging off
	// this operation, itself included. Written by the scheduler during ranking;
	// meaningless before that.
	CriticalPathLength int
}

// NewOperation creates an unwired operation with the given name, command and weight.
func NewOperation(name, command string, weight int) *Operation {
	return &Operation{
		Name:         name,
		Command:      command,
		Weight:       weight,
		Status:       StatusReady,
		Dependencies: make(map[*Operation]struct{}),
		Consumers:    make(map[*Operation]struct{}),
	}
}

// DependOn records that op must wait for dep, wiring both edge directions.
func (op *Operation) DependOn(dep *Operation) {
	op.Dependencies[dep] = struct{}{}
	dep.Consumers[op] = struct{}{}
}

// Finish records a terminal status and updates the consumer side of the graph.
// A successful or skipped operation is removed from each consumer's dependency
// set, which is what eventually makes the consumer dispatchable. A failed
// operation marks its entire downstream closure Blocked so the scheduler drops
// those operations from its backlog.
func (op *Operation) Finish(status Status) {
	op.Status = status

	switch status {
	case StatusSucceeded, StatusSkipped:
		for consumer := range op.Consumers {
			delete(consumer.Dependencies, op)
		}
	case StatusFailed:
		op.blockConsumers()
	}
}

func (op *Operation) blockConsumers() {
	for consumer := range op.Consumers {
		if consumer.Status == StatusBlocked {
			continue
		}
		consumer.Status = StatusBlocked
		consumer.blockConsumers()
	}
}

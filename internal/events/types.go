package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	OperationName() string
}

// Topic constants
const (
	TopicOperation = "operation"
	TopicRun       = "run"
)

// Event type constants
const (
	EventTypeOperationStarted   = "operation.started"
	EventTypeOperationSucceeded = "operation.succeeded"
	EventTypeOperationFailed    = "operation.failed"
	EventTypeOperationSkipped   = "operation.skipped"
	EventTypeRunProgress        = "run.progress"
)

// OperationStartedEvent is published when a worker picks up an operation.
type OperationStartedEvent struct {
	Name      string
	Command   string
	Timestamp time.Time
}

func (e OperationStartedEvent) EventType() string     { return EventTypeOperationStarted }
func (e OperationStartedEvent) OperationName() string { return e.Name }

// OperationSucceededEvent is published when an operation exits successfully.
type OperationSucceededEvent struct {
	Name      string
	Duration  time.Duration
	Timestamp time.Time
}

func (e OperationSucceededEvent) EventType() string     { return EventTypeOperationSucceeded }
func (e OperationSucceededEvent) OperationName() string { return e.Name }

// OperationFailedEvent is published when an operation fails to start or exits
// with a non-zero code.
type OperationFailedEvent struct {
	Name      string
	ExitCode  int
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e OperationFailedEvent) EventType() string     { return EventTypeOperationFailed }
func (e OperationFailedEvent) OperationName() string { return e.Name }

// OperationSkippedEvent is published for operations that never ran, typically
// because an upstream dependency failed.
type OperationSkippedEvent struct {
	Name      string
	Timestamp time.Time
}

func (e OperationSkippedEvent) EventType() string     { return EventTypeOperationSkipped }
func (e OperationSkippedEvent) OperationName() string { return e.Name }

// RunProgressEvent is published after every operation finishes.
type RunProgressEvent struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Remaining int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string     { return EventTypeRunProgress }
func (e RunProgressEvent) OperationName() string { return "" }

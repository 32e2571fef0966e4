package runner

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aruniverse/rushstack/internal/events"
	"github.com/aruniverse/rushstack/internal/graph"
	"github.com/aruniverse/rushstack/internal/persistence"
	"github.com/aruniverse/rushstack/internal/scheduler"
)

// Result is the outcome of one operation.
type Result struct {
	Name     string
	Status   graph.Status
	ExitCode int
	Duration time.Duration
	Err      error
}

// Config configures a Runner.
type Config struct {
	Concurrency int                // Worker pool size (default 4)
	WorkDir     string             // Working directory for commands (empty = cwd)
	Shell       string             // Shell binary (default /bin/sh)
	Bus         *events.EventBus   // Optional event bus for lifecycle events
	Store       persistence.Store  // Optional run history store
	RunID       string             // Identifies this run in the store
}

// Runner executes an operation graph with a pool of workers pulling from the
// scheduler's work queue. The runner owns everything the scheduler deliberately
// does not: running commands, status transitions, dependency-set mutation, and
// the concurrency limit.
type Runner struct {
	cfg     Config
	queue   *scheduler.WorkQueue
	ops     []*graph.Operation
	lockMgr *ResourceLockManager
	pm      *ProcessManager

	mu      sync.Mutex
	results []Result
}

// New creates a Runner for the given queue and operation set.
func New(cfg Config, queue *scheduler.WorkQueue, ops []*graph.Operation) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}

	return &Runner{
		cfg:     cfg,
		queue:   queue,
		ops:     ops,
		lockMgr: NewResourceLockManager(),
		pm:      NewProcessManager(),
	}
}

// Run executes the graph until the queue is exhausted or ctx is cancelled.
// Operation failures do not abort the run: the failed operation's downstream
// closure is blocked and everything else continues. Returns all recorded
// results; operations that never ran are reported as skipped.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := r.pm.KillAll(); err != nil {
				logrus.WithError(err).Warn("failed to kill operation subprocesses")
			}
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Concurrency; i++ {
		g.Go(func() error {
			return r.work(gctx)
		})
	}

	runErr := g.Wait()
	r.sweepNeverRan()
	r.publishProgress()

	return r.snapshotResults(), runErr
}

// work is one worker's loop: pull, execute, finish. Finishing reconciles the
// queue, so newly-unblocked operations reach waiting workers immediately.
func (r *Runner) work(ctx context.Context) error {
	for {
		op, err := r.queue.Next(ctx)
		if errors.Is(err, scheduler.ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}

		r.execute(ctx, op)
	}
}

// execute runs a single operation's command and finishes it in the graph.
func (r *Runner) execute(ctx context.Context, op *graph.Operation) {
	op.Status = graph.StatusExecuting

	log := logrus.WithField("operation", op.Name)
	log.WithField("command", op.Command).Info("operation started")
	r.publish(events.TopicOperation, events.OperationStartedEvent{
		Name:      op.Name,
		Command:   op.Command,
		Timestamp: time.Now(),
	})

	r.lockMgr.LockAll(op.Locks)
	start := time.Now()
	exitCode, err := r.runCommand(ctx, op)
	duration := time.Since(start)
	r.lockMgr.UnlockAll(op.Locks)

	result := Result{
		Name:     op.Name,
		ExitCode: exitCode,
		Duration: duration,
		Err:      err,
	}

	// Finish under the queue's lock: releasing or blocking consumers mutates
	// dependency sets the reconcile scan reads, and concurrent finishes can
	// share a consumer.
	if err != nil {
		r.queue.Update(func() { op.Finish(graph.StatusFailed) })
		result.Status = graph.StatusFailed
		log.WithError(err).WithField("exitCode", exitCode).Error("operation failed")
		r.publish(events.TopicOperation, events.OperationFailedEvent{
			Name:      op.Name,
			ExitCode:  exitCode,
			Err:       err,
			Duration:  duration,
			Timestamp: time.Now(),
		})
	} else {
		r.queue.Update(func() { op.Finish(graph.StatusSucceeded) })
		result.Status = graph.StatusSucceeded
		log.WithField("duration", duration).Info("operation succeeded")
		r.publish(events.TopicOperation, events.OperationSucceededEvent{
			Name:      op.Name,
			Duration:  duration,
			Timestamp: time.Now(),
		})
	}

	r.record(ctx, result)
	r.publishProgress()
}

// runCommand executes the operation's shell command and extracts the exit code.
func (r *Runner) runCommand(ctx context.Context, op *graph.Operation) (int, error) {
	cmd := newCommand(ctx, r.cfg.Shell, "-c", op.Command)
	cmd.Dir = r.cfg.WorkDir

	_, _, err := executeCommand(cmd, r.pm)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), err
		}
		return -1, err
	}
	return 0, nil
}

// sweepNeverRan records skipped results for operations that were never
// dispatched: blocked subtrees below a failure, and anything still pending
// when the run was cancelled.
func (r *Runner) sweepNeverRan() {
	for _, op := range r.ops {
		if op.Status != graph.StatusReady && op.Status != graph.StatusBlocked {
			continue
		}
		op.Status = graph.StatusSkipped
		logrus.WithField("operation", op.Name).Warn("operation skipped")
		r.publish(events.TopicOperation, events.OperationSkippedEvent{
			Name:      op.Name,
			Timestamp: time.Now(),
		})
		r.record(context.Background(), Result{
			Name:   op.Name,
			Status: graph.StatusSkipped,
		})
	}
}

// record appends a result and persists it if a store is configured.
func (r *Runner) record(ctx context.Context, result Result) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()

	if r.cfg.Store == nil {
		return
	}

	errStr := ""
	if result.Err != nil {
		errStr = result.Err.Error()
	}
	rec := persistence.OperationRecord{
		Name:     result.Name,
		Status:   string(result.Status),
		ExitCode: result.ExitCode,
		Duration: result.Duration,
		Error:    errStr,
	}
	if err := r.cfg.Store.RecordOperation(ctx, r.cfg.RunID, rec); err != nil {
		logrus.WithError(err).WithField("operation", result.Name).Warn("failed to persist operation result")
	}
}

// Summary tallies the run's results by status.
func (r *Runner) Summary() (succeeded, failed, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, result := range r.results {
		switch result.Status {
		case graph.StatusSucceeded:
			succeeded++
		case graph.StatusFailed:
			failed++
		case graph.StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

func (r *Runner) publish(topic string, event events.Event) {
	if r.cfg.Bus != nil {
		r.cfg.Bus.Publish(topic, event)
	}
}

func (r *Runner) publishProgress() {
	if r.cfg.Bus == nil {
		return
	}
	succeeded, failed, skipped := r.Summary()
	r.cfg.Bus.Publish(events.TopicRun, events.RunProgressEvent{
		Total:     len(r.ops),
		Succeeded: succeeded,
		Failed:    failed,
		Skipped:   skipped,
		Remaining: len(r.ops) - succeeded - failed - skipped,
		Timestamp: time.Now(),
	})
}

func (r *Runner) snapshotResults() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

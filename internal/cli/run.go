package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aruniverse/rushstack/internal/events"
	"github.com/aruniverse/rushstack/internal/persistence"
	"github.com/aruniverse/rushstack/internal/runner"
	"github.com/aruniverse/rushstack/internal/scheduler"
)

var noHistory bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute all operations in the graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ops, _, err := buildGraph(cfg)
		if err != nil {
			return err
		}

		queue, err := scheduler.NewWorkQueue(ops, scheduler.ByCriticalPath)
		if err != nil {
			return err
		}

		bus := events.NewEventBus()
		eventCh := bus.SubscribeAll(256)
		reported := make(chan struct{})
		go func() {
			defer close(reported)
			reportEvents(cmd.OutOrStdout(), eventCh)
		}()
		defer func() {
			bus.Close()
			<-reported
		}()

		runnerCfg := runner.Config{
			Concurrency: cfg.Runner.Concurrency,
			WorkDir:     cfg.Runner.WorkDir,
			Bus:         bus,
		}

		var store *persistence.SQLiteStore
		startedAt := time.Now()
		if !noHistory {
			store, err = persistence.NewSQLiteStore(ctx, cfg.HistoryPath)
			if err != nil {
				return fmt.Errorf("opening run history store: %w", err)
			}
			defer store.Close()

			runnerCfg.RunID = uuid.NewString()
			runnerCfg.Store = store
			if err := store.CreateRun(ctx, runnerCfg.RunID, startedAt); err != nil {
				return fmt.Errorf("recording run: %w", err)
			}
		}

		r := runner.New(runnerCfg, queue, ops)

		logrus.WithFields(logrus.Fields{
			"operations":  len(ops),
			"concurrency": runnerCfg.Concurrency,
		}).Info("Starting run")

		results, runErr := r.Run(ctx)

		succeeded, failed, skipped := r.Summary()
		if store != nil {
			finishErr := store.FinishRun(ctx, persistence.Run{
				ID:         runnerCfg.RunID,
				StartedAt:  startedAt,
				FinishedAt: time.Now(),
				Total:      len(ops),
				Succeeded:  succeeded,
				Failed:     failed,
				Skipped:    skipped,
			})
			if finishErr != nil {
				logrus.WithError(finishErr).Warn("failed to finalize run history")
			}
		}

		logrus.WithFields(logrus.Fields{
			"succeeded": succeeded,
			"failed":    failed,
			"skipped":   skipped,
			"duration":  time.Since(startedAt).Round(time.Millisecond),
		}).Info("Run finished")

		if runErr != nil {
			return runErr
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d operations failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history database")
}

// reportEvents renders operation lifecycle events as progress lines until the
// channel is closed. Quiet mode drops everything; run-level progress only
// surfaces at debug level since the final summary already covers it.
func reportEvents(w io.Writer, ch <-chan events.Event) {
	for ev := range ch {
		if quiet {
			continue
		}
		switch e := ev.(type) {
		case events.OperationSucceededEvent:
			fmt.Fprintf(w, "ok    %s (%s)\n", e.Name, e.Duration.Round(time.Millisecond))
		case events.OperationFailedEvent:
			fmt.Fprintf(w, "FAIL  %s (exit %d)\n", e.Name, e.ExitCode)
		case events.OperationSkippedEvent:
			fmt.Fprintf(w, "skip  %s\n", e.Name)
		case events.RunProgressEvent:
			logrus.WithFields(logrus.Fields{
				"succeeded": e.Succeeded,
				"failed":    e.Failed,
				"remaining": e.Remaining,
			}).Debug("run progress")
		}
	}
}

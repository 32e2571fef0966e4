package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aruniverse/rushstack/internal/persistence"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [runID]",
	Short: "Show recent runs, or the operation results of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := persistence.NewSQLiteStore(ctx, cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("opening run history store: %w", err)
		}
		defer store.Close()

		out := cmd.OutOrStdout()

		if len(args) == 1 {
			records, err := store.GetRunOperations(ctx, args[0])
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Fprintf(out, "%-30s %-10s exit=%d %s\n", rec.Name, rec.Status, rec.ExitCode, rec.Duration)
			}
			return nil
		}

		runs, err := store.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		for _, run := range runs {
			fmt.Fprintf(out, "%s  %s  total=%d succeeded=%d failed=%d skipped=%d\n",
				run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Total, run.Succeeded, run.Failed, run.Skipped)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show")
}

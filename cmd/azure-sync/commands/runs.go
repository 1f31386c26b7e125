package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/port-labs/incremental-sync/pkg/config"
	"github.com/port-labs/incremental-sync/pkg/stores"
)

func newRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent synchronization runs",
		Long:  `Show the outcome of recent synchronization runs from the run history store.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if settings.RunHistoryDB == "" {
				return fmt.Errorf("run history is disabled: set RUN_HISTORY_DB to a database path")
			}

			store, err := stores.NewRunStore(settings.RunHistoryDB)
			if err != nil {
				return err
			}
			if err := store.Init(cmd.Context()); err != nil {
				return fmt.Errorf("failed to open run history store: %w", err)
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODE\tSTATUS\tSTARTED\tDURATION\tRECORDS\tDROPPED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
					run.ID,
					run.Mode,
					run.Status,
					run.StartedAt.Format(time.RFC3339),
					run.CompletedAt.Sub(run.StartedAt).Round(time.Second),
					run.Summary.Records,
					run.Summary.Dropped,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")

	return cmd
}

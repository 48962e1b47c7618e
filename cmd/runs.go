package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/segment-cli/internal/model"
	"github.com/sells-group/segment-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved segmentation runs",
	Long: `List runs recorded in the configured results store.

Examples:
  runs
  runs --status complete --limit 10`,
	RunE: runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.String("status", "", "filter by status: running, complete, or failed")
	f.Int("limit", 20, "maximum number of runs to list")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return eris.Wrap(err, "runs: open store")
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "runs: migrate")
	}

	runs, err := st.ListRuns(ctx, store.RunFilter{
		Status: model.RunStatus(status),
		Limit:  limit,
	})
	if err != nil {
		return eris.Wrap(err, "runs: list")
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	formatRunsList(os.Stdout, runs)
	return nil
}

func formatRunsList(w io.Writer, runs []model.Run) {
	fmt.Fprintf(w, "%-10s %-30s %-4s %-10s %-10s %8s %7s %-17s\n",
		"ID", "INPUT", "K", "SEED", "STATUS", "CUSTOMERS", "RATIO", "CREATED")
	fmt.Fprintln(w, strings.Repeat("-", 105))

	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		input := r.Input
		if len(input) > 30 {
			input = "..." + input[len(input)-27:]
		}
		fmt.Fprintf(w, "%-10s %-30s %-4d %-10d %-10s %8d %7.3f %-17s\n",
			id, input, r.K, r.Seed, r.Status, r.Customers, r.Ratio,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/segment-cli/internal/aggregate"
	"github.com/sells-group/segment-cli/internal/rfm"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute RFM scores and segment labels",
	Long: `Aggregate a raw transaction file and score every customer: quantile-based
1-5 scores for recency, frequency, and monetary, the composite RFM score, the
RFM level string, and the segment label.

Requires at least 5 distinct customers; quantile binning into 5 groups is
undefined below that.

Examples:
  score --input transactions.csv --output scored.csv
  score --input transactions.xlsx`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("input", "", "transaction file (.csv or .xlsx)")
	f.String("output", "", "scored customer CSV path (default: stdout)")
	_ = scoreCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")

	txns, err := loadTransactions(ctx, input)
	if err != nil {
		return eris.Wrap(err, "score: load transactions")
	}

	customers, _, err := aggregate.Aggregate(txns, aggregate.Options{
		GenderPositive: cfg.RFM.GenderPositive,
		StrictDates:    cfg.RFM.StrictDates,
	})
	if err != nil {
		return eris.Wrap(err, "score: aggregate")
	}

	if err := rfm.Score(customers); err != nil {
		return eris.Wrap(err, "score")
	}

	out, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck
	if err := writeCustomerCSV(out, customers); err != nil {
		return err
	}

	if outputPath != "" {
		printSegmentSummary(os.Stdout, customers)
	}

	return nil
}

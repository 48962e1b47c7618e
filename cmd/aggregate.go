package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/segment-cli/internal/aggregate"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate transactions into per-customer RFM records",
	Long: `Reduce a raw transaction file to one row per customer with recency,
frequency, monetary, and auxiliary demographic metrics. The reference date is
the maximum transaction date in the input.

Examples:
  aggregate --input transactions.csv --output customers.csv
  aggregate --input transactions.csv --strict-dates`,
	RunE: runAggregate,
}

func init() {
	f := aggregateCmd.Flags()
	f.String("input", "", "transaction file (.csv or .xlsx)")
	f.String("output", "", "aggregated customer CSV path (default: stdout)")
	f.Bool("strict-dates", false, "fail when a customer has no valid transaction date")
	_ = aggregateCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	strictDates, _ := cmd.Flags().GetBool("strict-dates")

	txns, err := loadTransactions(ctx, input)
	if err != nil {
		return eris.Wrap(err, "aggregate: load transactions")
	}

	customers, stats, err := aggregate.Aggregate(txns, aggregate.Options{
		GenderPositive: cfg.RFM.GenderPositive,
		StrictDates:    strictDates || cfg.RFM.StrictDates,
	})
	if err != nil {
		return eris.Wrap(err, "aggregate")
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
		fmt.Printf("Aggregated %d transactions into %d customers (reference %s)\n",
			stats.Transactions, stats.Customers, stats.Reference.Format("2006-01-02"))
		if stats.ExcludedNoDate > 0 {
			fmt.Printf("Excluded %d customers with no valid date\n", stats.ExcludedNoDate)
		}
	}

	return nil
}

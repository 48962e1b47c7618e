package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/pipeline"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster customers at a fixed k",
	Long: `Aggregate, score, standardize, and cluster a raw transaction file at a
fixed k using the two-phase strategy: many seeded random restarts on a bounded
subsample pick the best centroids, then a single refinement pass over the full
dataset polishes assignments.

Examples:
  cluster --input transactions.csv --k 4 --output labeled.csv
  cluster --input transactions.csv --k 6 --seed 7 --save`,
	RunE: runCluster,
}

func init() {
	f := clusterCmd.Flags()
	f.String("input", "", "transaction file (.csv or .xlsx)")
	f.Int("k", 0, "cluster count (overrides config)")
	f.Int64("seed", -1, "random seed (overrides config)")
	f.Int("workers", 0, "assignment worker count (overrides config)")
	f.String("output", "", "labeled customer CSV path (default: stdout)")
	f.String("profiles", "", "cluster profile CSV path")
	f.Bool("save", false, "save results to the configured store")
	_ = clusterCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(clusterCmd)
}

func runCluster(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	profilesPath, _ := cmd.Flags().GetString("profiles")
	save, _ := cmd.Flags().GetBool("save")

	opts := pipelineOptions(cmd)

	log := zap.L().With(zap.String("command", "cluster"))
	log.Info("starting clustering",
		zap.String("input", input),
		zap.Int("k", opts.Cluster.K),
		zap.Int64("seed", opts.Cluster.Seed),
	)

	txns, err := loadTransactions(ctx, input)
	if err != nil {
		return eris.Wrap(err, "cluster: load transactions")
	}

	res, err := pipeline.Run(txns, opts)
	if err != nil {
		return eris.Wrap(err, "cluster")
	}

	out, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck
	if err := writeCustomerCSV(out, res.Customers); err != nil {
		return err
	}

	if profilesPath != "" {
		pw, err := openOutput(profilesPath)
		if err != nil {
			return err
		}
		defer pw.Close() //nolint:errcheck
		if err := writeProfileCSV(pw, res.Profiles); err != nil {
			return err
		}
	}

	if save {
		if err := saveResults(ctx, input, opts.Cluster, res); err != nil {
			return eris.Wrap(err, "cluster: save")
		}
	}

	fmt.Printf("Between/total SS ratio: %.3f\n", res.Fit.Ratio)
	return nil
}

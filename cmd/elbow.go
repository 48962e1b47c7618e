package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/segment-cli/internal/aggregate"
	"github.com/sells-group/segment-cli/internal/features"
	"github.com/sells-group/segment-cli/internal/kmeans"
)

var elbowCmd = &cobra.Command{
	Use:   "elbow",
	Short: "Compute the elbow curve for choosing k",
	Long: `Compute k-means within-cluster SS for k = 1..max-k on a bounded random
subsample of the standardized feature matrix. The curve is advisory: read the
elbow off it and pass the chosen k to 'cluster' or 'run'.

Examples:
  elbow --input transactions.csv --max-k 10
  elbow --input transactions.csv --max-k 15 --format csv --output elbow.csv`,
	RunE: runElbow,
}

func init() {
	f := elbowCmd.Flags()
	f.String("input", "", "transaction file (.csv or .xlsx)")
	f.Int("max-k", 0, "largest k to evaluate (default: config elbow_max_k)")
	f.Int64("seed", -1, "random seed (overrides config)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table or csv")
	_ = elbowCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(elbowCmd)
}

func runElbow(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	maxK, _ := cmd.Flags().GetInt("max-k")
	if maxK == 0 {
		maxK = cfg.Cluster.ElbowMaxK
	}
	if format != "table" && format != "csv" {
		return eris.Errorf("elbow: --format must be table or csv (got %q)", format)
	}

	txns, err := loadTransactions(ctx, input)
	if err != nil {
		return eris.Wrap(err, "elbow: load transactions")
	}

	customers, _, err := aggregate.Aggregate(txns, aggregate.Options{
		GenderPositive: cfg.RFM.GenderPositive,
		StrictDates:    cfg.RFM.StrictDates,
	})
	if err != nil {
		return eris.Wrap(err, "elbow: aggregate")
	}

	matrix, err := features.Build(customers, features.AgePolicy(cfg.RFM.AgePolicy))
	if err != nil {
		return eris.Wrap(err, "elbow: build features")
	}
	if _, _, err := features.Standardize(matrix); err != nil {
		return eris.Wrap(err, "elbow: standardize")
	}

	opts := kmeans.Options{
		Seed:        cfg.Cluster.Seed,
		ElbowSample: cfg.Cluster.ElbowSample,
		Restarts:    cfg.Cluster.Restarts,
		MaxIter:     cfg.Cluster.MaxIter,
		Workers:     cfg.Cluster.Workers,
	}
	if v, _ := cmd.Flags().GetInt64("seed"); v >= 0 {
		opts.Seed = v
	}

	curve, err := kmeans.ElbowCurve(matrix.Data, maxK, opts)
	if err != nil {
		return eris.Wrap(err, "elbow")
	}

	out, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	if format == "csv" {
		return writeElbowCSV(out, curve)
	}
	return writeElbowTable(out, curve)
}

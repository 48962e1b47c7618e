package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/aggregate"
	"github.com/sells-group/segment-cli/internal/features"
	"github.com/sells-group/segment-cli/internal/kmeans"
	"github.com/sells-group/segment-cli/internal/pipeline"
	"github.com/sells-group/segment-cli/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full segmentation pipeline",
	Long: `Run the full pipeline on a raw transaction file: aggregate per-customer
RFM metrics, score them, standardize features, fit k-means with the two-phase
subsample-seed-then-refine strategy, and profile the resulting clusters.

Examples:
  # Default config, k from config
  run --input transactions.csv --output customers.csv

  # Fixed k and seed, write all artifacts
  run --input transactions.xlsx --k 4 --seed 7 \
      --output customers.csv --profiles profiles.csv --elbow-output elbow.csv

  # Persist the labeled dataset to the results store
  run --input transactions.csv --save`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.String("input", "", "transaction file (.csv or .xlsx)")
	f.Int("k", 0, "cluster count (overrides config)")
	f.Int64("seed", -1, "random seed (overrides config)")
	f.Int("workers", 0, "assignment worker count (overrides config)")
	f.Int("elbow-max-k", 0, "also compute the elbow curve up to this k")
	f.String("output", "", "labeled customer CSV path (default: stdout)")
	f.String("profiles", "", "cluster profile CSV path")
	f.String("elbow-output", "", "elbow curve CSV path")
	f.Bool("save", false, "save results to the configured store")
	_ = runCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	profilesPath, _ := cmd.Flags().GetString("profiles")
	elbowPath, _ := cmd.Flags().GetString("elbow-output")
	elbowMaxK, _ := cmd.Flags().GetInt("elbow-max-k")
	save, _ := cmd.Flags().GetBool("save")

	opts := pipelineOptions(cmd)
	opts.ElbowMaxK = elbowMaxK

	log := zap.L().With(zap.String("command", "run"))
	log.Info("starting pipeline", zap.String("input", input), zap.Int("k", opts.Cluster.K))

	txns, err := loadTransactions(ctx, input)
	if err != nil {
		return eris.Wrap(err, "run: load transactions")
	}

	res, err := pipeline.Run(txns, opts)
	if err != nil {
		return eris.Wrap(err, "run: pipeline")
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

	if elbowPath != "" && len(res.Elbow) > 0 {
		ew, err := openOutput(elbowPath)
		if err != nil {
			return err
		}
		defer ew.Close() //nolint:errcheck
		if err := writeElbowCSV(ew, res.Elbow); err != nil {
			return err
		}
	}

	if save {
		if err := saveResults(ctx, input, opts.Cluster, res); err != nil {
			return eris.Wrap(err, "run: save")
		}
	}

	fmt.Printf("Customers:      %d\n", len(res.Customers))
	fmt.Printf("Clusters:       %d\n", len(res.Profiles))
	fmt.Printf("Between/total:  %.3f\n", res.Fit.Ratio)
	fmt.Printf("Converged:      %v (%d iterations)\n", res.Fit.Converged, res.Fit.Iterations)
	if res.Stats.ExcludedNoDate > 0 {
		fmt.Printf("Excluded (no date): %d\n", res.Stats.ExcludedNoDate)
	}

	return nil
}

// pipelineOptions builds pipeline options from config with CLI overrides.
func pipelineOptions(cmd *cobra.Command) pipeline.Options {
	opts := pipeline.Options{
		Aggregate: aggregate.Options{
			GenderPositive: cfg.RFM.GenderPositive,
			StrictDates:    cfg.RFM.StrictDates,
		},
		AgePolicy: features.AgePolicy(cfg.RFM.AgePolicy),
		Cluster: kmeans.Options{
			K:             cfg.Cluster.K,
			Seed:          cfg.Cluster.Seed,
			SeedSample:    cfg.Cluster.SeedSample,
			Restarts:      cfg.Cluster.Restarts,
			MaxIter:       cfg.Cluster.MaxIter,
			RefineMaxIter: cfg.Cluster.RefineMaxIter,
			ElbowSample:   cfg.Cluster.ElbowSample,
			Workers:       cfg.Cluster.Workers,
			StrictEmpty:   cfg.Cluster.StrictEmpty,
		},
	}

	if v, _ := cmd.Flags().GetInt("k"); v > 0 {
		opts.Cluster.K = v
	}
	if v, _ := cmd.Flags().GetInt64("seed"); v >= 0 {
		opts.Cluster.Seed = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		opts.Cluster.Workers = v
	}

	return opts
}

// saveResults persists a completed pipeline run to the configured store.
func saveResults(ctx context.Context, input string, clusterOpts kmeans.Options, res *pipeline.Result) error {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	run, err := st.CreateRun(ctx, input, clusterOpts.K, clusterOpts.Seed)
	if err != nil {
		return err
	}
	if err := st.SaveCustomers(ctx, run.ID, res.Customers); err != nil {
		return err
	}
	if err := st.SaveProfiles(ctx, run.ID, res.Profiles); err != nil {
		return err
	}
	if len(res.Elbow) > 0 {
		if err := st.SaveElbow(ctx, run.ID, res.Elbow); err != nil {
			return err
		}
	}
	if err := st.CompleteRun(ctx, run.ID, len(res.Customers), res.Fit.Ratio); err != nil {
		return err
	}

	fmt.Printf("Saved run %s to %s store\n", run.ID, cfg.Store.Driver)
	return nil
}

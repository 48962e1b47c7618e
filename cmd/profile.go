package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/segment-cli/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile clusters from a labeled customer table",
	Long: `Compute per-cluster aggregate statistics (count, mean recency, frequency,
monetary, balance, gender flag, age) from a labeled customer CSV produced by
'cluster' or 'run'. Semantic cluster names are an analyst call: supply them in
a YAML overlay if you have them.

Examples:
  profile --input labeled.csv
  profile --input labeled.csv --labels labels.yaml --format csv --output profiles.csv`,
	RunE: runProfile,
}

func init() {
	f := profileCmd.Flags()
	f.String("input", "", "labeled customer CSV")
	f.String("labels", "", "YAML file mapping cluster ids to labels")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table or csv")
	_ = profileCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, _ []string) error {
	input, _ := cmd.Flags().GetString("input")
	labelsPath, _ := cmd.Flags().GetString("labels")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	if format != "table" && format != "csv" {
		return eris.Errorf("profile: --format must be table or csv (got %q)", format)
	}

	customers, err := readCustomerCSV(input)
	if err != nil {
		return eris.Wrap(err, "profile: read input")
	}

	profiles, err := profile.Summarize(customers)
	if err != nil {
		return eris.Wrap(err, "profile")
	}

	if labelsPath != "" {
		labels, err := profile.LoadLabels(labelsPath)
		if err != nil {
			return err
		}
		profile.ApplyLabels(profiles, labels)
	}

	out, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	if format == "csv" {
		return writeProfileCSV(out, profiles)
	}
	return writeProfileTable(out, profiles)
}

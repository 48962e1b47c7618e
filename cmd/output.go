package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-cli/internal/model"
)

// openOutput returns the output writer for a path, or stdout when empty.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// writeCustomerCSV emits the augmented per-customer table.
func writeCustomerCSV(w io.Writer, customers []model.Customer) error {
	data, err := csvutil.Marshal(customers)
	if err != nil {
		return eris.Wrap(err, "marshal customer CSV")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "write customer CSV")
}

// readCustomerCSV reads a previously exported customer table.
func readCustomerCSV(path string) ([]model.Customer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read customer CSV %s", path)
	}
	var customers []model.Customer
	if err := csvutil.Unmarshal(data, &customers); err != nil {
		return nil, eris.Wrapf(err, "parse customer CSV %s", path)
	}
	return customers, nil
}

// writeProfileCSV emits the cluster summary table.
func writeProfileCSV(w io.Writer, profiles []model.ClusterProfile) error {
	data, err := csvutil.Marshal(profiles)
	if err != nil {
		return eris.Wrap(err, "marshal profile CSV")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "write profile CSV")
}

// writeElbowCSV emits the elbow curve data.
func writeElbowCSV(w io.Writer, curve []model.ElbowPoint) error {
	data, err := csvutil.Marshal(curve)
	if err != nil {
		return eris.Wrap(err, "marshal elbow CSV")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "write elbow CSV")
}

// writeProfileTable prints cluster profiles for terminal inspection.
func writeProfileTable(w io.Writer, profiles []model.ClusterProfile) error {
	header := fmt.Sprintf("%-8s %-24s %8s %9s %9s %14s %14s %7s %6s\n",
		"CLUSTER", "LABEL", "COUNT", "RECENCY", "FREQ", "MONETARY", "BALANCE", "GENDER", "AGE")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "write profile table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 105)); err != nil {
		return eris.Wrap(err, "write profile table separator")
	}

	for _, p := range profiles {
		label := p.Label
		if len(label) > 24 {
			label = label[:21] + "..."
		}
		line := fmt.Sprintf("%-8d %-24s %8d %9.1f %9.1f %14.2f %14.2f %7.2f %6.1f\n",
			p.Cluster, label, p.Count, p.MeanRecency, p.MeanFrequency,
			p.MeanMonetary, p.MeanBalance, p.MeanGender, p.MeanAge)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "write profile table row")
		}
	}
	return nil
}

// writeElbowTable prints the elbow curve for terminal inspection.
func writeElbowTable(w io.Writer, curve []model.ElbowPoint) error {
	if _, err := fmt.Fprintf(w, "%-4s %16s\n", "K", "WITHIN-SS"); err != nil {
		return eris.Wrap(err, "write elbow table header")
	}
	for _, p := range curve {
		if _, err := fmt.Fprintf(w, "%-4d %16.2f\n", p.K, p.WithinSS); err != nil {
			return eris.Wrap(err, "write elbow table row")
		}
	}
	return nil
}

// printSegmentSummary prints the segment distribution after scoring.
func printSegmentSummary(w io.Writer, customers []model.Customer) {
	counts := make(map[model.Segment]int)
	for _, c := range customers {
		counts[c.Segment]++
	}

	order := []model.Segment{
		model.SegmentChampions,
		model.SegmentLoyalCustomers,
		model.SegmentPotentialLoyalists,
		model.SegmentNeedsAttention,
		model.SegmentHibernating,
		model.SegmentAtRisk,
	}

	fmt.Fprintf(w, "\n--- Segments ---\n")
	total := len(customers)
	for _, s := range order {
		n := counts[s]
		if n == 0 {
			continue
		}
		fmt.Fprintf(w, "%-20s %8d (%.1f%%)\n", s, n, float64(n)/float64(total)*100)
	}
	fmt.Fprintf(w, "%-20s %8d\n", "Total", total)
}

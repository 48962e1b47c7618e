// Package rfm converts raw recency/frequency/monetary metrics into ordinal
// 1-5 scores via population-wide equal-frequency binning, then derives the
// composite score and segment label.
//
// Binning is rank-based over the whole population, so scoring is a two-stage
// pass: ComputeBins scans every customer to fix bin membership, Apply writes
// the scores. Neither stage is decomposable row-by-row.
package rfm

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/model"
)

// binCount is the number of equal-frequency quantile bins per metric.
const binCount = 5

// ErrInsufficientPopulation means there are too few distinct customers to
// form five quantile bins.
var ErrInsufficientPopulation = eris.New("rfm: fewer than 5 distinct customers")

// Bins holds per-customer bin assignments for one scoring pass. Index i in
// each slice corresponds to customers[i] of the slice the bins were computed
// from.
type Bins struct {
	recency   []int
	frequency []int
	monetary  []int
}

// ComputeBins partitions the population into five equal-count bins per
// metric. Ties are broken by stable row order, so recomputing on the same
// slice is idempotent. Bin ranks ascend with the metric value; inversion for
// recency happens in Apply.
func ComputeBins(customers []model.Customer) (*Bins, error) {
	n := len(customers)
	if n < binCount {
		return nil, eris.Wrapf(ErrInsufficientPopulation, "rfm: got %d", n)
	}

	b := &Bins{
		recency:   rankBins(n, func(i, j int) bool { return customers[i].Recency < customers[j].Recency }),
		frequency: rankBins(n, func(i, j int) bool { return customers[i].Frequency < customers[j].Frequency }),
		monetary:  rankBins(n, func(i, j int) bool { return customers[i].Monetary < customers[j].Monetary }),
	}
	return b, nil
}

// rankBins stable-sorts row indexes by the metric and maps rank positions
// onto bins 1..binCount of near-equal size (±1 for remainders).
func rankBins(n int, less func(i, j int) bool) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return less(order[a], order[b]) })

	bins := make([]int, n)
	for rank, idx := range order {
		bins[idx] = rank*binCount/n + 1
	}
	return bins
}

// Apply writes scores, the composite RFM score, the RFM level string, and the
// segment label onto each customer. The bins must have been computed from the
// same slice in the same order.
func Apply(b *Bins, customers []model.Customer) error {
	if len(b.recency) != len(customers) {
		return eris.Errorf("rfm: bins computed for %d customers, applying to %d", len(b.recency), len(customers))
	}

	for i := range customers {
		c := &customers[i]

		// Low recency is desirable: most-recent bin scores 5.
		c.RecencyScore = binCount + 1 - b.recency[i]
		c.FrequencyScore = b.frequency[i]
		c.MonetaryScore = b.monetary[i]

		mean := float64(c.RecencyScore+c.FrequencyScore+c.MonetaryScore) / 3
		c.RFMScore = math.Round(mean*100) / 100
		c.RFMLevel = fmt.Sprintf("%d%d%d", c.RecencyScore, c.FrequencyScore, c.MonetaryScore)
		c.Segment = model.SegmentFor(c.RFMScore)
	}

	zap.L().Info("rfm scoring complete", zap.Int("customers", len(customers)))
	return nil
}

// Score is the single-call convenience wrapper around ComputeBins and Apply.
func Score(customers []model.Customer) error {
	bins, err := ComputeBins(customers)
	if err != nil {
		return err
	}
	return Apply(bins, customers)
}

package kmeans

import (
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fit clusters the full dataset at fixed k using the two-phase strategy:
// many random restarts on a bounded subsample pick the best centroids, then a
// single refinement pass over all rows polishes assignments from those
// centroids. Restarting repeatedly at full scale would cost Restarts times
// the full-data work for marginal gain; the subsample phase buys the restart
// diversity at bounded cost.
func Fit(data [][]float64, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	n := len(data)
	if n == 0 {
		return nil, eris.New("kmeans: empty dataset")
	}
	if opts.K < 1 {
		return nil, eris.Errorf("kmeans: k must be >= 1 (got %d)", opts.K)
	}
	if opts.K > n {
		return nil, eris.Errorf("kmeans: k=%d exceeds %d rows", opts.K, n)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	log := zap.L().With(zap.Int("k", opts.K), zap.Int64("seed", opts.Seed))

	// Phase 1: restarts on the subsample, keep the lowest within-SS result.
	// The sample must still hold at least k distinct rows to seed from.
	sample := sampleRows(data, opts.SeedSample, rng)
	if len(sample) < opts.K {
		return nil, eris.Errorf("kmeans: seed sample of %d rows cannot seed k=%d clusters", len(sample), opts.K)
	}
	log.Info("kmeans: seeding phase",
		zap.Int("sample", len(sample)),
		zap.Int("restarts", opts.Restarts),
	)

	var best *Result
	for r := 0; r < opts.Restarts; r++ {
		init := randomInit(sample, opts.K, rng)
		res, err := lloyd(sample, init, opts.MaxIter, opts.Workers, opts.StrictEmpty)
		if err != nil {
			return nil, eris.Wrapf(err, "kmeans: restart %d", r+1)
		}
		if best == nil || res.WithinSS < best.WithinSS {
			best = res
		}
	}

	// Phase 2: one refinement pass over the full data, no re-seeding.
	res, err := lloyd(data, best.Centroids, opts.RefineMaxIter, opts.Workers, opts.StrictEmpty)
	if err != nil {
		return nil, eris.Wrap(err, "kmeans: refinement")
	}

	finishQuality(res, totalSS(data))

	log.Info("kmeans: fit complete",
		zap.Int("rows", n),
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged),
		zap.Float64("within_ss", res.WithinSS),
		zap.Float64("ratio", res.Ratio),
	)

	return res, nil
}

package kmeans

import (
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/model"
)

// ElbowCurve computes the within-cluster SS for k = 1..maxK on a bounded
// subsample. The curve is advisory: the operator reads the elbow off it and
// feeds the chosen k back into Fit. The subsample is drawn once, so every k
// is evaluated on the same rows.
func ElbowCurve(data [][]float64, maxK int, opts Options) ([]model.ElbowPoint, error) {
	opts = opts.withDefaults()

	if len(data) == 0 {
		return nil, eris.New("kmeans: empty dataset")
	}
	if maxK < 1 {
		return nil, eris.Errorf("kmeans: maxK must be >= 1 (got %d)", maxK)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	sample := sampleRows(data, opts.ElbowSample, rng)
	if maxK > len(sample) {
		maxK = len(sample)
	}

	zap.L().Info("kmeans: elbow scan",
		zap.Int("sample", len(sample)),
		zap.Int("max_k", maxK),
		zap.Int64("seed", opts.Seed),
	)

	curve := make([]model.ElbowPoint, 0, maxK)
	for k := 1; k <= maxK; k++ {
		var best *Result
		for r := 0; r < opts.Restarts; r++ {
			init := randomInit(sample, k, rng)
			res, err := lloyd(sample, init, opts.MaxIter, opts.Workers, opts.StrictEmpty)
			if err != nil {
				return nil, eris.Wrapf(err, "kmeans: elbow k=%d restart %d", k, r+1)
			}
			if best == nil || res.WithinSS < best.WithinSS {
				best = res
			}
		}
		curve = append(curve, model.ElbowPoint{K: k, WithinSS: best.WithinSS})
	}

	return curve, nil
}

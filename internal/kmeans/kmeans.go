// Package kmeans implements seeded k-means clustering with a two-phase
// subsample-seed-then-refine fit for large datasets, plus the elbow curve
// used to pick a cluster count.
//
// All randomness flows through an explicitly seeded *rand.Rand; given the
// same seed, sample sizes, k, restart count, iteration caps, and worker
// count, results are bit-identical across runs.
package kmeans

import (
	"math"
	"math/rand"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyCluster means a cluster lost all members during iteration and
// strict empty-cluster handling is enabled. The default policy reseeds the
// empty centroid instead (see reseedEmpty).
var ErrEmptyCluster = eris.New("kmeans: cluster lost all members")

// Options configures a fit. Zero values are replaced by defaults in Fit and
// ElbowCurve.
type Options struct {
	K             int   // cluster count
	Seed          int64 // RNG seed
	SeedSample    int   // phase-1 subsample size (default 500000)
	Restarts      int   // phase-1 random restarts (default 25)
	MaxIter       int   // phase-1 iteration cap per restart (default 100)
	RefineMaxIter int   // phase-2 full-data iteration cap (default 25)
	ElbowSample   int   // elbow subsample size (default 10000)
	Workers       int   // assignment partitions (default 1)
	StrictEmpty   bool  // surface ErrEmptyCluster instead of reseeding
}

func (o Options) withDefaults() Options {
	if o.SeedSample == 0 {
		o.SeedSample = 500000
	}
	if o.Restarts == 0 {
		o.Restarts = 25
	}
	if o.MaxIter == 0 {
		o.MaxIter = 100
	}
	if o.RefineMaxIter == 0 {
		o.RefineMaxIter = 25
	}
	if o.ElbowSample == 0 {
		o.ElbowSample = 10000
	}
	if o.Workers == 0 {
		o.Workers = 1
	}
	return o
}

// Result holds the outcome of a clustering run. Labels are 1-based cluster
// ids aligned with the input rows.
type Result struct {
	Labels     []int
	Centroids  [][]float64
	WithinSS   float64
	BetweenSS  float64
	TotalSS    float64
	Ratio      float64 // between-SS / total-SS, in [0, 1]
	Iterations int
	Converged  bool // false means the iteration cap truncated (not an error)
}

// lloyd runs standard k-means from the given initial centroids until
// assignments are stable or maxIter is reached. Reaching the cap is
// best-effort truncation, not an error.
func lloyd(data [][]float64, init [][]float64, maxIter, workers int, strictEmpty bool) (*Result, error) {
	n := len(data)
	k := len(init)
	dims := len(data[0])

	centroids := make([][]float64, k)
	for c := range init {
		centroids[c] = append([]float64(nil), init[c]...)
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	res := &Result{}
	for iter := 0; iter < maxIter; iter++ {
		res.Iterations = iter + 1

		changed, withinSS, err := assign(data, centroids, labels, workers)
		if err != nil {
			return nil, err
		}
		res.WithinSS = withinSS

		if !changed {
			res.Converged = true
			break
		}
		if iter == maxIter-1 {
			// Cap exit: keep the centroids the final assignment was made
			// against so Labels, WithinSS, and Centroids agree.
			break
		}

		// Recompute centroids as member means.
		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range data {
			c := labels[i]
			counts[c]++
			for j, v := range row {
				sums[c][j] += v
			}
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				if strictEmpty {
					return nil, eris.Wrapf(ErrEmptyCluster, "kmeans: cluster %d at iteration %d", c+1, iter+1)
				}
				reseedEmpty(data, centroids, labels, c)
				continue
			}
			for j := 0; j < dims; j++ {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	res.Labels = make([]int, n)
	for i, c := range labels {
		res.Labels[i] = c + 1
	}
	res.Centroids = centroids
	return res, nil
}

// assign gives every point its nearest centroid. Rows are partitioned into
// contiguous chunks, one per worker; each worker writes only its own label
// range and accumulates its own within-SS partial, and partials are summed in
// partition order so float summation order is fixed for a given worker count.
func assign(data [][]float64, centroids [][]float64, labels []int, workers int) (bool, float64, error) {
	n := len(data)
	if workers > n {
		workers = n
	}

	changes := make([]bool, workers)
	partials := make([]float64, workers)

	var g errgroup.Group
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		w := w
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				best := 0
				bestDist := sqDist(data[i], centroids[0])
				for c := 1; c < len(centroids); c++ {
					if d := sqDist(data[i], centroids[c]); d < bestDist {
						best = c
						bestDist = d
					}
				}
				if labels[i] != best {
					labels[i] = best
					changes[w] = true
				}
				partials[w] += bestDist
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, 0, eris.Wrap(err, "kmeans: assignment")
	}

	changed := false
	withinSS := 0.0
	for w := 0; w < workers; w++ {
		changed = changed || changes[w]
		withinSS += partials[w]
	}
	return changed, withinSS, nil
}

// reseedEmpty moves an empty cluster's centroid onto the point currently
// farthest from its assigned centroid. Deterministic: scans rows in order and
// keeps the first maximum.
func reseedEmpty(data [][]float64, centroids [][]float64, labels []int, empty int) {
	farthest := 0
	farthestDist := -1.0
	for i, row := range data {
		d := sqDist(row, centroids[labels[i]])
		if d > farthestDist {
			farthest = i
			farthestDist = d
		}
	}
	copy(centroids[empty], data[farthest])
	labels[farthest] = empty
}

// randomInit picks k distinct rows as starting centroids.
func randomInit(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	picks := sampleIndexes(len(data), k, rng)
	init := make([][]float64, k)
	for c, i := range picks {
		init[c] = append([]float64(nil), data[i]...)
	}
	return init
}

// totalSS is the sum of squared distances from every point to the global mean.
func totalSS(data [][]float64) float64 {
	dims := len(data[0])
	mean := make([]float64, dims)
	for _, row := range data {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(data))
	}

	ss := 0.0
	for _, row := range data {
		ss += sqDist(row, mean)
	}
	return ss
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for j := range a {
		d := a[j] - b[j]
		s += d * d
	}
	return s
}

// finishQuality fills the SS decomposition and ratio on a result.
func finishQuality(res *Result, total float64) {
	res.TotalSS = total
	res.BetweenSS = total - res.WithinSS
	if res.BetweenSS < 0 {
		res.BetweenSS = 0
	}
	if total > 0 {
		res.Ratio = res.BetweenSS / total
	}
	res.Ratio = math.Min(1, math.Max(0, res.Ratio))
}

package kmeans

import "math/rand"

// sampleIndexes draws m distinct indexes from [0, n) uniformly without
// replacement via a partial Fisher-Yates shuffle.
func sampleIndexes(n, m int, rng *rand.Rand) []int {
	if m > n {
		m = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < m; i++ {
		j := i + rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:m]
}

// sampleRows draws m rows uniformly without replacement. Row slices are
// shared with the source; callers must not mutate them.
func sampleRows(data [][]float64, m int, rng *rand.Rand) [][]float64 {
	if m >= len(data) {
		return data
	}
	picks := sampleIndexes(len(data), m, rng)
	sample := make([][]float64, m)
	for i, p := range picks {
		sample[i] = data[p]
	}
	return sample
}

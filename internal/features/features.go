// Package features builds the numeric clustering matrix from customer records
// and standardizes it for Euclidean distance computation.
package features

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/model"
)

// ErrZeroVariance means a feature column is constant and cannot be scaled.
var ErrZeroVariance = eris.New("features: zero-variance column")

// Names lists the clustering features in column order.
var Names = []string{"recency", "frequency", "monetary", "gender_flag", "age"}

// AgePolicy decides how rows with missing age are resolved before scaling.
type AgePolicy string

const (
	// AgeImputeMedian replaces missing ages with the population median.
	AgeImputeMedian AgePolicy = "impute_median"

	// AgeDropRows excludes customers with missing age from the matrix.
	AgeDropRows AgePolicy = "drop"
)

// Matrix is a dense row-major feature matrix. Rows maps each matrix row back
// to its index in the customer slice it was built from, so cluster labels can
// be written back after rows were dropped.
type Matrix struct {
	Data [][]float64
	Rows []int
}

// Build assembles the clustering matrix (recency, frequency, monetary, gender
// flag, age) and resolves missing ages according to the policy. The returned
// matrix is complete: every cell holds a finite value.
func Build(customers []model.Customer, policy AgePolicy) (*Matrix, error) {
	if len(customers) == 0 {
		return nil, eris.New("features: no customers")
	}

	var median float64
	if policy == AgeImputeMedian {
		median = medianAge(customers)
	}

	m := &Matrix{}
	dropped := 0
	for i, c := range customers {
		age := median
		if c.Age != nil {
			age = *c.Age
		} else if policy == AgeDropRows {
			dropped++
			continue
		}
		m.Data = append(m.Data, []float64{
			float64(c.Recency),
			float64(c.Frequency),
			c.Monetary,
			float64(c.GenderFlag),
			age,
		})
		m.Rows = append(m.Rows, i)
	}

	if len(m.Data) == 0 {
		return nil, eris.New("features: all rows dropped by age policy")
	}
	if dropped > 0 {
		zap.L().Warn("features: dropped rows with missing age", zap.Int("dropped", dropped))
	}

	return m, nil
}

// medianAge returns the median of present ages, or 0 when none are present.
func medianAge(customers []model.Customer) float64 {
	var ages []float64
	for _, c := range customers {
		if c.Age != nil {
			ages = append(ages, *c.Age)
		}
	}
	if len(ages) == 0 {
		return 0
	}
	sort.Float64s(ages)
	mid := len(ages) / 2
	if len(ages)%2 == 0 {
		return (ages[mid-1] + ages[mid]) / 2
	}
	return ages[mid]
}

// Standardize z-scores each column in place using the population mean and
// standard deviation of the matrix itself. Returns the per-column means and
// deviations so profiles can be reported in original units. Fails with
// ErrZeroVariance naming the degenerate column.
func Standardize(m *Matrix) (means, stds []float64, err error) {
	n := len(m.Data)
	if n == 0 {
		return nil, nil, eris.New("features: empty matrix")
	}
	dims := len(m.Data[0])

	means = make([]float64, dims)
	stds = make([]float64, dims)

	for _, row := range m.Data {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}

	for _, row := range m.Data {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / float64(n))
		if stds[j] == 0 {
			return nil, nil, eris.Wrapf(ErrZeroVariance, "features: column %s", Names[j])
		}
	}

	for _, row := range m.Data {
		for j := range row {
			row[j] = (row[j] - means[j]) / stds[j]
		}
	}

	return means, stds, nil
}

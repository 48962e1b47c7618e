package features

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/segment-cli/internal/model"
)

func ptr(v float64) *float64 { return &v }

func testCustomers() []model.Customer {
	customers := make([]model.Customer, 20)
	for i := range customers {
		customers[i] = model.Customer{
			ID:         fmt.Sprintf("C%d", i),
			Recency:    i * 3,
			Frequency:  i + 1,
			Monetary:   float64(i*i) * 7,
			GenderFlag: i % 2,
			Age:        ptr(float64(20 + i)),
		}
	}
	return customers
}

func TestBuild_FullMatrix(t *testing.T) {
	customers := testCustomers()
	m, err := Build(customers, AgeImputeMedian)
	require.NoError(t, err)
	require.Len(t, m.Data, 20)
	require.Len(t, m.Rows, 20)

	for i, row := range m.Data {
		require.Len(t, row, len(Names))
		assert.Equal(t, float64(customers[i].Recency), row[0])
		assert.Equal(t, float64(customers[i].Frequency), row[1])
		assert.Equal(t, customers[i].Monetary, row[2])
	}
}

func TestBuild_ImputeMedian(t *testing.T) {
	customers := testCustomers()
	customers[3].Age = nil
	customers[7].Age = nil

	m, err := Build(customers, AgeImputeMedian)
	require.NoError(t, err)
	require.Len(t, m.Data, 20)

	// Median of the 18 present ages.
	want := medianAge(customers)
	assert.Equal(t, want, m.Data[3][4])
	assert.Equal(t, want, m.Data[7][4])
}

func TestBuild_DropRows(t *testing.T) {
	customers := testCustomers()
	customers[5].Age = nil

	m, err := Build(customers, AgeDropRows)
	require.NoError(t, err)
	require.Len(t, m.Data, 19)

	// Row mapping skips the dropped customer.
	assert.NotContains(t, m.Rows, 5)
	assert.Contains(t, m.Rows, 6)
}

func TestBuild_AllDropped(t *testing.T) {
	customers := testCustomers()
	for i := range customers {
		customers[i].Age = nil
	}
	_, err := Build(customers, AgeDropRows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all rows dropped")
}

func TestMedianAge_EvenOdd(t *testing.T) {
	odd := []model.Customer{{Age: ptr(30)}, {Age: ptr(10)}, {Age: ptr(20)}}
	assert.Equal(t, 20.0, medianAge(odd))

	even := []model.Customer{{Age: ptr(10)}, {Age: ptr(20)}, {Age: ptr(30)}, {Age: ptr(40)}}
	assert.Equal(t, 25.0, medianAge(even))

	assert.Equal(t, 0.0, medianAge([]model.Customer{{}}))
}

func TestStandardize_MeanZeroVarOne(t *testing.T) {
	m, err := Build(testCustomers(), AgeImputeMedian)
	require.NoError(t, err)

	means, stds, err := Standardize(m)
	require.NoError(t, err)
	require.Len(t, means, len(Names))
	require.Len(t, stds, len(Names))

	n := float64(len(m.Data))
	for j := range Names {
		var sum, sumSq float64
		for _, row := range m.Data {
			sum += row[j]
			sumSq += row[j] * row[j]
		}
		mean := sum / n
		variance := sumSq/n - mean*mean
		assert.InDelta(t, 0.0, mean, 1e-9, "column %s", Names[j])
		assert.InDelta(t, 1.0, variance, 1e-9, "column %s", Names[j])
	}
}

func TestStandardize_ZeroVariance(t *testing.T) {
	customers := testCustomers()
	for i := range customers {
		customers[i].GenderFlag = 1 // constant column
	}
	m, err := Build(customers, AgeImputeMedian)
	require.NoError(t, err)

	_, _, err = Standardize(m)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrZeroVariance))
	assert.Contains(t, err.Error(), "gender_flag")
}

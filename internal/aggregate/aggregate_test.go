package aggregate

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/segment-cli/internal/model"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func amt(v float64) *float64 { return &v }

func TestAggregate_EmptyInput(t *testing.T) {
	_, _, err := Aggregate(nil, Options{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptyInput))
}

func TestAggregate_NoValidDates(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "C1", Amount: amt(10)},
		{CustomerID: "C2", Amount: amt(20)},
	}
	_, _, err := Aggregate(txns, Options{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptyInput))
}

func TestAggregate_RecencyFrequencyMonetary(t *testing.T) {
	txns := []model.Transaction{
		// A: single transaction 10 days before the reference.
		{CustomerID: "A", Date: date(2024, 3, 5), Amount: amt(100), Gender: "F"},
		// B: five transactions, latest fixes the reference date.
		{CustomerID: "B", Date: date(2024, 3, 13), Amount: amt(1000), Gender: "M"},
		{CustomerID: "B", Date: date(2024, 3, 14), Amount: amt(1000), Gender: "M"},
		{CustomerID: "B", Date: date(2024, 3, 15), Amount: amt(1000), Gender: "M"},
		{CustomerID: "B", Date: date(2024, 3, 15), Amount: amt(1000), Gender: "M"},
		{CustomerID: "B", Date: date(2024, 3, 15), Amount: amt(1000), Gender: "M"},
	}

	customers, stats, err := Aggregate(txns, Options{GenderPositive: "M"})
	require.NoError(t, err)
	require.Len(t, customers, 2)

	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), stats.Reference)

	a := customers[0]
	assert.Equal(t, "A", a.ID)
	assert.Equal(t, 10, a.Recency)
	assert.Equal(t, 1, a.Frequency)
	assert.Equal(t, 100.0, a.Monetary)
	assert.Equal(t, 0, a.GenderFlag)

	b := customers[1]
	assert.Equal(t, "B", b.ID)
	assert.Equal(t, 0, b.Recency)
	assert.Equal(t, 5, b.Frequency)
	assert.Equal(t, 5000.0, b.Monetary)
	assert.Equal(t, 1, b.GenderFlag)

	// B dominates A on every raw metric that feeds scoring.
	assert.Less(t, b.Recency, a.Recency)
	assert.Greater(t, b.Frequency, a.Frequency)
	assert.Greater(t, b.Monetary, a.Monetary)
}

func TestAggregate_RecencyNonNegative(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 1), Amount: amt(1)},
		{CustomerID: "B", Date: date(2024, 2, 1), Amount: amt(1)},
		{CustomerID: "C", Date: date(2024, 3, 1), Amount: amt(1)},
	}
	customers, _, err := Aggregate(txns, Options{})
	require.NoError(t, err)
	for _, c := range customers {
		assert.GreaterOrEqual(t, c.Recency, 0)
		assert.GreaterOrEqual(t, c.Frequency, 1)
	}
}

func TestAggregate_MissingAmounts(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 1), Amount: amt(30)},
		{CustomerID: "A", Date: date(2024, 1, 2)}, // missing amount
		{CustomerID: "A", Date: date(2024, 1, 3), Amount: amt(60)},
	}
	customers, _, err := Aggregate(txns, Options{})
	require.NoError(t, err)
	require.Len(t, customers, 1)

	// Missing amounts contribute 0 to the sum and are excluded from the mean.
	assert.Equal(t, 90.0, customers[0].Monetary)
	assert.Equal(t, 45.0, customers[0].AvgAmount)
}

func TestAggregate_LastValuesFromMostRecentRow(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 3), Amount: amt(300), Balance: amt(3000)},
		{CustomerID: "A", Date: date(2024, 1, 1), Amount: amt(100), Balance: amt(1000)},
		{CustomerID: "A", Date: date(2024, 1, 2), Amount: amt(200), Balance: amt(2000)},
	}
	customers, _, err := Aggregate(txns, Options{})
	require.NoError(t, err)
	require.Len(t, customers, 1)

	assert.Equal(t, 300.0, customers[0].LastAmount)
	assert.Equal(t, 3000.0, customers[0].LastBalance)
	assert.InDelta(t, 200.0, customers[0].AvgAmount, 1e-9)
	assert.InDelta(t, 2000.0, customers[0].AvgBalance, 1e-9)
}

func TestAggregate_LastValuesBlankOnMostRecentRow(t *testing.T) {
	// The max-dated row has no amount or balance: last values reflect that
	// row as zero instead of falling back to an older transaction.
	txns := []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 1), Amount: amt(100), Balance: amt(1000)},
		{CustomerID: "A", Date: date(2024, 1, 5)},
	}
	customers, _, err := Aggregate(txns, Options{})
	require.NoError(t, err)
	require.Len(t, customers, 1)

	assert.Zero(t, customers[0].LastAmount)
	assert.Zero(t, customers[0].LastBalance)
	assert.InDelta(t, 100.0, customers[0].AvgAmount, 1e-9)
	assert.InDelta(t, 1000.0, customers[0].AvgBalance, 1e-9)

	// A blank balance alone also does not retain the older balance.
	txns = []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 1), Amount: amt(100), Balance: amt(1000)},
		{CustomerID: "A", Date: date(2024, 1, 5), Amount: amt(200)},
	}
	customers, _, err = Aggregate(txns, Options{})
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, 200.0, customers[0].LastAmount)
	assert.Zero(t, customers[0].LastBalance)
}

func TestAggregate_DominantGender(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 1), Gender: "F"},
		{CustomerID: "A", Date: date(2024, 1, 2), Gender: "M"},
		{CustomerID: "A", Date: date(2024, 1, 3), Gender: "M"},
	}
	customers, _, err := Aggregate(txns, Options{GenderPositive: "M"})
	require.NoError(t, err)
	assert.Equal(t, 1, customers[0].GenderFlag)
}

func TestAggregate_GenderTieBreaksFirstSeen(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 1), Gender: "F"},
		{CustomerID: "A", Date: date(2024, 1, 2), Gender: "M"},
	}
	customers, _, err := Aggregate(txns, Options{GenderPositive: "M"})
	require.NoError(t, err)
	// F and M are tied at one occurrence each; F was seen first.
	assert.Equal(t, 0, customers[0].GenderFlag)
}

func TestAggregate_ExcludesCustomersWithoutDates(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 1), Amount: amt(1)},
		{CustomerID: "B", Amount: amt(2)}, // no date at all
	}
	customers, stats, err := Aggregate(txns, Options{})
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "A", customers[0].ID)
	assert.Equal(t, 1, stats.ExcludedNoDate)
}

func TestAggregate_StrictDates(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 1), Amount: amt(1)},
		{CustomerID: "B", Amount: amt(2)},
	}
	_, _, err := Aggregate(txns, Options{StrictDates: true})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMissingDate))
	assert.Contains(t, err.Error(), "B")
}

func TestAggregate_FirstEncounterOrder(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "Z", Date: date(2024, 1, 1)},
		{CustomerID: "A", Date: date(2024, 1, 1)},
		{CustomerID: "Z", Date: date(2024, 1, 2)},
		{CustomerID: "M", Date: date(2024, 1, 1)},
	}
	customers, _, err := Aggregate(txns, Options{})
	require.NoError(t, err)
	require.Len(t, customers, 3)
	assert.Equal(t, "Z", customers[0].ID)
	assert.Equal(t, "A", customers[1].ID)
	assert.Equal(t, "M", customers[2].ID)
}

func TestAggregate_AgeFirstNonNull(t *testing.T) {
	txns := []model.Transaction{
		{CustomerID: "A", Date: date(2024, 1, 1)},
		{CustomerID: "A", Date: date(2024, 1, 2), Age: amt(34)},
		{CustomerID: "A", Date: date(2024, 1, 3), Age: amt(35)},
	}
	customers, _, err := Aggregate(txns, Options{})
	require.NoError(t, err)
	require.NotNil(t, customers[0].Age)
	assert.Equal(t, 34.0, *customers[0].Age)
}

//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/segment-cli/internal/config"
)

func setTestConfig(t *testing.T) {
	t.Helper()
	orig := cfg
	cfg = &config.Config{
		Input: config.InputConfig{
			CustomerIDColumn: "CustomerID",
			DateColumn:       "TransactionDate",
			AmountColumn:     "TransactionAmount",
			BalanceColumn:    "AccountBalance",
			GenderColumn:     "CustGender",
			AgeColumn:        "CustomerAge",
			DateLayouts:      []string{"2006-01-02"},
		},
	}
	t.Cleanup(func() { cfg = orig })
}

func TestLoadTransactions_CSV(t *testing.T) {
	setTestConfig(t)

	path := filepath.Join(t.TempDir(), "txns.csv")
	content := `CustomerID,TransactionDate,TransactionAmount,AccountBalance,CustGender,CustomerAge
C1,2026-01-15,42.50,1200,F,34
C2,2026-02-01,10,900,M,51
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	txns, err := loadTransactions(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "C1", txns[0].CustomerID)
	require.NotNil(t, txns[0].Amount)
	assert.Equal(t, 42.50, *txns[0].Amount)
	assert.Equal(t, "M", txns[1].Gender)
}

func TestLoadTransactions_XLSX(t *testing.T) {
	setTestConfig(t)

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range [][]string{
		{"CustomerID", "TransactionDate", "TransactionAmount"},
		{"C1", "2026-01-15", "42.50"},
	} {
		row := sheet.AddRow()
		for _, cell := range rowData {
			row.AddCell().SetString(cell)
		}
	}
	path := filepath.Join(t.TempDir(), "txns.xlsx")
	require.NoError(t, f.Save(path))

	txns, err := loadTransactions(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "C1", txns[0].CustomerID)
}

func TestLoadTransactions_UnsupportedExtension(t *testing.T) {
	setTestConfig(t)

	_, err := loadTransactions(context.Background(), "input.parquet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input format")
}

func TestLoadTransactions_EmptyFile(t *testing.T) {
	setTestConfig(t)

	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := loadTransactions(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestLoadTransactions_MissingFile(t *testing.T) {
	setTestConfig(t)

	_, err := loadTransactions(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestLoadTransactions_MissingRequiredColumn(t *testing.T) {
	setTestConfig(t)

	path := filepath.Join(t.TempDir(), "txns.csv")
	require.NoError(t, os.WriteFile(path, []byte("Foo,Bar\n1,2\n"), 0o644))

	_, err := loadTransactions(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer id column")
}

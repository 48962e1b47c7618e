// Package loader reads raw transaction tables from CSV and XLSX sources and
// maps them onto model.Transaction rows using a configurable column mapping.
package loader

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/config"
	"github.com/sells-group/segment-cli/internal/model"
)

// Mapper converts raw string rows into transactions according to the input
// column mapping. Blank cells map to nil pointer fields rather than errors;
// malformed numerics are reported with the offending row number.
type Mapper struct {
	cfg config.InputConfig

	idIdx      int
	dateIdx    int
	amountIdx  int
	balanceIdx int
	genderIdx  int
	ageIdx     int
}

// NewMapper resolves the configured column names against a header row.
// Optional columns (balance, gender, age) may be absent; the required
// customer id, date, and amount columns may not.
func NewMapper(cfg config.InputConfig, header []string) (*Mapper, error) {
	m := &Mapper{cfg: cfg}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	find := func(name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		return -1
	}

	m.idIdx = find(cfg.CustomerIDColumn)
	m.dateIdx = find(cfg.DateColumn)
	m.amountIdx = find(cfg.AmountColumn)
	m.balanceIdx = find(cfg.BalanceColumn)
	m.genderIdx = find(cfg.GenderColumn)
	m.ageIdx = find(cfg.AgeColumn)

	if m.idIdx < 0 {
		return nil, eris.Errorf("loader: customer id column %q not found in header", cfg.CustomerIDColumn)
	}
	if m.dateIdx < 0 {
		return nil, eris.Errorf("loader: date column %q not found in header", cfg.DateColumn)
	}
	if m.amountIdx < 0 {
		return nil, eris.Errorf("loader: amount column %q not found in header", cfg.AmountColumn)
	}

	return m, nil
}

// Map converts one raw row. Row numbers are 1-based data rows (header
// excluded) and appear in parse errors.
func (m *Mapper) Map(row []string, rowNum int) (model.Transaction, error) {
	txn := model.Transaction{}

	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	txn.CustomerID = cell(m.idIdx)
	if txn.CustomerID == "" {
		return txn, eris.Errorf("loader: row %d: empty customer id", rowNum)
	}

	if s := cell(m.dateIdx); s != "" {
		d, err := m.parseDate(s)
		if err != nil {
			return txn, eris.Wrapf(err, "loader: row %d", rowNum)
		}
		txn.Date = &d
	}

	if s := cell(m.amountIdx); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return txn, eris.Errorf("loader: row %d: bad amount %q", rowNum, s)
		}
		txn.Amount = &f
	}

	if s := cell(m.balanceIdx); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return txn, eris.Errorf("loader: row %d: bad balance %q", rowNum, s)
		}
		txn.Balance = &f
	}

	txn.Gender = cell(m.genderIdx)

	if s := cell(m.ageIdx); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return txn, eris.Errorf("loader: row %d: bad age %q", rowNum, s)
		}
		txn.Age = &f
	}

	return txn, nil
}

// parseDate tries each configured layout in order.
func (m *Mapper) parseDate(s string) (time.Time, error) {
	for _, layout := range m.cfg.DateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, eris.Errorf("loader: unparseable date %q", s)
}

// Load drains a row stream into transactions. Rows that fail to map are
// skipped and counted; a read error from the source aborts the load.
func Load(ctx context.Context, m *Mapper, rows <-chan []string, errs <-chan error) ([]model.Transaction, int, error) {
	var txns []model.Transaction
	skipped := 0
	rowNum := 0

	for row := range rows {
		rowNum++
		txn, err := m.Map(row, rowNum)
		if err != nil {
			skipped++
			zap.L().Debug("loader: skipping row", zap.Int("row", rowNum), zap.Error(err))
			continue
		}
		txns = append(txns, txn)
	}

	if err := <-errs; err != nil {
		return nil, skipped, eris.Wrap(err, "loader: read source")
	}
	if ctx.Err() != nil {
		return nil, skipped, eris.Wrap(ctx.Err(), "loader: cancelled")
	}

	if skipped > 0 {
		zap.L().Warn("loader: skipped malformed rows", zap.Int("skipped", skipped), zap.Int("loaded", len(txns)))
	}

	return txns, skipped, nil
}

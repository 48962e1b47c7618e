package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-cli/internal/loader"
	"github.com/sells-group/segment-cli/internal/model"
)

// loadTransactions reads a transaction table from a CSV or XLSX file, chosen
// by extension, applying the configured column mapping.
func loadTransactions(ctx context.Context, path string) ([]model.Transaction, error) {
	headerCh := make(chan []string, 1)

	var rows <-chan []string
	var errs <-chan error
	var closeFn func() error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, errs = loader.StreamXLSX(ctx, path, loader.XLSXOptions{
			SheetName: cfg.Input.SheetName,
			HeaderCh:  headerCh,
		})
		closeFn = func() error { return nil }
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open input %s", path)
		}
		rows, errs = loader.StreamCSV(ctx, f, loader.CSVOptions{
			HasHeader: true,
			HeaderCh:  headerCh,
			TrimSpace: true,
		})
		closeFn = f.Close
	default:
		return nil, eris.Errorf("unsupported input format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	defer closeFn() //nolint:errcheck

	// The header arrives before any data row; a closed error channel means
	// the source was empty.
	var header []string
	select {
	case h := <-headerCh:
		header = h
	case err := <-errs:
		if err != nil {
			return nil, err
		}
		return nil, eris.Errorf("input %s has no header row", path)
	}

	mapper, err := loader.NewMapper(cfg.Input, header)
	if err != nil {
		return nil, err
	}

	txns, _, err := loader.Load(ctx, mapper, rows, errs)
	return txns, err
}

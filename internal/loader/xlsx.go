// Package loader reads capture workbooks into the core's tabular contract.
package loader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/celltrace-lab/celltrace/internal/core/series"
)

// XLSX loads the first sheet of a capture workbook. The first row is the
// header; cells come back as formatted strings, which is what the merger's
// coercion expects.
type XLSX struct{}

// NewXLSX returns a workbook chunk loader.
func NewXLSX() *XLSX {
	return &XLSX{}
}

// Load reads path into a Table. A malformed or unreadable workbook is a
// per-file failure: the error is returned for reporting and the caller
// substitutes an empty table so the sequence proceeds with whatever loaded.
func (l *XLSX) Load(ctx context.Context, path string) (series.Table, error) {
	if err := ctx.Err(); err != nil {
		return series.Table{}, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return series.Table{}, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("[Loader] Failed to close workbook", "path", path, "error", closeErr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return series.Table{}, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return series.Table{}, fmt.Errorf("read sheet %q of %s: %w", sheets[0], path, err)
	}
	if len(rows) == 0 {
		return series.Table{}, nil
	}

	return series.Table{Header: rows[0], Rows: rows[1:]}, nil
}

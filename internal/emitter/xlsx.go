package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/celltrace-lab/celltrace/internal/core/series"
)

// excelize caps column widths at 255 characters.
const maxColumnWidth = 255

// Emitter writes sequence artifacts into a single output directory, created
// on first use.
type Emitter struct {
	dir string
}

// New returns an Emitter rooted at dir.
func New(dir string) *Emitter {
	return &Emitter{dir: dir}
}

func (e *Emitter) ensureDir() error {
	return os.MkdirAll(e.dir, 0o755)
}

// WriteCombined persists the merged series as one workbook, passthrough
// columns included, with widths fitted to content the way the logger's own
// exports look. Returns the written path.
func (e *Emitter) WriteCombined(ctx context.Context, m *series.Merged) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := e.ensureDir(); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(e.dir, BaseName(m.Sequence)+".xlsx")

	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("[Emitter] Failed to close workbook", "path", path, "error", closeErr)
		}
	}()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(m.Columns))
	widths := make([]int, len(m.Columns))
	for i, col := range m.Columns {
		header[i] = col
		widths[i] = len(col)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for rowIdx, row := range m.Rows {
		cells := make([]interface{}, len(row.Raw))
		for i, raw := range row.Raw {
			cells[i] = raw
			if len(raw) > widths[i] {
				widths[i] = len(raw)
			}
		}
		cellRef, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return "", err
		}
		if err := f.SetSheetRow(sheet, cellRef, &cells); err != nil {
			return "", fmt.Errorf("write row %d: %w", rowIdx+2, err)
		}
	}

	for i := range m.Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return "", err
		}
		width := float64(widths[i] + 1)
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return "", fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook %s: %w", path, err)
	}
	return path, nil
}

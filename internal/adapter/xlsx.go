package adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/amishk599/skillradar/internal/jobcsv"
	"github.com/amishk599/skillradar/internal/model"
)

// Ensure XLSXAdapter implements model.BatchSource.
var _ model.BatchSource = (*XLSXAdapter)(nil)

// XLSXAdapter reads a scraper export saved as an Excel workbook. The sheet
// must follow the CSV layout: a header row, then one job per row.
type XLSXAdapter struct {
	path  string
	sheet string // empty means the first sheet
}

func NewXLSXAdapter(path, sheet string) *XLSXAdapter {
	return &XLSXAdapter{path: path, sheet: sheet}
}

// LoadBatch returns the records on the configured sheet. A missing file or
// a sheet with no data rows is reported as model.ErrNoInput.
func (a *XLSXAdapter) LoadBatch(ctx context.Context) (model.Batch, error) {
	if _, err := os.Stat(a.path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", model.ErrNoInput, a.path)
	}

	f, err := excelize.OpenFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", a.path, err)
	}
	defer f.Close()

	sheet := a.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %s has no sheets", model.ErrNoInput, a.path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, a.path, err)
	}

	batch, err := jobcsv.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", a.path, err)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: sheet %q of %s has no rows", model.ErrNoInput, sheet, a.path)
	}
	return batch, nil
}

// IsSpreadsheet reports whether path names an Excel workbook.
func IsSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

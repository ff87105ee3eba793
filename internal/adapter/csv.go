package adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/amishk599/skillradar/internal/jobcsv"
	"github.com/amishk599/skillradar/internal/model"
)

// Ensure CSVAdapter implements model.BatchSource.
var _ model.BatchSource = (*CSVAdapter)(nil)

// CSVAdapter reads a scraper's CSV export. The file is re-read on every
// LoadBatch so a scheduler picks up new scrapes without restarting.
type CSVAdapter struct {
	path string
}

func NewCSVAdapter(path string) *CSVAdapter {
	return &CSVAdapter{path: path}
}

// LoadBatch returns the records in the file. A missing file or a file with
// no rows is reported as model.ErrNoInput.
func (a *CSVAdapter) LoadBatch(ctx context.Context) (model.Batch, error) {
	f, err := os.Open(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", model.ErrNoInput, a.path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", a.path, err)
	}
	defer f.Close()

	batch, err := jobcsv.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", a.path, err)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: %s has no rows", model.ErrNoInput, a.path)
	}
	return batch, nil
}

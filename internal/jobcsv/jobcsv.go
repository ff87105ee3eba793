// Package jobcsv reads and writes job batches as CSV with a header row, and
// decodes header-first row sets from other tabular sources.
package jobcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/amishk599/skillradar/internal/model"
)

// Header is the column order Write produces.
var Header = []string{"Title", "Company", "Location", "Skills", "Experience", "Summary", "Cluster"}

// Read parses a batch from r. Columns are matched by header name,
// case-insensitively, in any order. Title and Company are required; every
// other column may be absent, in which case the field is left empty and
// Cluster stays model.Unassigned. An empty input yields an empty batch.
func Read(r io.Reader) (model.Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return model.Batch{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	batch := model.Batch{}
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading csv row %d: %w", line, err)
		}
		rec, err := cols.record(row, line)
		if err != nil {
			return nil, err
		}
		batch = append(batch, rec)
	}
	return batch, nil
}

// FromRows decodes rows whose first element is the header, using the same
// column rules as Read. Spreadsheet readers hand their sheets over this way.
// Fully blank rows are skipped.
func FromRows(rows [][]string) (model.Batch, error) {
	if len(rows) == 0 {
		return model.Batch{}, nil
	}
	cols, err := parseHeader(rows[0])
	if err != nil {
		return nil, err
	}

	batch := model.Batch{}
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec, err := cols.record(row, i+2)
		if err != nil {
			return nil, err
		}
		batch = append(batch, rec)
	}
	return batch, nil
}

// columns maps a lowercased header name to its index.
type columns map[string]int

func parseHeader(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{"title", "company"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("header missing required column %q", required)
		}
	}
	return cols, nil
}

func (c columns) record(row []string, line int) (model.JobRecord, error) {
	field := func(name string) string {
		i, ok := c[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rec := model.JobRecord{
		Title:      field("title"),
		Company:    field("company"),
		Location:   field("location"),
		Skills:     field("skills"),
		Experience: field("experience"),
		Summary:    field("summary"),
		Cluster:    model.Unassigned,
	}.WithLFNewlines()
	if raw := strings.TrimSpace(field("cluster")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.JobRecord{}, fmt.Errorf("row %d: parse cluster %q: %w", line, raw, err)
		}
		rec.Cluster = n
	}
	return rec, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Write encodes batch to w with Header as the first row. CRLF inside a field
// is written as LF, so Read returns exactly what was written.
func Write(w io.Writer, batch model.Batch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for i, j := range batch {
		j = j.WithLFNewlines()
		row := []string{j.Title, j.Company, j.Location, j.Skills, j.Experience, j.Summary, strconv.Itoa(j.Cluster)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

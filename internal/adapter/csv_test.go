package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amishk599/skillradar/internal/model"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCSVAdapter_LoadBatch(t *testing.T) {
	path := writeFile(t, "Title,Company,Location,Skills\nEngineer,Acme,Kochi,\"python,sql\"\nAnalyst,Acme,Remote,excel\n")

	batch, err := NewCSVAdapter(path).LoadBatch(context.Background())
	if err != nil {
		t.Fatalf("LoadBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("len = %d, want 2", len(batch))
	}
	if batch[0].Skills != "python,sql" || batch[1].Title != "Analyst" {
		t.Errorf("batch = %+v", batch)
	}
	for _, j := range batch {
		if j.Cluster != model.Unassigned {
			t.Errorf("%s: cluster = %d, want unassigned", j.Title, j.Cluster)
		}
	}
}

func TestCSVAdapter_NoInput(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "absent.csv")},
		{name: "empty file", path: writeFile(t, "")},
		{name: "header only", path: writeFile(t, "Title,Company,Location,Skills\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVAdapter(tt.path).LoadBatch(context.Background())
			if !errors.Is(err, model.ErrNoInput) {
				t.Errorf("err = %v, want ErrNoInput", err)
			}
		})
	}
}

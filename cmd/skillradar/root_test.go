package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amishk599/skillradar/internal/adapter"
	"github.com/amishk599/skillradar/internal/cluster"
	"github.com/amishk599/skillradar/internal/config"
	"github.com/amishk599/skillradar/internal/model"
)

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SKILLRADAR_CONFIG", "")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Model.Clusters != config.Default().Model.Clusters {
		t.Errorf("Clusters = %d, want default", cfg.Model.Clusters)
	}
}

func TestLoadConfig_ExplicitMissingFileFails(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config")
	}
}

func TestLoadConfig_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.yaml")
	if err := os.WriteFile(path, []byte("model:\n  clusters: 3\npreferred_clusters: [2]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SKILLRADAR_CONFIG", path)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Model.Clusters != 3 {
		t.Errorf("Clusters = %d, want 3 from the env config", cfg.Model.Clusters)
	}
}

func TestLoadConfig_InputFlagOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SKILLRADAR_CONFIG", "")
	inputPath = "override.csv"
	t.Cleanup(func() { inputPath = "" })

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Input.Path != "override.csv" {
		t.Errorf("Input.Path = %q, want override.csv", cfg.Input.Path)
	}
}

func TestSettingsFrom(t *testing.T) {
	cfg := config.Default()
	cfg.PreferredClusters = []int{1, 3}
	cfg.SkipFirstRunAlerts = false

	s := settingsFrom(cfg)
	if !s.Preferred.Has(1) || !s.Preferred.Has(3) || len(s.Preferred) != 2 {
		t.Errorf("Preferred = %v", s.Preferred.Sorted())
	}
	if s.Training.Clusters != 5 || s.Training.Seed != 42 || s.Training.MaxFeatures != 1000 {
		t.Errorf("Training = %+v", s.Training)
	}
	if s.SkipFirstRunAlerts {
		t.Error("SkipFirstRunAlerts not carried over")
	}
}

func TestOpenStore_ReadOnlyCreatesNothing(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			root := t.TempDir()
			cfg := config.Default()
			cfg.Storage.Backend = backend
			cfg.Storage.Dir = filepath.Join(root, "data")
			cfg.Storage.SQLitePath = filepath.Join(root, "data", "radar.db")

			st, err := openStore(cfg, true)
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			defer st.Close()

			if _, err := st.LoadBaseline(context.Background()); !errors.Is(err, model.ErrNoBaseline) {
				t.Errorf("LoadBaseline err = %v, want ErrNoBaseline", err)
			}
			if _, err := st.LoadModel(context.Background(), cluster.VectorizerKey); !errors.Is(err, model.ErrModelNotFound) {
				t.Errorf("LoadModel err = %v, want ErrModelNotFound", err)
			}
			entries, err := os.ReadDir(root)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 0 {
				t.Errorf("read-only open created %v", entries)
			}
		})
	}
}

func TestNewSource_ByExtension(t *testing.T) {
	cfg := config.Default()

	cfg.Input.Path = "data/jobs.csv"
	if _, ok := newSource(cfg).(*adapter.CSVAdapter); !ok {
		t.Errorf("newSource(%q) is not a CSV adapter", cfg.Input.Path)
	}

	cfg.Input.Path = "data/jobs.xlsx"
	if _, ok := newSource(cfg).(*adapter.XLSXAdapter); !ok {
		t.Errorf("newSource(%q) is not an XLSX adapter", cfg.Input.Path)
	}
}

func TestOpenStore_FileBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()

	st, err := openStore(cfg, false)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer st.Close()

	if st.sqlite != nil {
		t.Error("file backend should not expose sqlite history")
	}
	if filepath.Dir(st.lockPath) != cfg.Storage.Dir {
		t.Errorf("lockPath = %q, want inside %q", st.lockPath, cfg.Storage.Dir)
	}
}

func TestOpenStore_SQLiteBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "nested", "radar.db")

	st, err := openStore(cfg, false)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer st.Close()

	if st.sqlite == nil {
		t.Fatal("sqlite backend should expose run history")
	}
	if st.lockPath != cfg.Storage.SQLitePath+".lock" {
		t.Errorf("lockPath = %q", st.lockPath)
	}
}

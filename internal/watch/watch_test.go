package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFile_SignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.csv")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := File(ctx, path, 20*time.Millisecond, discardLogger())
	require.NoError(t, err)

	// Several writes in a row settle into one signal.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("Title,Company\nEngineer,Acme\n"), 0o644))
	}

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no signal after writing the watched file")
	}

	select {
	case <-ch:
		t.Fatal("burst of writes produced more than one signal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFile_SignalsOnRenameIntoPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.csv")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := File(ctx, path, 10*time.Millisecond, discardLogger())
	require.NoError(t, err)

	tmp := filepath.Join(dir, ".jobs.csv.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("Title,Company\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no signal after renaming a file into place")
	}
}

func TestFile_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := File(ctx, filepath.Join(dir, "jobs.csv"), 10*time.Millisecond, discardLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case <-ch:
		t.Fatal("signal for an unrelated file")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestFile_MissingDirectory(t *testing.T) {
	_, err := File(context.Background(), filepath.Join(t.TempDir(), "absent", "jobs.csv"), time.Millisecond, discardLogger())
	require.Error(t, err)
}

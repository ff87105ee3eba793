package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/amishk599/skillradar/internal/jobcsv"
	"github.com/amishk599/skillradar/internal/model"
)

// Ensure FileStore implements model.Store.
var _ model.Store = (*FileStore)(nil)

var validKey = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FileStore keeps the baseline as a CSV file and each model artifact as its
// own file under dir/models. Every write goes to a temp file in the same
// directory and is renamed into place, so readers never see a partial file.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "models"), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}
	return OpenFileStore(dir), nil
}

// OpenFileStore returns a store rooted at dir without touching the
// filesystem. A missing dir reads as an empty store; writes fail until it
// exists.
func OpenFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// BaselinePath is the CSV file holding the last classified batch.
func (s *FileStore) BaselinePath() string {
	return filepath.Join(s.dir, "baseline.csv")
}

func (s *FileStore) modelPath(key string) string {
	return filepath.Join(s.dir, "models", key+".json")
}

// LoadBaseline reads the baseline CSV. It returns model.ErrNoBaseline if the
// file does not exist.
func (s *FileStore) LoadBaseline(ctx context.Context) (model.Batch, error) {
	f, err := os.Open(s.BaselinePath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.ErrNoBaseline
	}
	if err != nil {
		return nil, fmt.Errorf("opening baseline: %w", err)
	}
	defer f.Close()

	batch, err := jobcsv.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading baseline %s: %w", s.BaselinePath(), err)
	}
	return batch, nil
}

// SaveBaseline replaces the baseline CSV with batch.
func (s *FileStore) SaveBaseline(ctx context.Context, batch model.Batch) error {
	err := writeFileAtomic(s.BaselinePath(), func(w io.Writer) error {
		return jobcsv.Write(w, batch)
	})
	if err != nil {
		return &model.PersistenceError{Op: "save baseline", Err: err}
	}
	return nil
}

// LoadModel returns the artifact stored under key, or model.ErrModelNotFound.
func (s *FileStore) LoadModel(ctx context.Context, key string) ([]byte, error) {
	if !validKey.MatchString(key) {
		return nil, fmt.Errorf("invalid model key %q", key)
	}
	blob, err := os.ReadFile(s.modelPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.ErrModelNotFound
	}
	if err != nil {
		return nil, &model.ModelLoadError{Key: key, Err: err}
	}
	return blob, nil
}

// SaveModel writes blob under key.
func (s *FileStore) SaveModel(ctx context.Context, key string, blob []byte) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid model key %q", key)
	}
	err := writeFileAtomic(s.modelPath(key), func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(blob))
		return err
	})
	if err != nil {
		return &model.PersistenceError{Op: "save model " + key, Err: err}
	}
	return nil
}

// LockPath is the file used to serialize runs against this store.
func (s *FileStore) LockPath() string {
	return filepath.Join(s.dir, ".skillradar.lock")
}

// writeFileAtomic writes via fill to a temp file next to path, fsyncs it and
// renames it over path. On any failure the temp file is removed and path is
// left untouched.
func writeFileAtomic(path string, fill func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := fill(tmp); err != nil {
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpName, path, err)
	}
	committed = true
	return nil
}

package store

import (
	"context"
	"log/slog"

	"github.com/amishk599/skillradar/internal/model"
)

// Ensure ReadOnlyStore implements model.Store.
var _ model.Store = (*ReadOnlyStore)(nil)

// ReadOnlyStore is used in check mode. Loads go to the wrapped store; saves
// are logged and dropped, so a dry run never changes the baseline or model.
type ReadOnlyStore struct {
	inner  model.Store
	logger *slog.Logger
}

func NewReadOnlyStore(inner model.Store, logger *slog.Logger) *ReadOnlyStore {
	return &ReadOnlyStore{inner: inner, logger: logger}
}

func (s *ReadOnlyStore) LoadBaseline(ctx context.Context) (model.Batch, error) {
	return s.inner.LoadBaseline(ctx)
}

func (s *ReadOnlyStore) SaveBaseline(_ context.Context, batch model.Batch) error {
	s.logger.Debug("read-only store: skipping baseline save", "records", len(batch))
	return nil
}

func (s *ReadOnlyStore) LoadModel(ctx context.Context, key string) ([]byte, error) {
	return s.inner.LoadModel(ctx, key)
}

func (s *ReadOnlyStore) SaveModel(_ context.Context, key string, blob []byte) error {
	s.logger.Debug("read-only store: skipping model save", "key", key, "bytes", len(blob))
	return nil
}

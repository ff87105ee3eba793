package store

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/amishk599/skillradar/internal/model"
)

func TestReadOnlyStoreDropsWrites(t *testing.T) {
	inner := newTestFileStore(t)
	ctx := context.Background()

	original := sampleBatch()
	if err := inner.SaveBaseline(ctx, original); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}

	ro := NewReadOnlyStore(inner, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := ro.SaveBaseline(ctx, model.Batch{{Title: "Other", Company: "Co", Cluster: 1}}); err != nil {
		t.Fatalf("read-only SaveBaseline: %v", err)
	}
	if err := ro.SaveModel(ctx, "vectorizer", []byte("x")); err != nil {
		t.Fatalf("read-only SaveModel: %v", err)
	}

	got, err := ro.LoadBaseline(ctx)
	if err != nil {
		t.Fatalf("LoadBaseline: %v", err)
	}
	if !reflect.DeepEqual(got, original) {
		t.Errorf("baseline changed through read-only store: %+v", got)
	}
	if _, err := inner.LoadModel(ctx, "vectorizer"); err != model.ErrModelNotFound {
		t.Errorf("model written through read-only store, err = %v", err)
	}
}

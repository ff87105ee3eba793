package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput means the scraped batch was missing or empty where data is required.
	ErrNoInput = errors.New("no input data")

	// ErrNoBaseline means no previous run was persisted. Callers treat every
	// record as new; it is never fatal.
	ErrNoBaseline = errors.New("no baseline")

	// ErrModelNotFound means a model artifact key has never been saved.
	ErrModelNotFound = errors.New("model artifact not found")

	// ErrLocked means another run holds the baseline lock.
	ErrLocked = errors.New("another run is in progress")

	// ErrInsufficientInput means the batch cannot train a classifier: fewer
	// records than clusters, or no usable skills text at all.
	ErrInsufficientInput = errors.New("insufficient input to train a classifier")
)

// ModelLoadError wraps a classifier artifact that exists but cannot be used.
type ModelLoadError struct {
	Key string
	Err error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("loading model %q: %v", e.Key, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed write of the baseline or a model artifact.
type PersistenceError struct {
	Op  string // "save baseline", "save model vectorizer", ...
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Kind names the failure category of err for reporting, or "" if err is not
// one of the pipeline's own kinds.
func Kind(err error) string {
	var loadErr *ModelLoadError
	var persistErr *PersistenceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoInput):
		return "missing_input"
	case errors.Is(err, ErrLocked):
		return "locked"
	case errors.As(err, &loadErr):
		return "model_load"
	case errors.As(err, &persistErr):
		return "persistence"
	case errors.Is(err, ErrInsufficientInput):
		return "insufficient_input"
	default:
		return ""
	}
}

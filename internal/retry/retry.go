package retry

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/skillradar/internal/model"
)

// Ensure RetrySource implements model.BatchSource.
var _ model.BatchSource = (*RetrySource)(nil)

// RetrySource is a decorator that retries transient read failures with
// exponential backoff and jitter before delegating to the wrapped BatchSource.
// A scraper that is still writing its output shows up as a malformed CSV row.
type RetrySource struct {
	inner      model.BatchSource
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetrySource wraps a BatchSource with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetrySource(inner model.BatchSource, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetrySource {
	return &RetrySource{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// LoadBatch attempts to load the batch, retrying on transient errors.
func (s *RetrySource) LoadBatch(ctx context.Context) (model.Batch, error) {
	batch, err := s.inner.LoadBatch(ctx)
	if err == nil {
		return batch, nil
	}

	if !isRetryable(err) {
		return nil, err
	}

	lastErr := err
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		delay := s.backoffDelay(attempt)

		s.logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_retries", s.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		batch, err = s.inner.LoadBatch(ctx)
		if err == nil {
			return batch, nil
		}

		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
func (s *RetrySource) backoffDelay(attempt int) time.Duration {
	// Exponential: baseDelay * 2^(attempt-1)
	delay := s.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable reports whether err looks like a half-written or briefly
// unreadable input file. Missing input, schema problems and cancellation are
// final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, model.ErrNoInput) {
		return false
	}

	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return true
	}
	// A workbook caught mid-save is a truncated zip archive.
	if errors.Is(err, zip.ErrFormat) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}

// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/bucket"
)

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff is the wait before retry i+1 (i counts failures from 0):
// (2^(i+1)-1) units, so 1, 3, 7, 15, 31...
func Backoff(i int, unit time.Duration) time.Duration {
	return time.Duration((int64(1)<<(i+1))-1) * unit
}

// withRetry runs fn up to retries+1 times. Only transient errors are
// retried; every retry drops the cached bucket session first.
func (s *ArtifactService) withRetry(ctx context.Context, op string, retries int, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := Backoff(attempt-1, s.backoffUnit)
			s.log.Warn("retrying transfer",
				"op", op,
				"retry", attempt,
				"retries", retries,
				"delay", delay,
				"error", lastErr)
			if err := s.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !bucket.IsTransient(err) {
			return err
		}
		s.log.Error("transfer attempt failed", "op", op, "attempt", attempt+1, "error", err)
		lastErr = err
		s.dropStore()
	}
	return fmt.Errorf("%w: %s gave up after %d attempts: %w", ErrTransferFailed, op, retries+1, lastErr)
}

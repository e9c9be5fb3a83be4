/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backoff

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry executes an operation with exponential backoff until it succeeds or
// maxElapsedTime is exhausted. Intervals start at the library default and are
// capped at maxInterval.
func Retry(op backoff.Operation, maxElapsedTime, maxInterval time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsedTime
	b.MaxInterval = maxInterval
	return backoff.Retry(op, b)
}

// RetryCount executes an operation with exponential backoff bounded by a fixed
// number of attempts. The first interval is initialInterval; later intervals
// grow up to maxInterval.
func RetryCount(op backoff.Operation, attempts uint64, initialInterval, maxInterval time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithMaxRetries(b, attempts))
}

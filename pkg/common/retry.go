package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/ahrav/cxscan/pkg/common/logger"
)

// RetryConfig bounds ConnectWithRetry.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

// ConnectWithRetry runs connect with exponential backoff for as long as it
// fails with an error matching one of retryable. Any other error stops the
// loop immediately. A zero MaxElapsedTime runs connect exactly once.
func ConnectWithRetry[T any](
	ctx context.Context,
	log *logger.Logger,
	cfg RetryConfig,
	connect func(ctx context.Context) (T, error),
	retryable ...error,
) (T, error) {
	var result T

	if cfg.MaxElapsedTime <= 0 {
		return connect(ctx)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = cfg.MaxElapsedTime
	if cfg.InitialInterval > 0 {
		expBackoff.InitialInterval = cfg.InitialInterval
	}

	attempt := 0
	operation := func() error {
		attempt++
		var err error
		result, err = connect(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		for _, target := range retryable {
			if errors.Is(err, target) {
				log.Warn(ctx, "connect failed, will retry", "attempt", attempt, "error", err)
				return err
			}
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to connect after %d attempt(s): %w", attempt, err)
	}

	return result, nil
}

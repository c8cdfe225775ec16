package scanning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/cxscan/internal/domain/scanning"
)

// pollStep is one query of a poll loop. It returns done once the polled
// resource reached a terminal state.
type pollStep func(ctx context.Context) (done bool, err error)

// poll runs step every interval until it reports done, fails, or ctx ends.
// The first query happens immediately. A positive deadline bounds the whole
// loop.
func poll(ctx context.Context, interval, deadline time.Duration, step pollStep) error {
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if err := ctx.Err(); err != nil {
			return interruption(err)
		}

		done, err := step(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errors.Join(interruption(ctxErr), err)
			}
			return err
		}
		if done {
			return nil
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return interruption(ctx.Err())
		case <-timer.C:
		}
	}
}

// interruption maps a context error to the poll error the caller sees.
func interruption(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", scanning.ErrPollDeadlineExceeded, err)
	}
	return fmt.Errorf("%w: %w", scanning.ErrPollCanceled, err)
}

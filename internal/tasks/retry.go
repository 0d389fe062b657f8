package tasks

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
)

// retryPolicy bounds retries of transient remote failures with exponential
// backoff (delay = base × 2^attempt). Permanent failures propagate on the
// first attempt; exhausting the bound propagates the last transient error,
// which pauses the run at the caller.
type retryPolicy struct {
	maxAttempts int
	base        time.Duration
}

func newRetryPolicy(maxAttempts, baseMS int) retryPolicy {
	return retryPolicy{
		maxAttempts: maxAttempts,
		base:        time.Duration(baseMS) * time.Millisecond,
	}
}

func (p retryPolicy) do(ctx context.Context, op func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.base
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxInterval = p.base * 16

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			if shared.Classify(err) == shared.KindPermanent {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(uint(p.maxAttempts)))

	return err
}

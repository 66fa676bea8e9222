package services

import (
	"context"
	"courier/errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const retryInitialInterval = 50 * time.Millisecond

// RetryPolicy bounds the retries of correctness-critical writes.
type RetryPolicy struct {
	MaxRetries uint64
	Initial    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Initial: retryInitialInterval}
}

// retry runs op until it succeeds, fails with a non transient error or the
// policy is exhausted. Only ErrTransientStore is retried.
func retry[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.Initial
	b := backoff.WithContext(backoff.WithMaxRetries(exp, policy.MaxRetries), ctx)

	var res T
	err := backoff.Retry(func() error {
		var err error
		res, err = op()
		if err != nil && !errors.Is(err, errors.ErrTransientStore) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	return res, err
}

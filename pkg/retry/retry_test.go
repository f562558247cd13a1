package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "competesync/pkg/errors"
	"competesync/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 50 * time.Millisecond}
	assert.Equal(t, time.Duration(0), backoff.NextDelay(0))
	assert.Equal(t, 50*time.Millisecond, backoff.NextDelay(1))
	assert.Equal(t, 50*time.Millisecond, backoff.NextDelay(7))
}

func TestDoSucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.KindTransport, nil, "connection reset")
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	failures := 0
	parseErr := errs.New(errs.KindParseFailure, nil, "not json")

	err := Do(func() error {
		calls++
		return parseErr
	}, &Config{
		MaxAttempts: 5,
		RetryIf:     func(err error) bool { return errs.IsKind(err, errs.KindTransport) },
		OnFailure:   func(int, error) { failures++ },
		Logger:      logger.NewNopLogger(),
	})

	assert.ErrorIs(t, err, parseErr)
	assert.NotErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, failures)
}

func TestDoExhaustionRunsOnFailureEveryAttempt(t *testing.T) {
	rejected := errs.New(errs.KindStatus, nil, "forbidden").WithCode(403)
	var failedAttempts []int
	var retried []int

	err := Do(func() error {
		return rejected
	}, &Config{
		MaxAttempts: 2,
		RetryIf:     func(err error) bool { return errs.IsKind(err, errs.KindStatus) },
		OnFailure:   func(attempt int, _ error) { failedAttempts = append(failedAttempts, attempt) },
		OnRetry:     func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
		Logger:      logger.NewNopLogger(),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, []int{1, 2}, failedAttempts)
	assert.Equal(t, []int{1}, retried)
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(func() error {
		calls++
		cancel()
		return errs.New(errs.KindTransport, nil, "timeout")
	}, &Config{
		MaxAttempts: 10,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		Context:     ctx,
		Logger:      logger.NewNopLogger(),
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(func() (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.KindTransport, nil, "eof")
		}
		return "ok", nil
	}, &Config{MaxAttempts: 3, Logger: logger.NewNopLogger()})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestDoNilRetryIfRetriesAnyError(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errors.New("plain")
		}
		return nil
	}, &Config{MaxAttempts: 3, Logger: logger.NewNopLogger()})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoNilRetryIfStopsOnCancellation(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.KindTransport, context.Canceled, "cancelled")
	}, &Config{MaxAttempts: 3, Logger: logger.NewNopLogger()})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 1, calls)
}

func TestDoNilConfigRunsOnce(t *testing.T) {
	calls := 0
	failure := errors.New("plain")
	err := Do(func() error {
		calls++
		return failure
	}, nil)

	assert.ErrorIs(t, err, failure)
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 1, calls)
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}

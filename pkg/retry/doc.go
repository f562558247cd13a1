// Package retry runs an operation repeatedly until it succeeds, the retry
// predicate refuses the error, or the attempt bound is reached.
//
// OnFailure runs for every failure the predicate accepts, including the one
// on the final attempt, which makes it the place to discard state that caused
// the failure (for example an invalidated credential):
//
//	err := retry.Do(func() error {
//		return fetch(ctx)
//	}, &retry.Config{
//		MaxAttempts: 2,
//		Backoff:     &retry.ConstantBackoff{Delay: time.Second},
//		RetryIf:     isRejected,
//		OnFailure:   func(int, error) { _ = store.Invalidate() },
//		Context:     ctx,
//	})
//	if errors.Is(err, retry.ErrMaxAttemptsExceeded) {
//		// every attempt was rejected
//	}
package retry

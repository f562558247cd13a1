// Package ratelimit paces outgoing requests to the remote service.
//
// TokenBucket hands out up to capacity tokens and refills them all once the
// refill period has elapsed. Wait blocks until a token is available or the
// context ends:
//
//	limiter := ratelimit.NewTokenBucket(60, time.Minute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit

package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"ghost-robot/message"
)

// ErrRateLimited is returned for envelopes dropped by RateLimitMiddleware.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
// Envelopes over the limit are dropped, never queued.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, env *message.Envelope) error {
			if !limiter.Allow() {
				return ErrRateLimited
			}
			return next(ctx, env)
		}
	}
}

package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ghost-robot/message"
)

// SlowDispatchMiddleware warns when handlers take longer than budget.
// Handlers are never abandoned: the receive loop is sequential, so cutting a handler
// short would let the next envelope overtake it.
func SlowDispatchMiddleware(budget time.Duration, logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, env *message.Envelope) error {
			start := time.Now()
			err := next(ctx, env)
			if elapsed := time.Since(start); elapsed > budget {
				logger.Warn("slow dispatch",
					zap.String("type", env.Type),
					zap.Duration("elapsed", elapsed),
					zap.Duration("budget", budget))
			}
			return err
		}
	}
}

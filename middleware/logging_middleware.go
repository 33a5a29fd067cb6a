package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ghost-robot/message"
)

func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, env *message.Envelope) error {
			start := time.Now()
			err := next(ctx, env)
			// Type, payload size and the time spent in handlers
			fields := []zap.Field{
				zap.String("type", env.Type),
				zap.Int("bytes", len(env.Payload)),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("dispatch failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("dispatched", fields...)
			}
			return err
		}
	}
}

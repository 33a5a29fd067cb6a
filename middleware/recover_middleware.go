package middleware

import (
	"context"
	"fmt"

	"ghost-robot/message"
)

// RecoverMiddleware turns a panicking handler into an error so the receive loop survives.
func RecoverMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, env *message.Envelope) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("handler for %s panicked: %v", env.Type, r)
				}
			}()
			return next(ctx, env)
		}
	}
}

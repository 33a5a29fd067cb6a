// Package middleware wraps subscriber dispatch.
//
// Every envelope a subscriber receives passes through the chain before reaching the
// per-type handlers. A middleware may observe the envelope, drop it by returning an
// error without calling next, or convert a handler failure into an error value.
package middleware

import (
	"context"

	"ghost-robot/message"
)

type HandlerFunc func(ctx context.Context, env *message.Envelope) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain 将多个中间件组合成一个中间件
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

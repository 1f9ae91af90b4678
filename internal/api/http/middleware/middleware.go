package middleware

import "net/http"

// Middleware wraps an HTTP handler with additional behavior
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares so the first one listed runs outermost
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

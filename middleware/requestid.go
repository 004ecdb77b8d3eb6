package middleware

import (
	"github.com/google/uuid"
	"github.com/watt-toolkit/fuse/core"
)

// RequestIDKey is the Context store key RequestID writes to.
const RequestIDKey = "request_id"

// HeaderRequestID is the response header carrying the request ID.
const HeaderRequestID = "X-Request-Id"

// RequestID returns a middleware that tags each request with a random
// UUID, stores it under RequestIDKey and echoes it in X-Request-Id.
func RequestID() core.Middleware {
	return RequestIDWithGenerator(func() string {
		return uuid.NewString()
	})
}

// RequestIDWithGenerator is RequestID with a custom ID source.
func RequestIDWithGenerator(generate func() string) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(c *core.Context) (core.Result, error) {
			id := generate()
			c.Set(RequestIDKey, id)
			c.SetHeader(HeaderRequestID, id)
			return next(c)
		}
	}
}

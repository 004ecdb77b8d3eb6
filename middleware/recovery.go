package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/watt-toolkit/fuse/core"
)

// Recovery returns a middleware that recovers from panics in the handler
// chain and answers with a 500 error page.
//
// A panic with core.ErrFinalized is a broken request lifecycle, not a
// handler failure, and is re-raised.
//
// Example:
//
//	h := core.Chain(handler, middleware.Recovery())
func Recovery() core.Middleware {
	return RecoveryWithConfig(DefaultRecoveryConfig())
}

// RecoveryWithConfig returns a recovery middleware with custom configuration.
//
// Example:
//
//	middleware.RecoveryWithConfig(middleware.RecoveryConfig{
//	    PrintStack: true,
//	    Handler: func(c *core.Context, v interface{}) core.Result {
//	        return c.Error(503, "try again later")
//	    },
//	})
func RecoveryWithConfig(config RecoveryConfig) core.Middleware {
	if config.StackSize == 0 {
		config.StackSize = 4 << 10
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return func(next core.Handler) core.Handler {
		return func(c *core.Context) (res core.Result, err error) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if e, ok := v.(error); ok && errors.Is(e, core.ErrFinalized) {
					panic(v)
				}

				attrs := []any{slog.String("panic", fmt.Sprint(v))}
				if config.PrintStack {
					stack := debug.Stack()
					if len(stack) > config.StackSize {
						stack = stack[:config.StackSize]
					}
					attrs = append(attrs, slog.String("stack", string(stack)))
				}
				config.Logger.ErrorContext(context.Background(), "recovered panic", attrs...)

				if config.Handler != nil {
					res, err = config.Handler(c, v), nil
					return
				}
				res, err = c.Error(500, "Internal server error"), nil
			}()

			return next(c)
		}
	}
}

// RecoveryConfig defines configuration for the recovery middleware.
type RecoveryConfig struct {
	// PrintStack adds the stack trace to the log record (default: true).
	PrintStack bool

	// StackSize caps the logged stack trace in bytes (default: 4KB).
	StackSize int

	// Logger receives the record (default: slog.Default()).
	Logger *slog.Logger

	// Handler builds the response for a recovered panic.
	// If nil, a 500 error page is returned.
	Handler func(c *core.Context, v interface{}) core.Result
}

// DefaultRecoveryConfig returns default recovery configuration.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		PrintStack: true,
		StackSize:  4 << 10,
	}
}

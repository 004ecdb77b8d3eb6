// Package middleware provides cross-cutting core.Middleware: request
// logging, panic recovery, request IDs and rate limiting.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/watt-toolkit/fuse/core"
	"github.com/watt-toolkit/fuse/env"
)

// Logger returns a middleware that logs one record per request.
//
// Logged attributes:
//   - method, script, path_info
//   - status (from the Status header or the result kind)
//   - duration_ms
//   - bytes (body size of an Output result)
//   - request_id (when RequestID runs first)
//   - error
//
// Example:
//
//	h := core.Chain(handler, middleware.RequestID(), middleware.Logger())
//
// Output (slog JSON handler):
//
//	{"time":"2025-11-13T10:30:00Z","level":"INFO","msg":"request","method":"GET","script":"/cgi-bin/app","path_info":"/users","status":200,"duration_ms":1.2,"bytes":1234}
func Logger() core.Middleware {
	return LoggerWithConfig(DefaultLoggerConfig())
}

// LoggerWithConfig returns a logger middleware with custom configuration.
//
// Example:
//
//	h = middleware.LoggerWithConfig(middleware.LoggerConfig{
//	    Logger:    slog.New(slog.NewJSONHandler(os.Stderr, nil)),
//	    SkipPaths: []string{"/health"},
//	})(h)
func LoggerWithConfig(config LoggerConfig) core.Middleware {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next core.Handler) core.Handler {
		return func(c *core.Context) (core.Result, error) {
			vars := c.Vars()
			pathInfo := vars.Value(env.PathInfo)
			if skip[pathInfo] {
				return next(c)
			}

			start := time.Now()
			res, err := next(c)
			duration := time.Since(start)

			attrs := []slog.Attr{
				slog.String("method", vars.Value(env.RequestMethod)),
				slog.String("script", vars.Value(env.ScriptName)),
				slog.String("path_info", pathInfo),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000.0),
			}
			if err != nil {
				attrs = append(attrs,
					slog.Int("status", core.StatusForError(err)),
					slog.String("error", err.Error()),
				)
			} else if !c.Finished() {
				attrs = append(attrs,
					slog.Int("status", c.StatusCode(res)),
					slog.Int("bytes", len(res.Body())),
				)
			}
			if !c.Finished() {
				if id, ok := c.Get(RequestIDKey); ok {
					attrs = append(attrs, slog.Any("request_id", id))
				}
			}

			level := config.Level
			if err != nil && level < slog.LevelWarn {
				level = slog.LevelWarn
			}
			config.Logger.LogAttrs(context.Background(), level, "request", attrs...)

			return res, err
		}
	}
}

// LoggerConfig defines configuration for the logger middleware.
type LoggerConfig struct {
	// Logger receives the records (default: slog.Default()).
	Logger *slog.Logger

	// Level of successful requests; failed ones are logged at least at Warn
	// (default: Info).
	Level slog.Level

	// SkipPaths are PATH_INFO values that are not logged (e.g. /health).
	SkipPaths []string
}

// DefaultLoggerConfig returns default logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Logger:    slog.Default(),
		Level:     slog.LevelInfo,
		SkipPaths: []string{},
	}
}

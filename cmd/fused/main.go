// Command fused serves the demo greeting application as a CGI program, an
// SCGI server or a plain HTTP server, depending on FUSE_MODE.
//
// Configuration is read from FUSE_* environment variables (see package
// config). Logs go to stderr as JSON; stdout carries the CGI response.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/watt-toolkit/fuse/config"
	"github.com/watt-toolkit/fuse/core"
	"github.com/watt-toolkit/fuse/host/cgi"
	"github.com/watt-toolkit/fuse/host/httpx"
	"github.com/watt-toolkit/fuse/host/scgi"
	"github.com/watt-toolkit/fuse/middleware"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fused: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	h := buildHandler(cfg, logger)

	if cfg.Mode == config.ModeCGI {
		return cgi.Run(h, cgi.WithLogger(logger), cgi.WithMaxBodySize(cfg.MaxBody))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		g.Go(func() error {
			return serveHTTP(ctx, logger, &http.Server{Addr: cfg.MetricsAddr, Handler: mux})
		})
	}

	switch cfg.Mode {
	case config.ModeSCGI:
		srv := &scgi.Server{
			Addr:         cfg.Addr,
			Handler:      h,
			Logger:       logger,
			MaxConns:     cfg.MaxConns,
			MaxBodySize:  cfg.MaxBody,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			Metrics:      scgi.NewMetrics(reg),
		}
		g.Go(func() error {
			return srv.ListenAndServe(ctx)
		})
	case config.ModeHTTP:
		srv := &http.Server{
			Addr: cfg.Addr,
			Handler: httpx.Handler(h,
				httpx.WithMaxBodySize(cfg.MaxBody),
				httpx.WithLogger(logger),
			),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}
		g.Go(func() error {
			return serveHTTP(ctx, logger, srv)
		})
	}

	err = g.Wait()
	logger.Info("fused stopped")
	return err
}

// buildHandler wraps the demo application in the standard middleware.
func buildHandler(cfg *config.Config, logger *slog.Logger) core.Handler {
	mw := []core.Middleware{
		middleware.RecoveryWithConfig(middleware.RecoveryConfig{
			PrintStack: true,
			Logger:     logger,
		}),
		middleware.RequestID(),
		middleware.LoggerWithConfig(middleware.LoggerConfig{
			Logger: logger,
			Level:  slog.LevelInfo,
		}),
	}
	if cfg.RateLimit > 0 {
		mw = append(mw, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit,
			Burst:             cfg.RateBurst,
		}))
	}
	return core.Chain(greeting, mw...)
}

// serveHTTP runs srv until ctx is cancelled, then shuts it down.
func serveHTTP(ctx context.Context, logger *slog.Logger, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", srv.Addr, err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

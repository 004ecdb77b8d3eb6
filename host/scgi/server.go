// Package scgi serves a core.Handler over SCGI: a web server front end
// forwards each request on its own connection as a netstring-framed block
// of CGI variables followed by the body, and reads a CGI response back.
//
// Unlike the cgi host the process is long-lived, so limiters and other
// middleware state persist across requests.
//
// Example:
//
//	srv := &scgi.Server{
//	    Addr:    "127.0.0.1:4000",
//	    Handler: core.Chain(app, middleware.Recovery(), middleware.Logger()),
//	}
//	err := srv.ListenAndServe(ctx)
package scgi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/watt-toolkit/fuse/core"
	"github.com/watt-toolkit/fuse/env"
)

// Defaults applied to zero Server fields.
const (
	DefaultAddr           = "127.0.0.1:4000"
	DefaultMaxConns       = 256
	DefaultMaxHeaderBytes = 64 << 10
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
)

// Server accepts SCGI connections and serves one request per connection.
type Server struct {
	// Addr is the TCP address to listen on (default: 127.0.0.1:4000).
	Addr string

	// Handler serves every request.
	Handler core.Handler

	// Logger receives connection-level records (default: slog.Default()).
	Logger *slog.Logger

	// MaxConns bounds concurrently served connections (default: 256).
	MaxConns int64

	// MaxHeaderBytes bounds the netstring header block (default: 64KB).
	MaxHeaderBytes int

	// MaxBodySize caps CONTENT_LENGTH (default: core.DefaultMaxBodySize).
	MaxBodySize int64

	// ReadTimeout and WriteTimeout bound a whole connection (default: 30s).
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Metrics, if set, records request outcomes.
	Metrics *Metrics

	// Options are passed to core.Serve after the body limit.
	Options []core.Option

	wg       sync.WaitGroup
	served   atomic.Uint64
	shutdown atomic.Bool
}

// Served returns the number of connections handled so far.
func (s *Server) Served() uint64 {
	return s.served.Load()
}

// ListenAndServe listens on s.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln
// and waits for connections in progress to finish. It returns nil after a
// cancellation and the accept error otherwise.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.Handler == nil {
		return errors.New("scgi: nil Handler")
	}
	logger := s.logger()

	maxConns := s.MaxConns
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	sem := semaphore.NewWeighted(maxConns)

	stop := context.AfterFunc(ctx, func() {
		s.shutdown.Store(true)
		ln.Close()
	})
	defer stop()
	defer s.wg.Wait()
	defer ln.Close()

	logger.Info("scgi server listening", slog.String("addr", ln.Addr().String()))

	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			sem.Release(1)
			if s.shutdown.Load() || ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Warn("accept failed", slog.String("error", err.Error()))
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer sem.Release(1)
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// handleConnection serves the single request carried by conn.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	s.served.Add(1)

	start := time.Now()
	s.Metrics.begin()

	readTimeout := s.ReadTimeout
	if readTimeout == 0 {
		readTimeout = DefaultReadTimeout
	}
	writeTimeout := s.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = DefaultWriteTimeout
	}
	conn.SetReadDeadline(start.Add(readTimeout))
	conn.SetWriteDeadline(start.Add(writeTimeout))

	id := uuid.NewString()
	logger := s.logger().With(
		slog.String("request_id", id),
		slog.String("remote", conn.RemoteAddr().String()),
	)

	outcome := s.serveConn(conn, logger)
	s.Metrics.end(outcome, time.Since(start).Seconds())
}

func (s *Server) serveConn(conn net.Conn, logger *slog.Logger) string {
	maxHeader := s.MaxHeaderBytes
	if maxHeader == 0 {
		maxHeader = DefaultMaxHeaderBytes
	}

	br := bufio.NewReader(conn)
	headers, err := ReadHeaders(br, maxHeader)
	if err != nil {
		logger.Warn("malformed scgi request", slog.String("error", err.Error()))
		if ferr := core.WriteFallback(conn, 400); ferr != nil {
			logger.Debug("write fallback", slog.String("error", ferr.Error()))
		}
		return OutcomeBadRequest
	}

	maxBody := s.MaxBodySize
	if maxBody == 0 {
		maxBody = core.DefaultMaxBodySize
	}
	opts := append([]core.Option{core.WithMaxBodySize(maxBody)}, s.Options...)

	err = core.Serve(s.Handler, br, env.FromMap(headers), conn, opts...)
	outcome := classify(err)
	switch outcome {
	case OutcomeOK:
	case OutcomeHandlerError:
		logger.Debug("handler error", slog.String("error", err.Error()))
	case OutcomePanic:
		var perr *core.PanicError
		errors.As(err, &perr)
		logger.Error("handler panic",
			slog.String("error", err.Error()),
			slog.String("stack", string(perr.Stack)),
		)
	default:
		logger.Warn("request failed",
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
	}
	return outcome
}

// classify maps a core.Serve error to a request outcome.
func classify(err error) string {
	var (
		herr *core.HandlerError
		perr *core.PanicError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &perr):
		return OutcomePanic
	case errors.As(err, &herr):
		return OutcomeHandlerError
	case errors.Is(err, core.ErrRequestTooLarge), errors.Is(err, core.ErrShortBody):
		return OutcomeBadRequest
	default:
		return OutcomeIOError
	}
}

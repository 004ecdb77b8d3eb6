// Package cgi runs a core.Handler as a CGI program: one process per
// request, meta-variables from the process environment, the body on stdin
// and the response on stdout.
//
// Example:
//
//	func main() {
//	    cgi.Main(hello)
//	}
package cgi

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/watt-toolkit/fuse/core"
	"github.com/watt-toolkit/fuse/env"
)

// Option configures Run.
type Option func(*runner)

type runner struct {
	in     io.Reader
	out    io.Writer
	vars   func() env.Table
	logger *slog.Logger
	core   []core.Option
}

// WithInput replaces os.Stdin as the request body stream.
func WithInput(r io.Reader) Option {
	return func(rn *runner) {
		rn.in = r
	}
}

// WithOutput replaces os.Stdout as the response stream.
func WithOutput(w io.Writer) Option {
	return func(rn *runner) {
		rn.out = w
	}
}

// WithEnv replaces the process environment with a fixed table.
func WithEnv(vars env.Table) Option {
	return func(rn *runner) {
		rn.vars = func() env.Table { return vars }
	}
}

// WithLogger sets the logger Main reports failures to. It must not write
// to stdout.
func WithLogger(l *slog.Logger) Option {
	return func(rn *runner) {
		if l != nil {
			rn.logger = l
		}
	}
}

// WithMaxBodySize caps CONTENT_LENGTH (see core.WithMaxBodySize).
func WithMaxBodySize(n int64) Option {
	return WithCoreOptions(core.WithMaxBodySize(n))
}

// WithCoreOptions passes options through to core.Serve.
func WithCoreOptions(opts ...core.Option) Option {
	return func(rn *runner) {
		rn.core = append(rn.core, opts...)
	}
}

func newRunner(opts []Option) *runner {
	rn := &runner{
		in:     os.Stdin,
		out:    os.Stdout,
		vars:   env.FromProcess,
		logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(rn)
	}
	return rn
}

// Run serves the single request this process was started for.
//
// The response is buffered and flushed once. Errors from the handler are
// returned after the error page has been written.
func Run(h core.Handler, opts ...Option) error {
	rn := newRunner(opts)
	return rn.run(h)
}

func (rn *runner) run(h core.Handler) error {
	bw := bufio.NewWriter(rn.out)
	err := core.Serve(h, rn.in, rn.vars(), bw, rn.core...)
	if ferr := bw.Flush(); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

// Main is Run for package main: failures are logged to stderr and the
// process exits with status 1.
func Main(h core.Handler, opts ...Option) {
	rn := newRunner(opts)
	if err := rn.run(h); err != nil {
		rn.logger.Error("cgi request failed",
			slog.String("script", os.Getenv(env.ScriptName)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
}

package core

import (
	"errors"
	"fmt"
	"io"
)

// Handler computes the Result of one request.
//
// Handlers read inputs and variables from the Context and may set headers
// or cookies on it. They must not call Finish; the host does that with the
// returned Result. A non-nil error is turned into an error page by the
// configured ErrorHandler.
//
// Example:
//
//	func greet(c *core.Context) (core.Result, error) {
//	    name, ok := c.Input("name")
//	    if !ok {
//	        return core.Redirect("/form.html"), nil
//	    }
//	    return core.Output("<p>Hello, " + html.EscapeString(name) + "</p>"), nil
//	}
type Handler func(*Context) (Result, error)

// Middleware wraps a Handler to provide cross-cutting functionality.
//
// Example:
//
//	func Timing() Middleware {
//	    return func(next Handler) Handler {
//	        return func(c *Context) (Result, error) {
//	            start := time.Now()
//	            res, err := next(c)
//	            c.SetHeader("X-Elapsed", time.Since(start).String())
//	            return res, err
//	        }
//	    }
//	}
type Middleware func(Handler) Handler

// ErrorHandler turns a handler error into the Result that is sent instead.
type ErrorHandler func(*Context, error) Result

// Chain wraps h with middleware. The first middleware is the outermost.
func Chain(h Handler, middleware ...Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// Errors mapped to CGI status codes by DefaultErrorHandler.
var (
	// ErrBadRequest is returned for malformed requests.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")

	// ErrMethodNotAllowed is returned when the request method is not supported.
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrRequestTooLarge is returned when CONTENT_LENGTH exceeds the body limit.
	ErrRequestTooLarge = errors.New("request too large")

	// ErrTooManyRequests is returned by rate limiting.
	ErrTooManyRequests = errors.New("too many requests")

	// ErrInternalServerError is returned for internal errors.
	ErrInternalServerError = errors.New("internal server error")
)

var (
	// ErrShortBody is returned when the input stream ends before
	// CONTENT_LENGTH bytes were read.
	ErrShortBody = fmt.Errorf("short request body: %w", io.ErrUnexpectedEOF)

	// ErrNoResult is returned when a handler produced neither an error nor
	// a Result.
	ErrNoResult = errors.New("handler returned no result")

	// ErrFinalized is the panic value raised when a Context is used after
	// Finish.
	ErrFinalized = errors.New("core: context used after finish")
)

// PanicError reports a panic recovered while serving a request.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic serving request: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error (e.g. ErrFinalized).
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// HandlerError wraps the error a Handler returned. Its error page has
// already been written when Serve returns it.
type HandlerError struct {
	Err error
}

func (e *HandlerError) Error() string {
	return "handler: " + e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// DefaultMaxBodySize caps CONTENT_LENGTH for POST requests.
const DefaultMaxBodySize = 10 << 20

// Option configures Begin and Serve.
type Option func(*options)

type options struct {
	maxBodySize  int64
	errorHandler ErrorHandler
}

func newOptions(opts []Option) options {
	o := options{
		maxBodySize:  DefaultMaxBodySize,
		errorHandler: DefaultErrorHandler,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxBodySize sets the largest accepted CONTENT_LENGTH. Zero or a
// negative value disables the limit.
func WithMaxBodySize(n int64) Option {
	return func(o *options) {
		o.maxBodySize = n
	}
}

// WithErrorHandler replaces DefaultErrorHandler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		if h != nil {
			o.errorHandler = h
		}
	}
}

// DefaultErrorHandler renders a minimal HTML error page with a CGI Status
// header derived from err.
func DefaultErrorHandler(c *Context, err error) Result {
	status := StatusForError(err)
	return c.Error(status, statusText(status))
}

// StatusForError maps the sentinel errors to status codes; anything else
// is a 500.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrShortBody):
		return 400
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrMethodNotAllowed):
		return 405
	case errors.Is(err, ErrRequestTooLarge):
		return 413
	case errors.Is(err, ErrTooManyRequests):
		return 429
	default:
		return 500
	}
}

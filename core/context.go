// Package core is the request/response engine.
//
// A Context is built once per request from an environment snapshot and the
// request's input stream, handed to a Handler, and finalized exactly once
// by writing the response to an output stream:
//
//	c, err := core.Begin(os.Stdin, env.FromProcess())
//	if err != nil {
//	    return err
//	}
//	res, err := handler(c)
//	...
//	return c.Finish(res, os.Stdout)
//
// Most programs use Serve (or a host package) instead of driving the
// lifecycle by hand.
//
// A Context is owned by one request and is not safe for concurrent use.
// Once finished, every accessor panics with ErrFinalized.
package core

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/watt-toolkit/fuse/env"
	"github.com/watt-toolkit/fuse/form"
	"github.com/watt-toolkit/fuse/pool/buffers"
)

// Context is the per-request engine: environment table, decoded input
// table and the response header table.
type Context struct {
	vars   env.Table
	inputs form.Pairs
	header Header

	// Request-scoped values set by middleware.
	store map[string]interface{}

	finished bool
	written  int
}

// Begin builds the Context for one request.
//
// For POST requests exactly CONTENT_LENGTH bytes are read from r and
// decoded as form data; any other method decodes QUERY_STRING and leaves
// r untouched.
func Begin(r io.Reader, vars env.Table, opts ...Option) (*Context, error) {
	o := newOptions(opts)

	inputs, err := ReadInput(r,
		vars.Value(env.RequestMethod),
		vars.Value(env.QueryString),
		vars.Value(env.ContentLength),
		o.maxBodySize,
	)
	if err != nil {
		return nil, err
	}
	return newContext(vars, inputs), nil
}

func newContext(vars env.Table, inputs form.Pairs) *Context {
	if inputs == nil {
		inputs = form.Pairs{}
	}
	return &Context{
		vars:   vars,
		inputs: inputs,
	}
}

// ReadInput decodes the request parameters.
//
// A missing, unparsable or non-positive contentLength reads nothing.
// maxBody <= 0 disables the size check.
func ReadInput(r io.Reader, method, query, contentLength string, maxBody int64) (form.Pairs, error) {
	if method != http.MethodPost {
		return form.Decode(query), nil
	}

	n, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil || n <= 0 {
		return form.Pairs{}, nil
	}
	if maxBody > 0 && n > maxBody {
		return nil, fmt.Errorf("%w: content length %d exceeds %d", ErrRequestTooLarge, n, maxBody)
	}
	if r == nil {
		return nil, fmt.Errorf("%w (no input stream, want %d bytes)", ErrShortBody, n)
	}

	body := make([]byte, n)
	got, err := io.ReadFull(r, body)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("%w (read %d of %d bytes)", ErrShortBody, got, n)
	case err != nil:
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return form.Decode(string(body)), nil
}

func (c *Context) ensureOpen() {
	if c.finished {
		panic(ErrFinalized)
	}
}

// Finished reports whether Finish has been called. It is the one method
// that is valid in both states.
func (c *Context) Finished() bool {
	return c.finished
}

// BytesWritten returns the size of the response written by Finish.
func (c *Context) BytesWritten() int {
	return c.written
}

// Var returns an environment variable by exact name.
func (c *Context) Var(name string) (string, bool) {
	c.ensureOpen()
	return c.vars.Get(name)
}

// Vars returns the environment table.
func (c *Context) Vars() env.Table {
	c.ensureOpen()
	return c.vars
}

// Method returns REQUEST_METHOD.
func (c *Context) Method() string {
	c.ensureOpen()
	return c.vars.Value(env.RequestMethod)
}

// Input returns the first input value named name.
func (c *Context) Input(name string) (string, bool) {
	c.ensureOpen()
	return c.inputs.Get(name)
}

// InputValues returns every input value named name.
func (c *Context) InputValues(name string) []string {
	c.ensureOpen()
	return c.inputs.Values(name)
}

// Inputs returns a copy of the decoded input table.
func (c *Context) Inputs() form.Pairs {
	c.ensureOpen()
	out := make(form.Pairs, len(c.inputs))
	copy(out, c.inputs)
	return out
}

// Cookie returns the first request cookie called name. An empty or unset
// HTTP_COOKIE means no cookies.
func (c *Context) Cookie(name string) (string, bool) {
	c.ensureOpen()
	raw, _ := c.vars.Get(env.HTTPCookie)
	return lookupCookie(raw, name)
}

// SetHeader replaces the first header called name or appends it.
func (c *Context) SetHeader(name, value string) {
	c.ensureOpen()
	if strings.EqualFold(name, HeaderSetCookie) {
		c.header.Append(name, value)
		return
	}
	c.header.Set(name, value)
}

// SetCookie adds a Set-Cookie header. Every cookie set during a request is
// sent; setting the same name twice sends both and the client keeps the
// last one.
func (c *Context) SetCookie(cookie Cookie) {
	c.ensureOpen()
	c.header.Append(HeaderSetCookie, cookie.String())
}

// DeleteCookie tells the client to discard cookie: the same name, domain
// and path with an empty value, already expired.
func (c *Context) DeleteCookie(cookie Cookie) {
	c.SetCookie(cookie.expired())
}

// Header returns a copy of the response header table.
func (c *Context) Header() Header {
	c.ensureOpen()
	return c.header.Clone()
}

// Set stores a request-scoped value, for passing data between middleware
// and handlers.
func (c *Context) Set(key string, value interface{}) {
	c.ensureOpen()
	if c.store == nil {
		c.store = make(map[string]interface{}, 4)
	}
	c.store[key] = value
}

// Get retrieves a value stored with Set.
func (c *Context) Get(key string) (interface{}, bool) {
	c.ensureOpen()
	v, ok := c.store[key]
	return v, ok
}

// StatusCode returns the status the response for res will carry: an
// explicit Status header wins, then 302 for redirects, then 200.
func (c *Context) StatusCode(res Result) int {
	c.ensureOpen()
	if s, ok := c.header.Get(HeaderStatus); ok {
		code, _, _ := strings.Cut(strings.TrimSpace(s), " ")
		if n, err := strconv.Atoi(code); err == nil {
			return n
		}
	}
	if res.IsRedirect() {
		return http.StatusFound
	}
	return http.StatusOK
}

// JSON encodes v as the response body and sets the JSON content type.
//
// Example:
//
//	return c.JSON(map[string]int{"count": n})
func (c *Context) JSON(v interface{}) (Result, error) {
	c.ensureOpen()

	buf := buffers.Acquire(0)
	defer buffers.Release(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return Result{}, fmt.Errorf("encode json: %w", err)
	}
	c.header.Set(HeaderContentType, ContentTypeJSON)
	return Output(buf.String()), nil
}

// Error sets a CGI Status header and returns a minimal HTML page for it.
func (c *Context) Error(status int, message string) Result {
	c.ensureOpen()

	text := statusText(status)
	c.header.Set(HeaderStatus, strconv.Itoa(status)+" "+text)
	c.header.Set(HeaderContentType, DefaultContentType)

	return Output("<html><head><title>" + strconv.Itoa(status) + " " + html.EscapeString(text) +
		"</title></head><body><h1>" + html.EscapeString(text) + "</h1><p>" +
		html.EscapeString(message) + "</p></body></html>\n")
}

// Finish writes the response for res to w and finalizes the Context.
//
// An Output result gets the default Content-type unless one was set; a
// Redirect result sets Location (in place if already present) and writes
// no body. The response is handed to w in a single Write. The Context is
// finalized even if the write fails.
func (c *Context) Finish(res Result, w io.Writer) error {
	c.ensureOpen()
	if res.IsZero() {
		return ErrNoResult
	}
	c.finished = true

	switch res.kind {
	case kindOutput:
		c.header.AddIfAbsent(HeaderContentType, DefaultContentType)
	case kindRedirect:
		c.header.Set(HeaderLocation, res.location)
	}

	buf := buffers.Acquire(len(res.body) + 64*len(c.header) + 2)
	defer buffers.Release(buf)

	_, _ = c.header.WriteTo(buf)
	buf.WriteString("\r\n")
	if res.kind == kindOutput {
		buf.WriteString(res.body)
	}

	n, err := w.Write(buf.Bytes())
	c.written = n
	if err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Status " + strconv.Itoa(status)
}

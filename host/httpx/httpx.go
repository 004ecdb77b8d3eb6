// Package httpx mounts a core.Handler in a net/http server or in one of
// the Gin, Echo or Fiber routers.
//
// Each request is translated into the CGI meta-variables a web server
// would pass to a CGI program, served by core.Serve into a buffer, and the
// CGI response is translated back: the Status header becomes the status
// code, Location without Status becomes a 302, and every other header is
// copied (repeated Set-Cookie headers included).
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.Handle("/app/", httpx.Handler(app, httpx.WithScriptName("/app")))
//	http.ListenAndServe(":8080", mux)
package httpx

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/watt-toolkit/fuse/core"
	"github.com/watt-toolkit/fuse/env"
	"github.com/watt-toolkit/fuse/pool/buffers"
)

// ServerSoftware is reported in SERVER_SOFTWARE.
const ServerSoftware = "fuse"

// ErrInvalidResponse is returned by WriteResponse when the CGI header
// block cannot be parsed. Nothing has been written to the client then.
var ErrInvalidResponse = errors.New("httpx: invalid cgi response")

// Option configures Handler.
type Option func(*handler)

// WithScriptName sets SCRIPT_NAME. The prefix is stripped from the URL
// path to form PATH_INFO.
func WithScriptName(prefix string) Option {
	return func(h *handler) {
		h.scriptName = strings.TrimSuffix(prefix, "/")
	}
}

// WithDocumentRoot sets DOCUMENT_ROOT.
func WithDocumentRoot(dir string) Option {
	return func(h *handler) {
		h.documentRoot = dir
	}
}

// WithMaxBodySize caps the request body (default: core.DefaultMaxBodySize).
func WithMaxBodySize(n int64) Option {
	return func(h *handler) {
		h.maxBody = n
	}
}

// WithLogger sets the logger handler failures are reported to
// (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCoreOptions passes options through to core.Serve.
func WithCoreOptions(opts ...core.Option) Option {
	return func(h *handler) {
		h.core = append(h.core, opts...)
	}
}

type handler struct {
	next         core.Handler
	scriptName   string
	documentRoot string
	maxBody      int64
	logger       *slog.Logger
	core         []core.Option
}

// Handler returns an http.Handler that serves every request with h.
func Handler(h core.Handler, opts ...Option) http.Handler {
	hd := &handler{
		next:    h,
		maxBody: core.DefaultMaxBodySize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(hd)
	}
	return hd
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vars := Vars(r, h.scriptName)
	if h.documentRoot != "" {
		vars["DOCUMENT_ROOT"] = h.documentRoot
	}

	body, err := h.body(r, vars)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrRequestTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	out := buffers.Acquire(0)
	defer buffers.Release(out)

	opts := append([]core.Option{core.WithMaxBodySize(h.maxBody)}, h.core...)
	if err := core.Serve(h.next, body, env.FromMap(vars), out, opts...); err != nil {
		h.report(r, err)
	}

	if err := WriteResponse(w, out); err != nil {
		if !errors.Is(err, ErrInvalidResponse) {
			h.logger.Debug("write response", slog.String("error", err.Error()))
			return
		}
		h.logger.Error("invalid cgi response",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	}
}

// body returns the input stream for core.Serve. Bodies of unknown length
// are read up front so CONTENT_LENGTH can be set.
func (h *handler) body(r *http.Request, vars map[string]string) (io.Reader, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if r.ContentLength >= 0 {
		return r.Body, nil
	}

	limit := h.maxBody
	if limit <= 0 {
		limit = 1<<63 - 2
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, core.ErrRequestTooLarge
	}
	vars[env.ContentLength] = strconv.Itoa(len(data))
	return bytes.NewReader(data), nil
}

func (h *handler) report(r *http.Request, err error) {
	var (
		herr *core.HandlerError
		perr *core.PanicError
	)
	switch {
	case errors.As(err, &perr):
		h.logger.Error("handler panic",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("stack", string(perr.Stack)),
		)
	case errors.As(err, &herr):
		h.logger.Debug("handler error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	default:
		h.logger.Warn("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// Vars builds the CGI meta-variables for r. scriptName is stripped from
// the URL path to form PATH_INFO.
func Vars(r *http.Request, scriptName string) map[string]string {
	host, port := splitHostPort(r.Host)
	if port == "" {
		port = "80"
		if r.TLS != nil {
			port = "443"
		}
	}
	remoteAddr, _ := splitHostPort(r.RemoteAddr)

	vars := map[string]string{
		"GATEWAY_INTERFACE":    "CGI/1.1",
		"SERVER_SOFTWARE":      ServerSoftware,
		"SERVER_NAME":          host,
		"SERVER_PORT":          port,
		"REQUEST_METHOD":       r.Method,
		"QUERY_STRING":         r.URL.RawQuery,
		"SCRIPT_NAME":          scriptName,
		"PATH_INFO":            strings.TrimPrefix(r.URL.Path, scriptName),
		"REMOTE_ADDR":          remoteAddr,
		"REMOTE_HOST":          remoteAddr,
		"HTTP_HOST":            r.Host,
		"HTTP_COOKIE":          strings.Join(r.Header.Values("Cookie"), "; "),
		"HTTP_ACCEPT":          r.Header.Get("Accept"),
		"HTTP_ACCEPT_LANGUAGE": r.Header.Get("Accept-Language"),
		"HTTP_CONNECTION":      r.Header.Get("Connection"),
		"HTTP_USER_AGENT":      r.UserAgent(),
		"HTTP_UA_COLOR":        r.Header.Get("UA-Color"),
		"HTTP_UA_CPU":          r.Header.Get("UA-CPU"),
		"HTTP_UA_OS":           r.Header.Get("UA-OS"),
		"HTTP_UA_PIXELS":       r.Header.Get("UA-Pixels"),
	}
	if r.ContentLength > 0 {
		vars[env.ContentLength] = strconv.FormatInt(r.ContentLength, 10)
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		vars[env.ContentType] = ct
	}
	if user, _, ok := r.BasicAuth(); ok {
		vars["AUTH_TYPE"] = "Basic"
		vars["REMOTE_USER"] = user
	}
	return vars
}

func splitHostPort(hostport string) (string, string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, ""
	}
	return host, port
}

// WriteResponse copies a CGI response read from r onto w.
func WriteResponse(w http.ResponseWriter, r io.Reader) error {
	br := bufio.NewReader(r)
	tp := textproto.NewReader(br)

	headers, err := tp.ReadMIMEHeader()
	if err != nil && !(errors.Is(err, io.EOF) && len(headers) > 0) {
		return fmt.Errorf("%w: cannot read headers: %v", ErrInvalidResponse, err)
	}

	code := 0
	h := w.Header()
	for k, vs := range headers {
		if k == core.HeaderStatus {
			c, _, _ := strings.Cut(strings.TrimSpace(vs[0]), " ")
			code, err = strconv.Atoi(c)
			if err != nil || code < 100 || code > 999 {
				return fmt.Errorf("%w: cannot decode status %q", ErrInvalidResponse, vs[0])
			}
			continue
		}
		for _, v := range vs {
			h.Add(k, v)
		}
	}

	if code == 0 {
		code = http.StatusOK
		if h.Get(core.HeaderLocation) != "" {
			code = http.StatusFound
		}
	}
	w.WriteHeader(code)
	if _, err := io.Copy(w, br); err != nil {
		return fmt.Errorf("copy body: %w", err)
	}
	return nil
}

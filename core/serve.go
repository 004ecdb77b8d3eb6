package core

import (
	"errors"
	"io"
	"runtime/debug"

	"github.com/watt-toolkit/fuse/env"
)

// Serve runs one request end to end: Begin, h, Finish.
//
// A handler error (or a handler that returns no Result) is replaced by the
// ErrorHandler's page and then returned as a *HandlerError, so hosts can
// log it. A failed
// Begin writes a fallback page when the failure is the client's fault
// (oversized or truncated body). A panic in h is recovered into a
// *PanicError; if nothing was written yet a 500 page is sent first.
// Write errors are returned as is and nothing else is attempted.
func Serve(h Handler, r io.Reader, vars env.Table, w io.Writer, opts ...Option) (err error) {
	o := newOptions(opts)

	c, err := Begin(r, vars, opts...)
	if err != nil {
		if errors.Is(err, ErrRequestTooLarge) || errors.Is(err, ErrShortBody) {
			if ferr := WriteFallback(w, StatusForError(err)); ferr != nil {
				return errors.Join(err, ferr)
			}
		}
		return err
	}

	defer func() {
		if v := recover(); v != nil {
			perr := &PanicError{Value: v, Stack: debug.Stack()}
			err = perr
			if !c.Finished() {
				if ferr := WriteFallback(w, 500); ferr != nil {
					err = errors.Join(perr, ferr)
				}
			}
		}
	}()

	res, herr := h(c)
	if herr == nil && res.IsZero() {
		herr = ErrNoResult
	}
	if herr != nil {
		res = o.errorHandler(c, herr)
		if res.IsZero() {
			res = DefaultErrorHandler(c, herr)
		}
	}

	if err := c.Finish(res, w); err != nil {
		return err
	}
	if herr != nil {
		return &HandlerError{Err: herr}
	}
	return nil
}

// WriteFallback writes a bare error page for status. Hosts use it when a
// request was aborted before a Context could finish.
func WriteFallback(w io.Writer, status int) error {
	c := newContext(env.Table{}, nil)
	return c.Finish(c.Error(status, "The request could not be completed."), w)
}

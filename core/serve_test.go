package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watt-toolkit/fuse/env"
)

func TestServe(t *testing.T) {
	h := func(c *Context) (Result, error) {
		name := InputOr(c, "name", "world")
		c.SetCookie(Cookie{Name: "seen", Value: "1"})
		return Output("hello " + name), nil
	}

	var out bytes.Buffer
	err := Serve(h, nil, env.FromMap(map[string]string{"QUERY_STRING": "name=ada"}), &out)
	require.NoError(t, err)

	assert.Equal(t,
		"Set-Cookie: seen=1\r\nContent-type: text/html; charset=ISO-8859-1\r\n\r\nhello ada",
		out.String())
}

func TestServeHandlerError(t *testing.T) {
	tests := []struct {
		err    error
		status string
	}{
		{errors.New("boom"), "Status: 500 Internal Server Error"},
		{ErrNotFound, "Status: 404 Not Found"},
		{ErrBadRequest, "Status: 400 Bad Request"},
		{ErrMethodNotAllowed, "Status: 405 Method Not Allowed"},
		{ErrTooManyRequests, "Status: 429 Too Many Requests"},
	}

	for _, tt := range tests {
		h := func(c *Context) (Result, error) {
			c.SetHeader("Content-type", "application/json")
			return Result{}, tt.err
		}

		var out bytes.Buffer
		err := Serve(h, nil, env.Table{}, &out)
		assert.ErrorIs(t, err, tt.err)
		var herr *HandlerError
		assert.ErrorAs(t, err, &herr)
		// The handler's Content-type keeps its position; Status is appended.
		assert.True(t, strings.HasPrefix(out.String(), "Content-type: text/html; charset=ISO-8859-1\r\n"+tt.status+"\r\n\r\n<html>"),
			"got %q", out.String())
	}
}

func TestServeNoResult(t *testing.T) {
	h := func(c *Context) (Result, error) {
		return Result{}, nil
	}

	var out bytes.Buffer
	err := Serve(h, nil, env.Table{}, &out)
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Contains(t, out.String(), "Status: 500")
}

func TestServeCustomErrorHandler(t *testing.T) {
	h := func(c *Context) (Result, error) {
		return Result{}, ErrNotFound
	}
	onError := func(c *Context, err error) Result {
		return Redirect("/404.html")
	}

	var out bytes.Buffer
	err := Serve(h, nil, env.Table{}, &out, WithErrorHandler(onError))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Location: /404.html\r\n\r\n", out.String())
}

func TestServePanic(t *testing.T) {
	h := func(c *Context) (Result, error) {
		panic("kaboom")
	}

	var out bytes.Buffer
	err := Serve(h, nil, env.Table{}, &out)

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "kaboom", perr.Value)
	assert.NotEmpty(t, perr.Stack)
	assert.True(t, strings.HasPrefix(out.String(), "Status: 500 Internal Server Error\r\n"))
}

func TestServeHandlerFinishingItselfIsAViolation(t *testing.T) {
	var out bytes.Buffer
	h := func(c *Context) (Result, error) {
		_ = c.Finish(Output("early"), &out)
		return Output("late"), nil
	}

	err := Serve(h, nil, env.Table{}, &out)
	assert.ErrorIs(t, err, ErrFinalized)
	assert.True(t, strings.HasSuffix(out.String(), "early"), "no fallback after a finished response")
}

func TestServeBodyTooLarge(t *testing.T) {
	called := false
	h := func(c *Context) (Result, error) {
		called = true
		return Output(""), nil
	}
	vars := env.FromMap(map[string]string{"REQUEST_METHOD": "POST", "CONTENT_LENGTH": "100"})

	var out bytes.Buffer
	err := Serve(h, strings.NewReader(strings.Repeat("x", 100)), vars, &out, WithMaxBodySize(10))
	assert.ErrorIs(t, err, ErrRequestTooLarge)
	assert.False(t, called)
	assert.True(t, strings.HasPrefix(out.String(), "Status: 413 Request Entity Too Large\r\n"))
}

func TestServeWriteError(t *testing.T) {
	h := func(c *Context) (Result, error) {
		return Output("x"), nil
	}
	err := Serve(h, nil, env.Table{}, failingWriter{})
	assert.Error(t, err)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(c *Context) (Result, error) {
				order = append(order, name+">")
				res, err := next(c)
				order = append(order, "<"+name)
				return res, err
			}
		}
	}
	h := Chain(func(c *Context) (Result, error) {
		order = append(order, "handler")
		return Output(""), nil
	}, mw("a"), mw("b"))

	var out bytes.Buffer
	require.NoError(t, Serve(h, nil, env.Table{}, &out))
	assert.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, order)
}

func TestWriteFallback(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteFallback(&out, 503))
	assert.True(t, strings.HasPrefix(out.String(), "Status: 503 Service Unavailable\r\nContent-type: text/html; charset=ISO-8859-1\r\n\r\n"))
}

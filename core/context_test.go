package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watt-toolkit/fuse/env"
	"github.com/watt-toolkit/fuse/form"
)

func newTestContext(t *testing.T, vars map[string]string, body string) *Context {
	t.Helper()
	c, err := Begin(strings.NewReader(body), env.FromMap(vars))
	require.NoError(t, err)
	return c
}

// failingWriter fails every write, like a reset connection.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestBeginGETDecodesQueryString(t *testing.T) {
	r := strings.NewReader("must not be read")
	c, err := Begin(r, env.FromMap(map[string]string{
		"REQUEST_METHOD": "GET",
		"QUERY_STRING":   "a=1&b=hello+world",
	}))
	require.NoError(t, err)

	assert.Equal(t, form.Pairs{{Name: "a", Value: "1"}, {Name: "b", Value: "hello world"}}, c.Inputs())
	assert.Equal(t, len("must not be read"), r.Len(), "input stream must be untouched")
}

func TestBeginPOSTReadsExactlyContentLength(t *testing.T) {
	r := strings.NewReader("a=1&b=2xyz")
	c, err := Begin(r, env.FromMap(map[string]string{
		"REQUEST_METHOD": "POST",
		"CONTENT_LENGTH": "5",
		"QUERY_STRING":   "ignored=1",
	}))
	require.NoError(t, err)

	assert.Equal(t, form.Pairs{{Name: "a", Value: "1"}, {Name: "b", Value: ""}}, c.Inputs())

	rest, _ := io.ReadAll(r)
	assert.Equal(t, "=2xyz", string(rest))
}

func TestBeginPOSTUnparsableLengthReadsNothing(t *testing.T) {
	for _, length := range []string{"", "abc", "-4", "0", "5 "} {
		r := strings.NewReader("a=1")
		c, err := Begin(r, env.FromMap(map[string]string{
			"REQUEST_METHOD": "POST",
			"CONTENT_LENGTH": length,
		}))
		require.NoError(t, err, "length %q", length)
		assert.Empty(t, c.Inputs(), "length %q", length)
		assert.Equal(t, 3, r.Len(), "length %q", length)
	}
}

func TestBeginPOSTShortBody(t *testing.T) {
	_, err := Begin(strings.NewReader("a=1"), env.FromMap(map[string]string{
		"REQUEST_METHOD": "POST",
		"CONTENT_LENGTH": "10",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShortBody)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestBeginPOSTNilReader(t *testing.T) {
	_, err := Begin(nil, env.FromMap(map[string]string{
		"REQUEST_METHOD": "POST",
		"CONTENT_LENGTH": "3",
	}))
	assert.ErrorIs(t, err, ErrShortBody)
}

func TestBeginPOSTTooLarge(t *testing.T) {
	r := strings.NewReader("a=1")
	_, err := Begin(r, env.FromMap(map[string]string{
		"REQUEST_METHOD": "POST",
		"CONTENT_LENGTH": "3",
	}), WithMaxBodySize(2))
	assert.ErrorIs(t, err, ErrRequestTooLarge)
	assert.Equal(t, 3, r.Len(), "body must not be read when over the limit")
}

func TestBeginReadError(t *testing.T) {
	r := io.MultiReader(strings.NewReader("a="), iotestErrReader{})
	_, err := Begin(r, env.FromMap(map[string]string{
		"REQUEST_METHOD": "POST",
		"CONTENT_LENGTH": "5",
	}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrShortBody)
	assert.Contains(t, err.Error(), "read request body")
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestVarLookup(t *testing.T) {
	c := newTestContext(t, map[string]string{"HTTP_USER_AGENT": "curl/8"}, "")

	v, ok := c.Var("HTTP_USER_AGENT")
	require.True(t, ok)
	assert.Equal(t, "curl/8", v)

	v, ok = c.Var("REMOTE_USER")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = c.Var("NOT_A_CGI_VAR")
	assert.False(t, ok)

	assert.Equal(t, len(env.Names), c.Vars().Len())
}

func TestInputFirstMatch(t *testing.T) {
	c := newTestContext(t, map[string]string{"QUERY_STRING": "t=1&t=2"}, "")

	v, ok := c.Input("t")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, []string{"1", "2"}, c.InputValues("t"))

	_, ok = c.Input("missing")
	assert.False(t, ok)
}

func TestInputsIsACopy(t *testing.T) {
	c := newTestContext(t, map[string]string{"QUERY_STRING": "a=1"}, "")

	inputs := c.Inputs()
	inputs[0].Value = "changed"

	v, _ := c.Input("a")
	assert.Equal(t, "1", v)
}

func TestCookie(t *testing.T) {
	c := newTestContext(t, map[string]string{"HTTP_COOKIE": "id=42; theme=dark"}, "")

	v, ok := c.Cookie("id")
	require.True(t, ok)
	assert.Equal(t, "42", v)

	_, ok = c.Cookie("session")
	assert.False(t, ok)

	noCookies := newTestContext(t, nil, "")
	_, ok = noCookies.Cookie("id")
	assert.False(t, ok)
}

func TestSetCookieAppends(t *testing.T) {
	c := newTestContext(t, nil, "")
	c.SetCookie(Cookie{Name: "a", Value: "1"})
	c.SetCookie(Cookie{Name: "b", Value: "2", Path: "/"})
	c.SetHeader("Set-Cookie", "c=3")

	assert.Equal(t, []string{"a=1", "b=2; Path=/", "c=3"}, c.Header().Values(HeaderSetCookie))
}

func TestDeleteCookie(t *testing.T) {
	c := newTestContext(t, nil, "")
	c.DeleteCookie(Cookie{Name: "id", Value: "42", Path: "/"})

	v, ok := c.Header().Get(HeaderSetCookie)
	require.True(t, ok)
	assert.Equal(t, "id=; Path=/; Expires=Thu, 01 Jan 1970 00:00:00 GMT", v)
}

func TestFinishOutputAddsDefaultContentType(t *testing.T) {
	c := newTestContext(t, nil, "")
	c.SetHeader("X-Powered-By", "fuse")

	var out bytes.Buffer
	require.NoError(t, c.Finish(Output("<p>hi</p>"), &out))

	assert.Equal(t,
		"X-Powered-By: fuse\r\nContent-type: text/html; charset=ISO-8859-1\r\n\r\n<p>hi</p>",
		out.String())
	assert.True(t, c.Finished())
	assert.Equal(t, out.Len(), c.BytesWritten())
}

func TestFinishOutputKeepsProgramContentType(t *testing.T) {
	c := newTestContext(t, nil, "")
	c.SetHeader("Content-Type", "text/plain")

	var out bytes.Buffer
	require.NoError(t, c.Finish(Output("plain"), &out))

	assert.Equal(t, "Content-Type: text/plain\r\n\r\nplain", out.String())
}

func TestFinishOutputEmptyBody(t *testing.T) {
	c := newTestContext(t, nil, "")

	var out bytes.Buffer
	require.NoError(t, c.Finish(Output(""), &out))
	assert.Equal(t, "Content-type: text/html; charset=ISO-8859-1\r\n\r\n", out.String())
}

func TestFinishRedirect(t *testing.T) {
	c := newTestContext(t, nil, "")

	var out bytes.Buffer
	require.NoError(t, c.Finish(Redirect("http://example.com/x"), &out))

	assert.Equal(t, "Location: http://example.com/x\r\n\r\n", out.String())
}

func TestFinishRedirectKeepsLocationPosition(t *testing.T) {
	c := newTestContext(t, nil, "")
	c.SetHeader("Location", "/old")
	c.SetHeader("X-After", "1")

	var out bytes.Buffer
	require.NoError(t, c.Finish(Redirect("/new"), &out))

	assert.Equal(t, "Location: /new\r\nX-After: 1\r\n\r\n", out.String())
}

func TestFinishZeroResult(t *testing.T) {
	c := newTestContext(t, nil, "")

	var out bytes.Buffer
	err := c.Finish(Result{}, &out)
	assert.ErrorIs(t, err, ErrNoResult)
	assert.False(t, c.Finished())
	assert.Zero(t, out.Len())
}

func TestFinishWriteError(t *testing.T) {
	c := newTestContext(t, nil, "")

	err := c.Finish(Output("x"), failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write response")
	assert.True(t, c.Finished())
}

func TestAccessorsAfterFinishPanic(t *testing.T) {
	c := newTestContext(t, map[string]string{"QUERY_STRING": "a=1"}, "")
	require.NoError(t, c.Finish(Output(""), io.Discard))

	calls := map[string]func(){
		"Var":          func() { c.Var("PATH") },
		"Vars":         func() { c.Vars() },
		"Input":        func() { c.Input("a") },
		"Inputs":       func() { c.Inputs() },
		"InputAs":      func() { InputAs[int](c, "a") },
		"Cookie":       func() { c.Cookie("id") },
		"SetHeader":    func() { c.SetHeader("X", "1") },
		"SetCookie":    func() { c.SetCookie(Cookie{Name: "a"}) },
		"DeleteCookie": func() { c.DeleteCookie(Cookie{Name: "a"}) },
		"Header":       func() { c.Header() },
		"JSON":         func() { _, _ = c.JSON(1) },
		"Error":        func() { c.Error(500, "x") },
		"Finish":       func() { _ = c.Finish(Output(""), io.Discard) },
	}
	for name, call := range calls {
		assert.PanicsWithError(t, ErrFinalized.Error(), call, name)
	}

	assert.NotPanics(t, func() { c.Finished() })
}

func TestJSON(t *testing.T) {
	c := newTestContext(t, nil, "")

	res, err := c.JSON(map[string]int{"count": 3})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, c.Finish(res, &out))
	assert.Equal(t, "Content-type: application/json\r\n\r\n{\"count\":3}\n", out.String())
}

func TestJSONUnsupportedValue(t *testing.T) {
	c := newTestContext(t, nil, "")

	_, err := c.JSON(make(chan int))
	assert.Error(t, err)
	assert.False(t, c.Header().Has(HeaderContentType))
}

func TestError(t *testing.T) {
	c := newTestContext(t, nil, "")
	c.SetHeader("Content-type", "application/json")

	res := c.Error(404, "no <such> page")
	assert.Contains(t, res.Body(), "404 Not Found")
	assert.Contains(t, res.Body(), "no &lt;such&gt; page")
	assert.Equal(t, 404, c.StatusCode(res))

	ct, _ := c.Header().Get(HeaderContentType)
	assert.Equal(t, DefaultContentType, ct)
}

func TestStatusCode(t *testing.T) {
	c := newTestContext(t, nil, "")
	assert.Equal(t, 200, c.StatusCode(Output("")))
	assert.Equal(t, 302, c.StatusCode(Redirect("/")))

	c.SetHeader("Status", "201 Created")
	assert.Equal(t, 201, c.StatusCode(Output("")))
}

func TestStore(t *testing.T) {
	c := newTestContext(t, nil, "")

	_, ok := c.Get("user")
	assert.False(t, ok)

	c.Set("user", "ada")
	v, ok := c.Get("user")
	require.True(t, ok)
	assert.Equal(t, "ada", v)
}

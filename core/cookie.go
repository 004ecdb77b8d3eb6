package core

import (
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Cookie is an outbound cookie, rendered into one Set-Cookie header.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time // zero means a session cookie
	Secure   bool
	HTTPOnly bool
}

// String renders the Set-Cookie value:
//
//	name=value; Domain=d; Path=p; Expires=Thu, 01 Jan 1970 00:00:00 GMT; Secure
//
// Unset attributes are omitted.
func (c Cookie) String() string {
	var b strings.Builder
	b.Grow(len(c.Name) + len(c.Value) + 64)
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(http.TimeFormat))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	return b.String()
}

// expired returns the deletion form of c: same scope, empty value,
// expiry at the Unix epoch.
func (c Cookie) expired() Cookie {
	c.Value = ""
	c.Expires = time.Unix(0, 0)
	return c
}

// lookupCookie finds the first cookie called name in a Cookie request
// header value ("a=1; b=2").
func lookupCookie(raw, name string) (string, bool) {
	if raw == "" {
		return "", false
	}

	var h fasthttp.RequestHeader
	h.Set(fasthttp.HeaderCookie, raw)

	var (
		value string
		found bool
	)
	h.VisitAllCookie(func(k, v []byte) {
		if !found && string(k) == name {
			value = string(v)
			found = true
		}
	})
	return value, found
}

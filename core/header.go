package core

import (
	"io"
	"strings"
)

// Header names the engine itself writes.
const (
	HeaderContentType = "Content-type"
	HeaderLocation    = "Location"
	HeaderSetCookie   = "Set-Cookie"
	HeaderStatus      = "Status"
)

// Content-type values.
const (
	DefaultContentType = "text/html; charset=ISO-8859-1"
	ContentTypeJSON    = "application/json"
	ContentTypeText    = "text/plain; charset=ISO-8859-1"
)

// Field is one response header line.
type Field struct {
	Name  string
	Value string
}

// Header is the ordered table of response headers.
//
// Names compare case-insensitively. Set never creates a duplicate name;
// Append does, and is what Set-Cookie uses.
type Header []Field

// Get returns the value of the first field named name.
func (h Header) Get(name string) (string, bool) {
	if i := h.index(name); i >= 0 {
		return h[i].Value, true
	}
	return "", false
}

// Values returns the value of every field named name, in order.
func (h Header) Values(name string) []string {
	var values []string
	name = sanitize(name)
	for i := range h {
		if strings.EqualFold(h[i].Name, name) {
			values = append(values, h[i].Value)
		}
	}
	return values
}

// Has reports whether a field named name exists.
func (h Header) Has(name string) bool {
	return h.index(name) >= 0
}

// Len returns the number of fields.
func (h Header) Len() int {
	return len(h)
}

// Set replaces the first field named name in place, or appends one.
func (h *Header) Set(name, value string) {
	f := Field{Name: sanitize(name), Value: sanitize(value)}
	if i := h.index(f.Name); i >= 0 {
		(*h)[i] = f
		return
	}
	*h = append(*h, f)
}

// AddIfAbsent appends name only when no field with that name exists.
func (h *Header) AddIfAbsent(name, value string) {
	name = sanitize(name)
	if h.index(name) >= 0 {
		return
	}
	*h = append(*h, Field{Name: name, Value: sanitize(value)})
}

// Append adds a field at the end, even if the name is already present.
func (h *Header) Append(name, value string) {
	*h = append(*h, Field{Name: sanitize(name), Value: sanitize(value)})
}

// Clone returns a copy that shares nothing with h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	copy(out, h)
	return out
}

// WriteTo writes every field as "Name: Value\r\n" in table order.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i := range h {
		n, err := io.WriteString(w, h[i].Name+": "+h[i].Value+"\r\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// index matches the stored form of name, so lookups see through sanitize.
func (h Header) index(name string) int {
	name = sanitize(name)
	for i := range h {
		if strings.EqualFold(h[i].Name, name) {
			return i
		}
	}
	return -1
}

// sanitize keeps a value on a single header line.
func sanitize(s string) string {
	if strings.IndexAny(s, "\r\n") < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
}

// Package form decodes application/x-www-form-urlencoded data.
//
// The decoder is deliberately lenient: it never fails, keeps every
// '&'-delimited segment (including empty ones) and copies malformed
// percent escapes through literally.
//
// Example:
//
//	pairs := form.Decode("q=hello+world&page=2")
//	q, _ := pairs.Get("q") // "hello world"
package form

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// Pair is a single decoded name/value entry.
type Pair struct {
	Name  string
	Value string
}

// Pairs is an ordered sequence of decoded entries.
//
// Names are not unique: repeated form fields keep their original order.
type Pairs []Pair

// Decode splits raw on '&' and each segment on its first '='.
//
// A segment without '=' yields an empty value. Both halves are unescaped
// with Unescape. An empty input yields no pairs.
func Decode(raw string) Pairs {
	if raw == "" {
		return Pairs{}
	}

	pairs := make(Pairs, 0, strings.Count(raw, "&")+1)
	for {
		segment, rest, more := strings.Cut(raw, "&")
		name, value, _ := strings.Cut(segment, "=")
		pairs = append(pairs, Pair{
			Name:  Unescape(name),
			Value: Unescape(value),
		})
		if !more {
			return pairs
		}
		raw = rest
	}
}

// Unescape decodes '+' to space and %XX to the byte 0xXX.
//
// A '%' that is not followed by two hex digits is kept as is.
func Unescape(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if strings.IndexByte(s, '%') < 0 {
		return s
	}
	return string(fasthttp.AppendUnquotedArg(make([]byte, 0, len(s)), []byte(s)))
}

// Escape is the inverse of Unescape: spaces become '+' and reserved bytes
// are percent-encoded.
func Escape(s string) string {
	return string(fasthttp.AppendQuotedArg(make([]byte, 0, len(s)+8), []byte(s)))
}

// Get returns the value of the first pair named name.
func (p Pairs) Get(name string) (string, bool) {
	for i := range p {
		if p[i].Name == name {
			return p[i].Value, true
		}
	}
	return "", false
}

// Values returns every value stored under name, in order.
func (p Pairs) Values(name string) []string {
	var values []string
	for i := range p {
		if p[i].Name == name {
			values = append(values, p[i].Value)
		}
	}
	return values
}

// Encode renders the pairs back into a query string.
func (p Pairs) Encode() string {
	var b strings.Builder
	for i := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(p[i].Name))
		b.WriteByte('=')
		b.WriteString(Escape(p[i].Value))
	}
	return b.String()
}

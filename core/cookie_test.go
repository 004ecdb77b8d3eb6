package core

import (
	"testing"
	"time"
)

func TestCookieString(t *testing.T) {
	expires := time.Date(2030, time.March, 4, 5, 6, 7, 0, time.UTC)

	tests := []struct {
		name   string
		cookie Cookie
		want   string
	}{
		{"bare", Cookie{Name: "id", Value: "42"}, "id=42"},
		{
			"all attributes",
			Cookie{Name: "id", Value: "42", Domain: "example.com", Path: "/app", Expires: expires, Secure: true},
			"id=42; Domain=example.com; Path=/app; Expires=Mon, 04 Mar 2030 05:06:07 GMT; Secure",
		},
		{"path only", Cookie{Name: "theme", Value: "dark", Path: "/"}, "theme=dark; Path=/"},
		{"http only", Cookie{Name: "s", Value: "x", HTTPOnly: true}, "s=x; HttpOnly"},
		{
			"expires converted to GMT",
			Cookie{Name: "a", Value: "b", Expires: expires.In(time.FixedZone("X", 3600))},
			"a=b; Expires=Mon, 04 Mar 2030 05:06:07 GMT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cookie.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCookieExpired(t *testing.T) {
	c := Cookie{Name: "id", Value: "42", Path: "/", Domain: "example.com"}
	got := c.expired().String()

	want := "id=; Domain=example.com; Path=/; Expires=Thu, 01 Jan 1970 00:00:00 GMT"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLookupCookie(t *testing.T) {
	tests := []struct {
		raw    string
		name   string
		want   string
		wantOK bool
	}{
		{"id=42; theme=dark", "id", "42", true},
		{"id=42; theme=dark", "theme", "dark", true},
		{"id=42;theme=dark", "theme", "dark", true},
		{"a=1; a=2", "a", "1", true},
		{"id=42", "missing", "", false},
		{"", "id", "", false},
		{"empty=; id=7", "empty", "", true},
	}

	for _, tt := range tests {
		got, ok := lookupCookie(tt.raw, tt.name)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("lookupCookie(%q, %q) = %q, %v; expected %q, %v", tt.raw, tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

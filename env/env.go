// Package env snapshots the CGI meta-variables a request is described by.
//
// A Table always holds exactly one entry per recognized name, in the order
// of Names. Variables missing from the source are recorded as "".
package env

import "os"

// Names lists the recognized variables in snapshot order.
var Names = [...]string{
	"DOCUMENT_ROOT",
	"AUTH_TYPE",
	"GATEWAY_INTERFACE",
	"SERVER_SOFTWARE",
	"SERVER_NAME",
	"REQUEST_METHOD",
	"SERVER_ADMIN",
	"SERVER_PORT",
	"QUERY_STRING",
	"CONTENT_LENGTH",
	"CONTENT_TYPE",
	"REMOTE_USER",
	"REMOTE_IDENT",
	"REMOTE_ADDR",
	"REMOTE_HOST",
	"TZ",
	"PATH",
	"PATH_INFO",
	"PATH_TRANSLATED",
	"SCRIPT_NAME",
	"SCRIPT_FILENAME",
	"HTTP_COOKIE",
	"HTTP_CONNECTION",
	"HTTP_ACCEPT_LANGUAGE",
	"HTTP_ACCEPT",
	"HTTP_HOST",
	"HTTP_UA_COLOR",
	"HTTP_UA_CPU",
	"HTTP_UA_OS",
	"HTTP_UA_PIXELS",
	"HTTP_USER_AGENT",
}

// Frequently used names.
const (
	RequestMethod = "REQUEST_METHOD"
	QueryString   = "QUERY_STRING"
	ContentLength = "CONTENT_LENGTH"
	ContentType   = "CONTENT_TYPE"
	HTTPCookie    = "HTTP_COOKIE"
	RemoteAddr    = "REMOTE_ADDR"
	ScriptName    = "SCRIPT_NAME"
	PathInfo      = "PATH_INFO"
)

// LookupFunc resolves a variable; it has the shape of os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// Var is a single table entry.
type Var struct {
	Name  string
	Value string
}

// Table is an immutable snapshot. The zero value is an empty table.
type Table struct {
	vars []Var
}

// Snapshot reads every name in Names through lookup.
func Snapshot(lookup LookupFunc) Table {
	vars := make([]Var, len(Names))
	for i, name := range Names {
		value, _ := lookup(name)
		vars[i] = Var{Name: name, Value: value}
	}
	return Table{vars: vars}
}

// FromProcess snapshots the process environment.
func FromProcess() Table {
	return Snapshot(os.LookupEnv)
}

// FromMap snapshots a map, as delivered by SCGI or built from an
// http.Request. Keys outside Names are ignored.
func FromMap(m map[string]string) Table {
	return Snapshot(func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	})
}

// Get looks a variable up by exact name. It reports false only for names
// the table does not recognize.
func (t Table) Get(name string) (string, bool) {
	for i := range t.vars {
		if t.vars[i].Name == name {
			return t.vars[i].Value, true
		}
	}
	return "", false
}

// Value is Get without the presence flag.
func (t Table) Value(name string) string {
	v, _ := t.Get(name)
	return v
}

// Len returns the number of entries.
func (t Table) Len() int {
	return len(t.vars)
}

// All returns a copy of the entries in snapshot order.
func (t Table) All() []Var {
	out := make([]Var, len(t.vars))
	copy(out, t.vars)
	return out
}

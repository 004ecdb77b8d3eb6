package core

type resultKind uint8

const (
	kindNone resultKind = iota
	kindOutput
	kindRedirect
)

// Result is the terminal value of a request: either a body to emit or a
// redirect target. The zero Result is neither and is rejected by Finish.
type Result struct {
	kind     resultKind
	body     string
	location string
}

// Output emits body after the header block.
func Output(body string) Result {
	return Result{kind: kindOutput, body: body}
}

// Redirect sends a Location header and no body.
func Redirect(url string) Result {
	return Result{kind: kindRedirect, location: url}
}

// IsZero reports whether r carries no outcome.
func (r Result) IsZero() bool {
	return r.kind == kindNone
}

// IsRedirect reports whether r is a redirect.
func (r Result) IsRedirect() bool {
	return r.kind == kindRedirect
}

// Body returns the payload of an Output result.
func (r Result) Body() string {
	return r.body
}

// Location returns the target of a Redirect result.
func (r Result) Location() string {
	return r.location
}

package main

import (
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/watt-toolkit/fuse/core"
	"github.com/watt-toolkit/fuse/env"
)

const visitsCookie = "visits"

// greeting is the demo application. PATH_INFO selects the page:
//
//	/          form plus greeting, counts visits in a cookie
//	/api       the same data as JSON
//	/forget    clears the visit cookie and redirects to /
func greeting(c *core.Context) (core.Result, error) {
	vars := c.Vars()
	script := vars.Value(env.ScriptName)

	switch strings.TrimSuffix(vars.Value(env.PathInfo), "/") {
	case "":
	case "/api":
		return greetingJSON(c)
	case "/forget":
		c.DeleteCookie(core.Cookie{Name: visitsCookie, Path: "/"})
		return core.Redirect(script + "/"), nil
	default:
		return core.Result{}, core.ErrNotFound
	}

	// An empty method is a run from the command line and reads as GET.
	switch c.Method() {
	case "", "GET", "HEAD", "POST":
	default:
		return core.Result{}, core.ErrMethodNotAllowed
	}

	visits := countVisit(c)
	name := strings.TrimSpace(core.InputOr(c, "name", ""))
	if name == "" {
		name = "stranger"
	}

	var b strings.Builder
	b.WriteString("<html><head><title>fuse</title></head><body>\n")
	b.WriteString("<h1>Hello, " + html.EscapeString(name) + "!</h1>\n")
	b.WriteString("<p>Visit number " + strconv.Itoa(visits) + ".</p>\n")
	b.WriteString(`<form method="post" action="` + html.EscapeString(script) + `/">` +
		`<input name="name"> <input type="submit" value="Greet"></form>` + "\n")
	b.WriteString(`<p><a href="` + html.EscapeString(script) + `/forget">Forget me</a></p>` + "\n")
	b.WriteString("</body></html>\n")
	return core.Output(b.String()), nil
}

func greetingJSON(c *core.Context) (core.Result, error) {
	visits := countVisit(c)
	return c.JSON(map[string]interface{}{
		"name":   core.InputOr(c, "name", "stranger"),
		"visits": visits,
		"inputs": c.Inputs(),
	})
}

// countVisit reads the visit counter cookie and sets the incremented one.
func countVisit(c *core.Context) int {
	visits := 0
	if raw, ok := c.Cookie(visitsCookie); ok {
		visits, _ = strconv.Atoi(raw)
	}
	visits++
	c.SetCookie(core.Cookie{
		Name:     visitsCookie,
		Value:    strconv.Itoa(visits),
		Path:     "/",
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HTTPOnly: true,
	})
	return visits
}

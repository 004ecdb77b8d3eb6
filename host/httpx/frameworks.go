package httpx

import (
	"github.com/gin-gonic/gin"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/labstack/echo/v4"

	"github.com/watt-toolkit/fuse/core"
)

// Gin mounts h as a Gin handler.
//
// Example:
//
//	r := gin.New()
//	r.Any("/app/*path", httpx.Gin(app, httpx.WithScriptName("/app")))
func Gin(h core.Handler, opts ...Option) gin.HandlerFunc {
	return gin.WrapH(Handler(h, opts...))
}

// Echo mounts h as an Echo handler.
//
// Example:
//
//	e := echo.New()
//	e.Any("/app/*", httpx.Echo(app, httpx.WithScriptName("/app")))
func Echo(h core.Handler, opts ...Option) echo.HandlerFunc {
	return echo.WrapHandler(Handler(h, opts...))
}

// Fiber mounts h as a Fiber handler. Requests go through Fiber's net/http
// adaptor, so bodies are fully buffered by fasthttp first.
//
// Example:
//
//	app := fiber.New()
//	app.All("/app/*", httpx.Fiber(handler, httpx.WithScriptName("/app")))
func Fiber(h core.Handler, opts ...Option) fiber.Handler {
	return adaptor.HTTPHandler(Handler(h, opts...))
}

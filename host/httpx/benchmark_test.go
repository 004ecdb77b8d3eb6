package httpx

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gofiber/fiber/v2"
	"github.com/labstack/echo/v4"

	"github.com/watt-toolkit/fuse/core"
)

// ============================================================================
// Mounted handler vs native framework handlers
// ============================================================================
// The fuse handler pays for the CGI round trip (variables in, response
// text out). These benchmarks put a number on that against handlers written
// directly for each framework.
//
// Run with: go test -bench=. -benchmem ./host/httpx
// ============================================================================

func benchHandler(c *core.Context) (core.Result, error) {
	name, _ := c.Input("name")
	return core.Output("hello " + name), nil
}

func BenchmarkHandler_NetHTTP(b *testing.B) {
	h := Handler(benchHandler)
	req := httptest.NewRequest("GET", "/hello?name=bench", nil)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkHandler_NetHTTPPost(b *testing.B) {
	h := Handler(benchHandler)
	body := "name=" + strings.Repeat("x", 1024)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("POST", "/hello", strings.NewReader(body))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkHandler_GinMounted(b *testing.B) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/hello", Gin(benchHandler))
	req := httptest.NewRequest("GET", "/hello?name=bench", nil)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkHandler_GinNative(b *testing.B) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/hello", func(c *gin.Context) {
		c.String(200, "hello "+c.Query("name"))
	})
	req := httptest.NewRequest("GET", "/hello?name=bench", nil)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkHandler_EchoMounted(b *testing.B) {
	e := echo.New()
	e.GET("/hello", Echo(benchHandler))
	req := httptest.NewRequest("GET", "/hello?name=bench", nil)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		e.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkHandler_FiberMounted(b *testing.B) {
	app := fiber.New()
	app.Get("/hello", Fiber(benchHandler))
	req := httptest.NewRequest("GET", "/hello?name=bench", nil)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = app.Test(req, -1)
	}
}

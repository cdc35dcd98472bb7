package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"

	"NarraPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narrapulse_http_panics_total",
			Help: "Handler panics recovered by the HTTP server",
		},
		[]string{"route"},
	)

	panicRegOnce sync.Once
)

// Recover converts a handler panic into a 500 response instead of tearing
// down the connection. The panic value and stack go to the application
// logger, and the recovery is counted per route.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	panicRegOnce.Do(func() {
		prometheus.MustRegister(httpPanicsTotal)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				route := c.Path()
				if route == "" {
					route = c.Request().URL.Path
				}
				httpPanicsTotal.WithLabelValues(route).Inc()
				l.Error("handler panic recovered",
					logger.String("method", c.Request().Method),
					logger.String("route", route),
					logger.String("panic", fmt.Sprintf("%v", r)),
					logger.String("stack", string(debug.Stack())),
				)
				_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":  http.StatusInternalServerError,
					"message": "internal server error",
				})
			}()
			return next(c)
		}
	}
}

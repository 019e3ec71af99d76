package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	bodyLimit      = "64K"
	rateLimitIdle  = 3 * time.Minute
	healthPath     = "/healthz"
	metricsPath    = "/metrics"
	apiGroupPrefix = "/api"
)

func (s *Server) initEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.requestLogger)

	e.GET(healthPath, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET(metricsPath, echo.WrapHandler(s.Metrics.Handler()))

	api := e.Group(apiGroupPrefix, middleware.BodyLimit(bodyLimit))
	if s.Config.RateLimit > 0 {
		api.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.Config.RateLimit),
				Burst:     s.Config.RateBurst,
				ExpiresIn: rateLimitIdle,
			}),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
		}))
	}

	api.POST("/verify", s.postVerify)
	api.POST("/verify/:chain", s.postVerifyFamily)
	api.GET("/did/:did", s.getDID)
	api.GET("/challenge", s.getChallenge)

	s.Echo = e
}

// requestLogger attaches a request scoped zerolog logger to the request
// context and logs one line per request.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		logger := s.logger.With().
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Logger()
		c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

		if err := next(c); err != nil {
			c.Error(err)
		}

		path := c.Path()
		if path == "" {
			path = req.URL.Path
		}
		event := logger.Info()
		if strings.HasPrefix(path, metricsPath) || path == healthPath {
			event = logger.Debug()
		}
		event.
			Str("method", req.Method).
			Str("path", path).
			Str("remote_ip", c.RealIP()).
			Int("status", c.Response().Status).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
		return nil
	}
}

func zerologFromContext(c echo.Context) *zerolog.Logger {
	return zerolog.Ctx(c.Request().Context())
}

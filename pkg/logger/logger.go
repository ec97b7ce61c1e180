// Package logger provides the zap logger used across the service and the
// request-logging middleware for the HTTP server.
package logger

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is the header and echo context key carrying the request ID.
const RequestIDKey = "X-Request-ID"

// New builds a zap logger for the given environment. "production" yields
// structured JSON logs; anything else yields human-readable development logs.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}

// FromContext returns the request-scoped logger set by Middleware, or base
// annotated with the request ID when the middleware has not run.
func FromContext(c echo.Context, base *zap.Logger) *zap.Logger {
	if l, ok := c.Get("logger").(*zap.Logger); ok {
		return l
	}
	requestID := c.Request().Header.Get(RequestIDKey)
	if requestID == "" {
		requestID = "unknown"
	}
	return base.With(zap.String("request_id", requestID))
}

// Middleware returns an echo middleware that attaches a request-scoped logger
// to the context and logs each request after it completes.
func Middleware(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get(RequestIDKey)
			if requestID == "" {
				requestID = c.Response().Header().Get(RequestIDKey)
			}
			ctxLogger := base.With(zap.String("request_id", requestID))
			c.Set("logger", ctxLogger)

			err := next(c)

			fields := []zapcore.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
				ctxLogger.Error("request failed", fields...)
			} else {
				ctxLogger.Info("request completed", fields...)
			}
			return err
		}
	}
}

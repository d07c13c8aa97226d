// Package ginadapter liga o throttle ao pipeline de requisições do gin.
package ginadapter

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/JeanGrijp/request-throttle/internal/adapters/http/middleware"
	"github.com/JeanGrijp/request-throttle/internal/core/ports"
)

const (
	requestIDContextKey     = "request_id"
	requestLoggerContextKey = "request_logger"
	requestIDHeader         = "X-Request-ID"
)

// NewThrottleMiddleware é a versão gin de middleware.NewThrottleMiddleware.
// Uma requisição rejeitada é abortada antes dos handlers seguintes.
func NewThrottleMiddleware(throttler ports.Throttler, opts middleware.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		scoped := opts
		scoped.Logger = RequestLogger(c, opts.Logger)
		if !middleware.Check(c.Writer, c.Request, throttler, scoped) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestContext marca cada requisição com um ID e um logger próprio e registra
// o resultado quando a cadeia retorna.
func RequestContext(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = xid.New().String()
		}
		c.Set(requestIDContextKey, reqID)
		c.Writer.Header().Set(requestIDHeader, reqID)

		logger := base.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Set(requestLoggerContextKey, logger)

		start := time.Now()
		c.Next()

		logger.Info().
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request completed")
	}
}

func RequestLogger(c *gin.Context, fallback zerolog.Logger) zerolog.Logger {
	if value, ok := c.Get(requestLoggerContextKey); ok {
		if logger, ok := value.(zerolog.Logger); ok {
			return logger
		}
	}
	return fallback
}

func RequestID(c *gin.Context) string {
	if value, ok := c.Get(requestIDContextKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

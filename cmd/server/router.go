package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/JeanGrijp/request-throttle/internal/adapters/http/ginadapter"
	"github.com/JeanGrijp/request-throttle/internal/adapters/http/handlers"
	httpMiddleware "github.com/JeanGrijp/request-throttle/internal/adapters/http/middleware"
	"github.com/JeanGrijp/request-throttle/internal/config"
	"github.com/JeanGrijp/request-throttle/internal/core/ports"
)

// newHandler monta o pipeline HTTP. O throttle só é registrado quando está
// habilitado; a checagem acontece aqui uma vez, não a cada requisição.
func newHandler(cfg config.Config, throttler ports.Throttler, logger zerolog.Logger) http.Handler {
	opts := httpMiddleware.Options{
		FailOpen:          cfg.Throttle.FailOpen,
		TrustProxyHeaders: cfg.Throttle.TrustProxyHeaders,
		StoreTimeout:      cfg.StoreTimeout(),
		Logger:            logger,
	}
	enabled := throttler != nil && throttler.IsEnabled()

	if cfg.Server.Router == config.RouterGin {
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery(), ginadapter.RequestContext(logger))
		if enabled {
			r.Use(ginadapter.NewThrottleMiddleware(throttler, opts))
		}
		r.GET("/ping", gin.WrapF(handlers.PingHandler))
		r.GET("/health", gin.WrapF(handlers.HealthHandler(enabled)))
		return r
	}

	r := chi.NewRouter()
	if enabled {
		r.Use(httpMiddleware.NewThrottleMiddleware(throttler, opts))
	}
	r.Get("/ping", handlers.PingHandler)
	r.Get("/health", handlers.HealthHandler(enabled))
	return r
}

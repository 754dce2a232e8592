// Package httpapi exposes conversions over HTTP: submission, cancellation,
// a server-sent progress feed and format discovery.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/progress"
)

// Service is the conversion capability the handlers drive.
// *progress.Coordinator implements it.
type Service interface {
	Submit(ctx context.Context, req domain.ConversionRequest) (*progress.Task, error)
	Cancel(id string) bool
	Active() []string
	Broadcaster() *progress.Broadcaster
}

// Catalog describes what the server can convert.
type Catalog interface {
	SupportedFormats() []string
	GetConversionInfo(ctx context.Context) string
}

// Setup configures the gin engine with all routes and middleware.
func Setup(svc Service, catalog Catalog, log zerolog.Logger) *gin.Engine {
	h := &Handler{svc: svc, catalog: catalog, log: log.With().Str("component", "http").Logger()}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(h.log))

	r.GET("/health", h.Health)
	r.GET("/formats", h.Formats)
	r.GET("/info", h.Info)

	r.POST("/convert", h.Convert)
	r.GET("/conversions", h.List)
	r.DELETE("/conversions/:id", h.Cancel)
	r.GET("/progress", h.Progress)
	return r
}

// RequestID injects an X-Request-ID header into the request and response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger logs each HTTP request with method, path, status, and latency.
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		requestID, _ := c.Get("request_id")
		log.Debug().
			Interface("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Package api serves the map's JSON API and realtime stream with gin.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/hotspot"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators behind the API. Geocoder, Locator and Stream
// may be nil.
type Deps struct {
	Session       *hotspot.Session
	Store         *hotspot.Store
	Geocoder      domain.Geocoder
	Locator       domain.UserLocator
	Stream        http.Handler
	PhotoMaxBytes int64
	Logger        *slog.Logger
}

// Server is the public API listener.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the API server on addr.
func NewServer(addr string, d Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(d),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: d.Logger,
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("api server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewRouter builds the gin engine with every API route.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))

	h := &handlers{deps: d}
	api := r.Group("/api")
	{
		api.GET("/hotspots", h.listVisible)
		api.GET("/hotspots/nearby", h.listNearby)
		api.GET("/hotspots/bounds", h.listInBounds)
		api.POST("/hotspots", h.create)
		api.PATCH("/hotspots/:id", h.update)
		api.DELETE("/hotspots/:id", h.delete)
		api.POST("/photos", h.uploadPhoto)
		api.GET("/shelters", h.listShelters)
		api.GET("/geocode/reverse", h.reverseGeocode)
		api.GET("/location", h.locate)
		if d.Stream != nil {
			api.GET("/stream", gin.WrapH(d.Stream))
		}
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("api request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// Package api is the terminal-facing HTTP surface: snapshot reads,
// lifecycle operations, metrics, and a websocket change feed.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/config"
	"example.com/tavolo/possync/internal/api/handlers"
	"example.com/tavolo/possync/internal/cache"
	"example.com/tavolo/possync/internal/catalog"
	"example.com/tavolo/possync/internal/lifecycle"
	"example.com/tavolo/possync/internal/metrics"
	"example.com/tavolo/possync/internal/notify"
	"example.com/tavolo/possync/internal/search"
	"example.com/tavolo/possync/internal/tracing"
)

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	hub        *Hub
}

// NewServer creates a new HTTP server. history may be nil, leaving the
// history search route unregistered.
func NewServer(cfg config.Config, manager *lifecycle.Manager, admin *catalog.Manager, store *cache.Store, collector *metrics.Metrics, tracer tracing.Tracer, bus *notify.Bus, history *search.ElasticClient) *Server {
	server := &Server{
		config: cfg,
		hub:    NewHub(bus),
	}

	router := server.setupRouter(manager, admin, store, collector, tracer, history)
	server.router = router

	server.httpServer = &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router,
	}

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter(manager *lifecycle.Manager, admin *catalog.Manager, store *cache.Store, collector *metrics.Metrics, tracer tracing.Tracer, history *search.ElasticClient) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())

	ordersHandler := handlers.NewOrdersHandler(manager, store, tracer)
	ordersHandler.RegisterRoutes(router)

	menuHandler := handlers.NewMenuHandler(store)
	menuHandler.RegisterRoutes(router)

	adminHandler := handlers.NewAdminHandler(admin)
	adminHandler.RegisterRoutes(router)

	metricsHandler := handlers.NewMetricsHandler(collector, tracer)
	metricsHandler.RegisterRoutes(router)

	if history != nil {
		historyHandler := handlers.NewHistoryHandler(history)
		historyHandler.RegisterRoutes(router)
	}

	router.GET("/ws", s.hub.HandleWS)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

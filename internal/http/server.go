package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	mutationHTTP "github.com/kiwimedia/agentdesk/internal/mutation/http"
	requestHTTP "github.com/kiwimedia/agentdesk/internal/request/http"
)

// RouterConfig carries the handlers and middleware options for the API
// router.
type RouterConfig struct {
	MutationHandler     *mutationHTTP.MutationHandler
	SubscriptionHandler *requestHTTP.SubscriptionHandler
	CORSEnabled         bool
	CORSAllowOrigins    string
}

// Server is the API HTTP server.
type Server struct {
	server *http.Server
	router *gin.Engine
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates a new HTTP server. The database handle is only used by
// the readiness probe.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the gin router with all middleware and routes. The v1
// API group requires the identity headers set by the authentication gateway;
// the health endpoints do not.
func (s *Server) SetupRouter(cfg RouterConfig) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CorrelationMiddleware())
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	v1.Use(ActorMiddleware(s.logger))

	mutations := v1.Group("/mutations")
	mutations.POST("", cfg.MutationHandler.EnqueueHandler)
	mutations.GET("", cfg.MutationHandler.ListHandler)
	mutations.GET("/summary", cfg.MutationHandler.SummaryHandler)
	mutations.GET("/:id", cfg.MutationHandler.GetHandler)
	mutations.POST("/:id/retry", cfg.MutationHandler.RetryHandler)
	mutations.POST("/:id/cancel", cfg.MutationHandler.CancelHandler)

	subscriptions := v1.Group("/subscriptions")
	subscriptions.POST("", cfg.SubscriptionHandler.SubmitHandler)
	subscriptions.GET("/requests/:request_id", cfg.SubscriptionHandler.StatusHandler)

	s.router = router
	s.server.Handler = router
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can do useful work: the
// database must be reachable.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
			ready = false
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}

// GetHandler returns the configured router, or nil when SetupRouter has not
// been called. Tests use it to serve the API through httptest.
func (s *Server) GetHandler() http.Handler {
	if s.router == nil {
		return nil
	}
	return s.router
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start(ctx context.Context) error {
	if s.router != nil {
		s.server.Handler = s.router
	}

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

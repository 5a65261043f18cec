// Package api exposes search, resolution and graph queries over HTTP
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siherrmann/schematic/config"
	"github.com/siherrmann/schematic/helper"
	"github.com/siherrmann/schematic/model"
)

// Service is what the handlers need from the search core
type Service interface {
	SearchWithConfig(ctx context.Context, query string, projectID uuid.UUID, config model.SearchConfig) (*model.SearchResponse, error)
	Context(ctx context.Context, query string, projectID uuid.UUID, config model.SearchConfig) (*model.ContextBundle, error)
	Resolve(ctx context.Context, projectID uuid.UUID, tag string) (*model.Equipment, error)
	FuzzyMatch(ctx context.Context, projectID uuid.UUID, tag string, threshold float64) (*uuid.UUID, float64)
	GetRelationships(ctx context.Context, equipmentID uuid.UUID, direction model.Direction) (*model.Relationships, error)
	GetUpstreamChain(ctx context.Context, equipmentID uuid.UUID, maxDepth int) ([]uuid.UUID, error)
	LoadEquipment(ctx context.Context, ids []uuid.UUID) ([]*model.Equipment, error)
	Classify(query string) model.QueryType
	Ping(ctx context.Context) error
}

// Server is the HTTP transport of a Service
type Server struct {
	engine   *gin.Engine
	service  Service
	defaults model.SearchConfig
	config   config.ServerConfig
	logger   *slog.Logger
}

// NewServer creates the router with all routes and middleware.
// defaults fill the search parameters a request leaves out.
func NewServer(service Service, defaults model.SearchConfig, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:   gin.New(),
		service:  service,
		defaults: defaults,
		config:   cfg,
		logger:   logger,
	}

	s.engine.Use(Recovery(logger))
	s.engine.Use(RequestID())
	s.engine.Use(Metrics())
	s.engine.Use(Logger(logger))

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	{
		projects := v1.Group("/projects/:pid")
		{
			projects.POST("/search", s.Search)
			projects.POST("/context", s.Context)
			projects.GET("/resolve", s.Resolve)
			projects.GET("/fuzzy", s.FuzzyMatch)
		}

		equipment := v1.Group("/equipment/:id")
		{
			equipment.GET("/relationships", s.Relationships)
			equipment.GET("/upstream", s.Upstream)
		}

		v1.POST("/classify", s.Classify)
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", slog.String("address", s.config.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return helper.NewError("listen", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return helper.NewError("shutdown", err)
	}
	return nil
}

// writeError maps the error taxonomy onto status codes. Internal errors are logged, not returned.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, helper.ErrInvalidInput):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, helper.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, helper.ErrConflict):
		fail(c, http.StatusConflict, err.Error())
	default:
		s.logger.Error("Request failed", slog.String("path", c.Request.URL.Path), slog.String("error", err.Error()))
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}

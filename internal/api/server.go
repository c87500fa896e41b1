// Package api exposes stored requests and pipeline operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vipul43/gigwatch/internal/models"
	"github.com/vipul43/gigwatch/internal/repository"
)

type RequestQuerier interface {
	Query(ctx context.Context, q repository.RequestQuery) ([]models.FreelanceRequest, int64, error)
	StatsByCategory(ctx context.Context) (map[string]int64, error)
}

type CategoryReader interface {
	ListActive(ctx context.Context) ([]models.Category, error)
	Get(ctx context.Context, slug string) (*models.Category, error)
}

type JobReader interface {
	Last(ctx context.Context) (*models.JobLog, error)
	Recent(ctx context.Context, limit int) ([]models.JobLog, error)
}

type RunTrigger interface {
	Trigger(trigger string) error
}

type Server struct {
	requests   RequestQuerier
	categories CategoryReader
	jobs       JobReader
	trigger    RunTrigger
	adminToken string
	logger     *slog.Logger
	engine     *gin.Engine
}

func NewServer(requests RequestQuerier, categories CategoryReader, jobs JobReader, trigger RunTrigger, adminToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		requests:   requests,
		categories: categories,
		jobs:       jobs,
		trigger:    trigger,
		adminToken: adminToken,
		logger:     logger.With("component", "api"),
		engine:     gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.logRequests())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	s.engine.HEAD("/healthz", s.health)

	api := s.engine.Group("/api")
	api.GET("/requests", s.listRequests)
	api.GET("/stats", s.stats)
	api.GET("/categories", s.listCategories)

	admin := api.Group("", s.requireAdmin())
	admin.GET("/jobs/last", s.lastJob)
	admin.GET("/jobs", s.recentJobs)
	admin.POST("/jobs/run", s.runJob)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down within
// shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

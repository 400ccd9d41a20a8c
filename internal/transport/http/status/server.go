// Package status exposes the resilience subsystem over HTTP: metric
// snapshots, recovery state, manual sync/consistency triggers and the
// audit trail.
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bastion/internal/logger"
	"bastion/internal/resilience"
	"bastion/internal/store/audit"

	"github.com/gin-gonic/gin"
)

type Server struct {
	addr   string
	router *gin.Engine
	srv    *http.Server
}

// ServerConfig describes the status server dependencies. Audit may be
// nil when the audit store is disabled.
type ServerConfig struct {
	Addr         string
	InstanceID   string
	Recovery     *resilience.RecoveryManager
	Orchestrator *resilience.Orchestrator
	Sync         *resilience.Synchronizer
	Checker      *resilience.Checker
	Audit        *audit.Store
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Recovery == nil || cfg.Orchestrator == nil {
		return nil, errors.New("status server requires recovery manager and orchestrator")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9982"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	registerRoutes(api, cfg)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("status server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("http %s %s status=%d elapsed=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Truncate(time.Millisecond))
	}
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return limit
}

package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"document_notifier/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server is the admin HTTP API: contact mappings, global CC, party search, health and
// Prometheus metrics.
type Server struct {
	router *gin.Engine
	addr   string
	admin  *app.AdminService
	log    *logrus.Entry
}

func NewServer(addr, jwtSecret string, admin *app.AdminService, log *logrus.Entry) (*Server, error) {
	if jwtSecret == "" {
		return nil, errors.New("admin API requires a JWT secret")
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{router: router, addr: addr, admin: admin, log: log}
	s.setupRoutes(JWTAuth(jwtSecret))
	return s, nil
}

func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "document-notifier"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		mappings := api.Group("/mappings/:kind")
		{
			mappings.GET("", s.handleListMappings)
			mappings.POST("", s.handleSaveMapping)
			mappings.DELETE("/:id", s.handleDeleteMapping)
		}
		api.GET("/global-cc", s.handleGetGlobalCC)
		api.PUT("/global-cc/:kind", s.handleSetGlobalCC)
		api.GET("/parties/:kind", s.handleSearchParties)
	}
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("admin API listen on %s: %w", s.addr, err)
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("Admin API listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.WithError(err).Warn("Admin API shutdown error")
	}
	s.log.Info("Admin API stopped")
	return nil
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if op := operator(c); op != "" {
			entry = entry.WithField("operator", op)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Admin API request failed")
			return
		}
		entry.Debug("Admin API request")
	}
}

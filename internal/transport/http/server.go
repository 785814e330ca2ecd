// Package enginehttp exposes the decision engine over a minimal JSON API.
package enginehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quorum/internal/logger"
	"quorum/internal/service"
)

// Server hosts the /api/engine routes plus a health probe.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the server dependencies.
type ServerConfig struct {
	Addr    string
	Service *service.DecisionService
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("engine http server requires a decision service")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9985"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewRouter(cfg.Service).Register(router.Group("/api/engine"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}

// requestLogger traces every API call. Server errors get promoted to warn so
// they surface without debug logging enabled.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		url := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			url += "?" + q
		}
		status := c.Writer.Status()
		line := func(format string, v ...any) { logger.Debugf(format, v...) }
		if status >= http.StatusInternalServerError {
			line = logger.Warnf
		}
		line("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, url, status, c.ClientIP(), time.Since(start))
	}
}

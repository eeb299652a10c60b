package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alparslanahmed/digitnorm/internal/config"
	"github.com/alparslanahmed/digitnorm/internal/logger"
	"github.com/alparslanahmed/digitnorm/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	serverShutdownTimeout = 5 * time.Second
	readHeaderTimeout     = 10 * time.Second
)

// HealthChecker is implemented by classifier backends that can be probed.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

type Option func(*Server)

// WithHealthChecker reports the classifier backend on /health.
func WithHealthChecker(h HealthChecker) Option {
	return func(s *Server) {
		s.health = h
	}
}

// Server exposes a Recognizer over HTTP.
type Server struct {
	cfg        config.ServerConfig
	recognizer *service.Recognizer
	metrics    *Metrics
	health     HealthChecker
	log        logger.Logger
	router     *gin.Engine
}

func New(cfg config.ServerConfig, rec *service.Recognizer, log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	s := &Server{
		cfg:        cfg,
		recognizer: rec,
		metrics:    NewMetrics(),
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(s.log))
	if s.cfg.CORS {
		router.Use(CORSMiddleware())
	}

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := router.Group("/v1")
	v1.Use(BodySizeLimiter(s.cfg.MaxUploadBytes))
	v1.POST("/predict", s.handlePredict)
	v1.POST("/normalize", s.handleNormalize)
	return router
}

// Handler returns the router for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

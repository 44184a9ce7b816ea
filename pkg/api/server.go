package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/api/docs"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
)

// Ensure docs are initialized
var _ = docs.SwaggerInfo

const shutdownCtxTimeout = 10 * time.Second

// Server represents the API HTTP server.
type Server struct {
	config  *config.APIConfig
	handler *Handler
	server  *http.Server
	log     *logger.Logger
}

// NewServer creates a new API server.
func NewServer(cfg *config.APIConfig, chains StatusProvider, entities EntityCatalog, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithComponent(common.ComponentAPI)

	handler := NewHandler(chains, entities, log)

	return &Server{
		config:  cfg,
		handler: handler,
		server: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      newRouter(cfg, handler, log),
			ReadTimeout:  cfg.ReadTimeout.Duration,
			WriteTimeout: cfg.WriteTimeout.Duration,
			IdleTimeout:  cfg.IdleTimeout.Duration,
		},
		log: log,
	}
}

func newRouter(cfg *config.APIConfig, handler *Handler, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("GET /api/v1/status", handler.GetStatus)

	mux.HandleFunc("GET /api/v1/entities", handler.ListEntities)
	mux.HandleFunc("GET /api/v1/entities/{name}", handler.FindEntities)
	mux.HandleFunc("GET /api/v1/entities/{name}/connection", handler.GetConnection)

	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
	))

	var h http.Handler = mux
	h = RecoveryMiddleware(log)(h)
	h = LoggingMiddleware(log)(h)

	if cfg.CORS.Enabled {
		h = CORSMiddleware(cfg.CORS.AllowedOrigins)(h)
	}

	return h
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("API server is disabled")
		return nil
	}

	s.log.Infof("Starting API server on %s", s.config.ListenAddress)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownCtxTimeout)
	defer cancel()

	s.log.Info("Shutting down API server...")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown error: %w", err)
	}

	s.log.Info("API server stopped")
	return nil
}

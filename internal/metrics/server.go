package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChainState is a point-in-time view of one chain's processor.
type ChainState struct {
	Chain            string `json:"chain"`
	Status           string `json:"status"`
	Healthy          bool   `json:"healthy"`
	LastScannedBlock int64  `json:"lastScannedBlock"`
	IndexerHead      int64  `json:"indexerHead"`
}

// ChainStates lists the processors the server reports on.
type ChainStates interface {
	ChainStates() []ChainState
}

type healthResponse struct {
	Status string       `json:"status"`
	Chains []ChainState `json:"chains"`
}

// Server is the HTTP server that exposes Prometheus metrics and processor liveness.
type Server struct {
	config *config.MetricsConfig
	chains ChainStates
	server *http.Server
	log    *logger.Logger
	stopCh chan struct{}
}

// NewServer creates a new metrics server. chains may be nil, in which case /health
// only reports that the process is up.
func NewServer(config *config.MetricsConfig, chains ChainStates, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Server{
		config: config,
		chains: chains,
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// Handler returns the mux serving metrics and health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// handleHealth answers 503 when any processor has faulted.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Chains: []ChainState{}}
	code := http.StatusOK

	if s.chains != nil {
		resp.Chains = s.chains.ChainStates()
		for _, c := range resp.Chains {
			if !c.Healthy {
				resp.Status = "unhealthy"
				code = http.StatusServiceUnavailable
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warnw("failed to write health response", "error", err)
	}
}

// updateChainMetrics refreshes the per-chain lag gauge.
func (s *Server) updateChainMetrics() {
	if s.chains == nil {
		return
	}
	for _, c := range s.chains.ChainStates() {
		BlocksBehind.WithLabelValues(c.Chain).Set(float64(max(c.IndexerHead-c.LastScannedBlock, 0)))
	}
}

// Start starts the metrics HTTP server and begins collecting system metrics.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	s.server = &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.updateSystemMetrics(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("metrics server error", "error", err)
		}
	}()

	s.log.Infow("metrics server started", "address", s.config.ListenAddress, "path", s.config.Path)

	return nil
}

// Stop stops the metrics HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	close(s.stopCh)

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}

	return nil
}

// updateSystemMetrics periodically updates system and per-chain metrics.
func (s *Server) updateSystemMetrics(ctx context.Context) {
	UpdateSystemMetrics()
	s.updateChainMetrics()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			UpdateSystemMetrics()
			s.updateChainMetrics()
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

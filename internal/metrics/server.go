package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goran-ethernal/BlockStreamor/internal/common"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const systemMetricsPeriod = 15 * time.Second

// Server exposes the Prometheus metrics and a health probe over HTTP, and
// keeps the runtime gauges fresh while it runs.
type Server struct {
	cfg    *config.MetricsConfig
	log    *logger.Logger
	server *http.Server
	stopCh chan struct{}
}

// NewServer creates a metrics server for the given configuration.
func NewServer(cfg *config.MetricsConfig, log *logger.Logger) *Server {
	return &Server{
		cfg:    cfg,
		log:    log.WithComponent(common.ComponentMetrics),
		stopCh: make(chan struct{}),
	}
}

// Start binds the listen address and begins serving in the background. The
// bind happens here rather than in the serving goroutine, so a bad
// listen_address fails startup instead of being logged and ignored.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to bind metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.log.Infow("metrics server listening", "address", ln.Addr().String(), "path", s.cfg.Path)
	go s.run(ctx, ln)

	return nil
}

// Stop shuts the HTTP server down and ends the gauge updates.
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

// run serves HTTP and refreshes the runtime gauges until stopped.
func (s *Server) run(ctx context.Context, ln net.Listener) {
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("metrics server failed", "error", err)
		}
	}()

	ticker := time.NewTicker(systemMetricsPeriod)
	defer ticker.Stop()

	UpdateSystemMetrics()
	for {
		select {
		case <-ticker.C:
			UpdateSystemMetrics()
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

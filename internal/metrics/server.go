package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/types"
)

// Server serves /healthz, /metrics, and the latest scan report on /report.
type Server struct {
	metrics *Metrics
	log     *logger.Logger
	server  *http.Server

	mu         sync.RWMutex
	lastReport *types.ScanReport
}

// NewServer builds the status server on addr. Start must be called to begin
// serving.
func NewServer(addr string, m *Metrics, log *logger.Logger) *Server {
	s := &Server{
		metrics:    m,
		log:        log,
		server:     nil,
		mu:         sync.RWMutex{},
		lastReport: nil,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start serves until Shutdown. It blocks; run it on its own goroutine.
func (s *Server) Start() error {
	s.log.Info("status server listening", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// SetReport publishes the latest scan report to /report.
func (s *Server) SetReport(report *types.ScanReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = report
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	report := s.lastReport
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if report == nil {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.log.Error("failed to encode report", zap.Error(err))
	}
}

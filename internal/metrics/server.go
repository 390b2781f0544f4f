package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/chairtools/chairstat/internal/stats"
)

// Config holds the server configuration
type Config struct {
	Host            string
	Port            int
	RefreshInterval time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            9464,
		RefreshInterval: 15 * time.Minute,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Reports are the aggregates of one refresh.
type Reports struct {
	Capacity    []stats.CapacityReport `json:"capacity"`
	Progress    *stats.ProgressReport  `json:"progress"`
	RefreshedAt time.Time              `json:"refreshed_at"`
}

// RefreshFunc fetches and aggregates a venue.
type RefreshFunc func(ctx context.Context) (*Reports, error)

// Server exports the venue aggregates over HTTP and refreshes them on an
// interval.
type Server struct {
	config   *Config
	refresh  RefreshFunc
	exporter *Exporter
	gatherer prometheus.Gatherer
	server   *http.Server

	mu      sync.RWMutex
	latest  *Reports
	lastErr error
}

// New creates a server that registers its gauges with a fresh registry.
func New(config *Config, refresh RefreshFunc) *Server {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(config, refresh, reg, reg)
}

// NewWithRegistry creates a server with a custom registry
func NewWithRegistry(config *Config, refresh RefreshFunc, registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	return &Server{
		config:   config,
		refresh:  refresh,
		exporter: NewExporter(registerer),
		gatherer: gatherer,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/health", s.healthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/capacity", s.getCapacity).Methods("GET")
	api.HandleFunc("/progress", s.getProgress).Methods("GET")

	return router
}

// Refresh runs one refresh and publishes its result.
func (s *Server) Refresh(ctx context.Context) error {
	start := time.Now()
	reports, err := s.refresh(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err
		s.exporter.RefreshFailed()
		log.Error().Err(err).Msg("Refresh failed")
		return err
	}

	if reports.RefreshedAt.IsZero() {
		reports.RefreshedAt = time.Now()
	}
	s.latest = reports
	s.lastErr = nil

	s.exporter.ObserveCapacity(reports.Capacity)
	if reports.Progress != nil {
		s.exporter.ObserveProgress(*reports.Progress)
	}
	s.exporter.RefreshSucceeded(reports.RefreshedAt)

	log.Info().
		Dur("duration", time.Since(start)).
		Msg("Refresh complete")
	return nil
}

// Run serves until ctx is cancelled, refreshing on the configured interval.
// A failed first refresh does not stop the server.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	log.Info().
		Str("addr", listener.Addr().String()).
		Dur("interval", s.config.RefreshInterval).
		Msg("Starting metrics server")

	serveErr := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.refreshLoop(loopCtx)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	log.Info().Msg("Shutting down server...")
	if shutdownErr := s.server.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	cancelLoop()
	wg.Wait()

	return err
}

func (s *Server) refreshLoop(ctx context.Context) {
	_ = s.Refresh(ctx)

	if s.config.RefreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

// Latest returns the last successful reports, or nil.
func (s *Server) Latest() *Reports {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest, lastErr := s.latest, s.lastErr
	s.mu.RUnlock()

	body := map[string]any{"status": "ok"}
	status := http.StatusOK

	switch {
	case latest == nil:
		body["status"] = "starting"
		status = http.StatusServiceUnavailable
	default:
		body["refreshed_at"] = latest.RefreshedAt
	}
	if lastErr != nil {
		body["last_error"] = lastErr.Error()
		if latest != nil {
			body["status"] = "stale"
		}
	}

	writeJSON(w, status, body)
}

func (s *Server) getCapacity(w http.ResponseWriter, r *http.Request) {
	latest := s.Latest()
	if latest == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"capacity":     latest.Capacity,
		"refreshed_at": latest.RefreshedAt,
	})
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	latest := s.Latest()
	if latest == nil || latest.Progress == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"progress":     latest.Progress,
		"refreshed_at": latest.RefreshedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

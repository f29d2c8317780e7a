package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/harun/logrelay/internal/metrics"
	"github.com/rs/zerolog"
)

// Server exposes session issuance and the relay WebSocket endpoint
type Server struct {
	host           string
	port           int
	allowedOrigins []string
	server         *http.Server
	listener       net.Listener
	mux            *http.ServeMux
	registry       *Registry
	handler        *Handler
	reporter       *StatsReporter
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	version        string
	isShuttingDown bool
	shutdownMu     sync.RWMutex
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Capacity       int
	Teardown       TeardownPolicy
	SessionIDs     IDStyle
	AllowedOrigins []string
	PingInterval   time.Duration
	StatsSchedule  string
	Version        string
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// SessionResponse is the body returned by the session issuance endpoint
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// HealthResponse is the body returned by the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// NewServer creates a new relay server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetrics()
	}

	idStyle, err := ParseIDStyle(string(cfg.SessionIDs))
	if err != nil {
		return nil, err
	}

	registry, err := NewRegistry(RegistryConfig{
		Capacity: cfg.Capacity,
		Teardown: cfg.Teardown,
		Metrics:  cfg.Metrics,
		NewID:    idStyle.Generator(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session registry: %w", err)
	}

	s := &Server{
		host:           cfg.Host,
		port:           cfg.Port,
		allowedOrigins: cfg.AllowedOrigins,
		version:        cfg.Version,
		registry:       registry,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.With().Str("component", "relay-server").Logger(),
	}

	s.handler, err = NewHandler(HandlerConfig{
		Registry:     registry,
		Metrics:      cfg.Metrics,
		Logger:       cfg.Logger,
		PingInterval: cfg.PingInterval,
		CheckOrigin:  s.checkOrigin,
	})
	if err != nil {
		return nil, err
	}

	if cfg.StatsSchedule != "" {
		s.reporter, err = NewStatsReporter(StatsReporterConfig{
			Schedule: cfg.StatsSchedule,
			Registry: registry,
			Handler:  s.handler,
			Metrics:  cfg.Metrics,
			Logger:   cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /api/session", s.withCORS(s.handleCreateSession))
	s.mux.HandleFunc("GET /api/sessions", s.withCORS(s.handleListSessions))
	s.mux.HandleFunc("/ws/{id}", s.handleWebSocket)
	s.mux.Handle("GET /metrics", cfg.Metrics.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, HealthResponse{Status: "ok", Version: s.version})
	})

	return s, nil
}

// Start starts listening in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.mux}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting relay server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Relay server error")
		}
	}()

	if s.reporter != nil {
		s.reporter.Start()
	}

	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes live connections and shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down relay server")

	if s.reporter != nil {
		s.reporter.Stop()
	}

	// Hijacked connections are not tracked by http.Server.Shutdown.
	s.handler.CloseAll()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.logger.Info().Msg("Relay server stopped")
	return nil
}

// Handler returns the HTTP handler serving all relay routes
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Registry returns the session registry
func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id, err := s.registry.Create()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	s.logger.Info().Str("sessionId", id).Msg("Session created")
	writeJSON(w, SessionResponse{SessionID: id})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.registry.Sessions())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	s.handler.ServeHTTP(w, r)
}

// checkOrigin allows every origin unless an allowlist is configured.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.allowedOrigins, origin)
}

func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if len(s.allowedOrigins) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if slices.Contains(s.allowedOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

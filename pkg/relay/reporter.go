package relay

import (
	"fmt"

	"github.com/harun/logrelay/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultStatsSchedule is the default cron spec for periodic relay stats.
const DefaultStatsSchedule = "@every 1m"

// StatsReporterConfig holds stats reporter configuration
type StatsReporterConfig struct {
	Schedule string
	Registry *Registry
	Handler  *Handler
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// StatsReporter periodically logs session and connection counts.
type StatsReporter struct {
	cron     *cron.Cron
	registry *Registry
	handler  *Handler
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewStatsReporter validates the schedule and prepares the reporter.
func NewStatsReporter(cfg StatsReporterConfig) (*StatsReporter, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultStatsSchedule
	}
	if cfg.Metrics == nil {
		cfg.Metrics = cfg.Registry.metrics
	}

	r := &StatsReporter{
		cron:     cron.New(),
		registry: cfg.Registry,
		handler:  cfg.Handler,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("component", "relay-stats").Logger(),
	}

	if _, err := r.cron.AddFunc(cfg.Schedule, r.Report); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", cfg.Schedule, err)
	}
	return r, nil
}

// Start begins running the schedule in the background
func (r *StatsReporter) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running report to finish
func (r *StatsReporter) Stop() {
	<-r.cron.Stop().Done()
}

// Report logs the current counts once.
func (r *StatsReporter) Report() {
	sessions := r.registry.Count()
	r.metrics.SessionsActive.Set(float64(sessions))

	event := r.logger.Info().Int("sessions", sessions)
	if r.handler != nil {
		event = event.Int("connections", r.handler.Count())
	}
	event.Msg("Relay stats")
}

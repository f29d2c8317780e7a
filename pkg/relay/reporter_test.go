package relay

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/harun/logrelay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsReporter_Report(t *testing.T) {
	m := metrics.NewMetrics()
	registry := newTestRegistry(t, RegistryConfig{Metrics: m})
	handler, err := NewHandler(HandlerConfig{Registry: registry, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = registry.Create()
	require.NoError(t, err)
	_, err = registry.Create()
	require.NoError(t, err)

	var buf bytes.Buffer
	reporter, err := NewStatsReporter(StatsReporterConfig{
		Schedule: "@every 1h",
		Registry: registry,
		Handler:  handler,
		Logger:   zerolog.New(&buf),
	})
	require.NoError(t, err)

	reporter.Report()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Relay stats", entry["message"])
	assert.Equal(t, "relay-stats", entry["component"])
	assert.Equal(t, float64(2), entry["sessions"])
	assert.Equal(t, float64(0), entry["connections"])
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SessionsActive))
}

func TestStatsReporter_StartStop(t *testing.T) {
	registry := newTestRegistry(t, RegistryConfig{})
	reporter, err := NewStatsReporter(StatsReporterConfig{
		Registry: registry,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	reporter.Start()
	reporter.Stop()
}

func TestStatsReporter_InvalidSchedule(t *testing.T) {
	registry := newTestRegistry(t, RegistryConfig{})
	_, err := NewStatsReporter(StatsReporterConfig{
		Schedule: "not a schedule",
		Registry: registry,
	})
	assert.Error(t, err)

	_, err = NewStatsReporter(StatsReporterConfig{})
	assert.Error(t, err)
}

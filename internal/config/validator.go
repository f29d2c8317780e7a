package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/harun/logrelay/pkg/relay"
	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a listen port. Zero picks a free port.
func (v *Validator) ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// ValidateBufferSize validates the per-subscriber backlog
func (v *Validator) ValidateBufferSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", size)
	}
	if size > 100000 {
		return fmt.Errorf("buffer size too large (max 100000), got %d", size)
	}
	return nil
}

// ValidateTeardown validates the session teardown policy
func (v *Validator) ValidateTeardown(policy string) error {
	if _, err := relay.ParseTeardownPolicy(policy); err != nil {
		return fmt.Errorf("%w (must be one of: %s, %s)", err, relay.TeardownOnDisconnect, relay.TeardownLastSubscriber)
	}
	return nil
}

// ValidateSessionIDs validates the session id style
func (v *Validator) ValidateSessionIDs(style string) error {
	if _, err := relay.ParseIDStyle(style); err != nil {
		return fmt.Errorf("%w (must be one of: %s, %s)", err, relay.IDStyleUUID, relay.IDStyleWords)
	}
	return nil
}

// ValidateSchedule validates the stats cron schedule. Empty disables stats.
func (v *Validator) ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid stats schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateServerURL validates the relay base URL used by clients
func (v *Validator) ValidateServerURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid server URL scheme: %s (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL has no host")
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	if err := v.ValidateBufferSize(cfg.Server.BufferSize); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	if err := v.ValidateTeardown(cfg.Server.Teardown); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	if err := v.ValidateSessionIDs(cfg.Server.SessionIDs); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	if cfg.Server.PingInterval < 0 {
		errors = append(errors, fmt.Errorf("server: ping interval cannot be negative"))
	}
	if err := v.ValidateSchedule(cfg.Server.StatsSchedule); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	if err := v.ValidateServerURL(cfg.Client.ServerURL); err != nil {
		errors = append(errors, fmt.Errorf("client: %w", err))
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, fmt.Errorf("logging: %w", err))
	}

	return errors
}

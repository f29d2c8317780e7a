package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main logrelay configuration
type Config struct {
	// Relay server
	Server ServerConfig `json:"server" mapstructure:"server" yaml:"server"`

	// Producer and viewer side
	Client ClientConfig `json:"client" mapstructure:"client" yaml:"client"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds relay server configuration
type ServerConfig struct {
	Host           string        `json:"host" mapstructure:"host" yaml:"host"`
	Port           int           `json:"port" mapstructure:"port" yaml:"port"`
	BufferSize     int           `json:"buffer_size" mapstructure:"buffer_size" yaml:"buffer_size"` // pending messages per subscriber
	Teardown       string        `json:"teardown" mapstructure:"teardown" yaml:"teardown"`          // disconnect, last-subscriber
	SessionIDs     string        `json:"session_ids" mapstructure:"session_ids" yaml:"session_ids"` // uuid, words
	AllowedOrigins []string      `json:"allowed_origins" mapstructure:"allowed_origins" yaml:"allowed_origins"`
	PingInterval   time.Duration `json:"ping_interval" mapstructure:"ping_interval" yaml:"ping_interval"` // 0 disables keepalive pings
	StatsSchedule  string        `json:"stats_schedule" mapstructure:"stats_schedule" yaml:"stats_schedule"`
}

// ClientConfig holds relay client configuration
type ClientConfig struct {
	ServerURL string `json:"server_url" mapstructure:"server_url" yaml:"server_url"`
	ViewerURL string `json:"viewer_url" mapstructure:"viewer_url" yaml:"viewer_url"` // format string with %s for the session id
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level" yaml:"level"`
	File   string `json:"file" mapstructure:"file" yaml:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty" yaml:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			BufferSize:     100,
			Teardown:       "disconnect",
			SessionIDs:     "uuid",
			AllowedOrigins: []string{},
			StatsSchedule:  "@every 1m",
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// YAML returns a YAML representation of the config
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/logrelay/internal/config"
	"github.com/harun/logrelay/internal/logger"
	"github.com/harun/logrelay/pkg/producer"
	"github.com/spf13/cobra"
)

// loadConfig loads the config file and applies global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, cmd *cobra.Command) (*logger.Logger, error) {
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.File = cfg.Logging.File
	logCfg.Pretty = cfg.Logging.Pretty
	logCfg.Output = cmd.ErrOrStderr()
	return logger.New(logCfg)
}

func newClient(cfg *config.Config) (*producer.Client, error) {
	return producer.NewClient(producer.ClientConfig{
		ServerURL: cfg.Client.ServerURL,
		ViewerURL: cfg.Client.ViewerURL,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

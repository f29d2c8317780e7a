package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/logrelay/internal/metrics"
	"github.com/harun/logrelay/internal/tracing"
	"github.com/harun/logrelay/pkg/relay"
	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Run the relay server. It issues session ids on GET /api/session and
relays pipe and chat messages between WebSocket connections on /ws/{id}.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	log, err := newLogger(cfg, cmd)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	log.Info().
		Str("teardown", cfg.Server.Teardown).
		Str("sessionIds", cfg.Server.SessionIDs).
		Int("bufferSize", cfg.Server.BufferSize).
		Msg("Loaded configuration")

	server, err := relay.NewServer(relay.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Capacity:       cfg.Server.BufferSize,
		Teardown:       relay.TeardownPolicy(cfg.Server.Teardown),
		SessionIDs:     relay.IDStyle(cfg.Server.SessionIDs),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PingInterval:   cfg.Server.PingInterval,
		StatsSchedule:  cfg.Server.StatsSchedule,
		Version:        version,
		Metrics:        metrics.NewMetrics(),
		Logger:         log.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create relay server: %w", err)
	}

	if err := tracing.Init("logrelay"); err != nil {
		log.Info().Err(err).Msg("Tracing disabled")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if err := server.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}
	return tracing.Shutdown(shutdownCtx)
}

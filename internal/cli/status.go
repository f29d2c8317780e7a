package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/harun/logrelay/pkg/producer"
	"github.com/harun/logrelay/pkg/relay"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay status",
	Long:  `Show the sessions currently registered on the configured relay server.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Status: unreachable")
		return err
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return err
	}

	printStatus(cmd.OutOrStdout(), cfg.Client.ServerURL, health, sessions, time.Now())
	return nil
}

func printStatus(w io.Writer, server string, health relay.HealthResponse, sessions []relay.SessionInfo, now time.Time) {
	fmt.Fprintf(w, "Status: %s\n", health.Status)
	fmt.Fprintf(w, "Server: %s\n", server)
	if health.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", health.Version)
		if err := producer.CheckCompatibility(health.Version, GetVersion()); err != nil {
			fmt.Fprintf(w, "Warning: %v\n", err)
		}
	}
	fmt.Fprintf(w, "Sessions: %d\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  connections=%d  age=%s\n", s.ID, s.Connections, formatDuration(now.Sub(s.CreatedAt)))
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

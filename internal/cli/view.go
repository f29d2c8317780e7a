package cli

import (
	"fmt"

	"github.com/harun/logrelay/pkg/producer"
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view <session-id>",
	Short: "Follow a relay session",
	Long:  `Attach to an existing session and print every pipe line and chat message relayed to it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, cmd)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	conn, err := client.Dial(ctx, args[0])
	if err != nil {
		return err
	}

	return producer.NewViewer(cmd.OutOrStdout(), log.GetZerolog()).Run(ctx, conn)
}

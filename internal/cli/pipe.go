package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/harun/logrelay/internal/tracing"
	"github.com/harun/logrelay/pkg/producer"
	"github.com/harun/logrelay/pkg/tail"
	"github.com/spf13/cobra"
)

var pipeAll bool

var pipeCmd = &cobra.Command{
	Use:   "pipe [file]",
	Short: "Stream a file or stdin into a new relay session",
	Long: `Create a new relay session and stream lines into it. With a file
argument the file is followed as it grows; without one, lines are read from
stdin until it ends.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipe,
}

func init() {
	pipeCmd.Flags().BoolVarP(&pipeAll, "all", "a", false, "Show all existing content before watching for updates")
	rootCmd.AddCommand(pipeCmd)
}

func runPipe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, cmd)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	// Fail before a session is issued if the file cannot be read at all.
	if len(args) == 1 {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	if err := tracing.Init("logrelay-pipe"); err == nil {
		defer tracing.Shutdown(context.Background())
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	sessionID, err := client.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Got a new session id.")

	conn, err := client.Dial(ctx, sessionID)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Started a new session at %s\n", client.ViewerURL(sessionID))

	var source tail.Source
	if len(args) == 1 {
		source = tail.NewFileSource(args[0], tail.FileOptions{
			FromStart: pipeAll,
			Logger:    log.GetZerolog(),
		})
	} else {
		source = tail.NewStreamSource(cmd.InOrStdin())
	}

	return producer.New(source, conn, log.GetZerolog()).Run(ctx)
}

package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harun/logrelay/pkg/relay"
	"github.com/spf13/cobra"
)

var chatSender string

var chatCmd = &cobra.Command{
	Use:   "chat <session-id> <message...>",
	Short: "Send a chat message to a relay session",
	Long: `Send one chat message to an existing session and disconnect.

With the default server.teardown policy "disconnect" any connection that
closes removes its session, so the session this command chats into is gone
once the message is delivered and later views of it fail. Run the server with
server.teardown set to "last-subscriber" to keep a session alive while other
connections remain attached.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSender, "sender", "", "sender name (default is $USER)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
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

	conn, err := client.Dial(ctx, args[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	sender := chatSender
	if sender == "" {
		sender = os.Getenv("USER")
	}

	msg := relay.ChatMessage{
		Sender:    sender,
		Content:   strings.Join(args[1:], " "),
		Timestamp: uint64(time.Now().UnixMilli()),
	}
	if err := conn.SendChat(ctx, msg); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}
	return nil
}

package producer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	"github.com/harun/logrelay/pkg/relay"
	"github.com/rs/zerolog"
)

// Viewer prints everything a session relays to one subscriber.
type Viewer struct {
	out    io.Writer
	logger zerolog.Logger
}

// NewViewer creates a viewer writing to out
func NewViewer(out io.Writer, logger zerolog.Logger) *Viewer {
	return &Viewer{
		out:    out,
		logger: logger.With().Str("component", "viewer").Logger(),
	}
}

// Run prints frames from conn until ctx is cancelled or the relay closes the
// connection. Pipe lines are printed verbatim, chat as "[sender] content".
func (v *Viewer) Run(ctx context.Context, conn *Conn) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		frame, err := conn.Receive()
		if errors.Is(err, relay.ErrUnrecognizedFrame) {
			v.logger.Warn().Err(err).Msg("Skipping unrecognized frame")
			continue
		}
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to receive: %w", err)
		}

		if err := v.print(frame); err != nil {
			return err
		}
	}
}

func (v *Viewer) print(frame relay.Frame) error {
	var err error
	switch frame.Kind {
	case relay.FrameChat:
		_, err = fmt.Fprintf(v.out, "[%s] %s\n", frame.Chat.Sender, frame.Chat.Content)
	default:
		_, err = fmt.Fprintln(v.out, frame.Text)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

package producer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/harun/logrelay/internal/tracing"
	"github.com/harun/logrelay/pkg/tail"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "github.com/harun/logrelay/pkg/producer"

// Sender delivers one line to a session. Send must return only after the
// line was written or the write failed.
type Sender interface {
	Send(ctx context.Context, line string) error
}

// Producer forwards every line of a source, verbatim, as one message each.
type Producer struct {
	source tail.Source
	sender Sender
	logger zerolog.Logger
	sent   atomic.Int64
}

// New creates a producer
func New(source tail.Source, sender Sender, logger zerolog.Logger) *Producer {
	return &Producer{
		source: source,
		sender: sender,
		logger: logger.With().Str("component", "producer").Logger(),
	}
}

// Run streams the source until it ends, ctx is cancelled or a send fails.
// Errors are not retried.
func (p *Producer) Run(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "producer.run")

	err := p.source.Stream(ctx, func(line string) error {
		if err := p.sender.Send(ctx, line); err != nil {
			return fmt.Errorf("failed to send line: %w", err)
		}
		p.sent.Add(1)
		return nil
	})

	span.SetAttributes(attribute.Int64("lines.sent", p.sent.Load()))
	tracing.EndSpan(span, err)

	tracing.Logger(ctx, p.logger).Debug().Int64("sent", p.sent.Load()).Err(err).Msg("Producer finished")
	return err
}

// Sent returns the number of lines delivered so far
func (p *Producer) Sent() int64 {
	return p.sent.Load()
}

package tail

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// MaxLineSize is the longest line a StreamSource accepts.
const MaxLineSize = 1024 * 1024

// StreamSource reads lines from an unbounded live input such as stdin.
type StreamSource struct {
	reader io.Reader
}

// NewStreamSource creates a source over r
func NewStreamSource(r io.Reader) *StreamSource {
	return &StreamSource{reader: r}
}

// Stream emits each line as it arrives and returns nil at end of input or
// once ctx is cancelled, even while a read is still blocked. A reader that
// is also an io.Closer is closed on cancellation; otherwise the pending read
// is abandoned.
func (s *StreamSource) Stream(ctx context.Context, emit EmitFunc) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		scanner := bufio.NewScanner(s.reader)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	if closer, ok := s.reader.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = closer.Close() })
		defer stop()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil && ctx.Err() == nil {
					return fmt.Errorf("failed to read line: %w", err)
				}
				return nil
			}
			if err := emit(line); err != nil {
				return err
			}
		}
	}
}

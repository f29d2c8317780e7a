package tail

import (
	"context"
	"strings"
)

// EmitFunc receives one line at a time. A returned error stops the source
// and is passed back to the caller unchanged.
type EmitFunc func(line string) error

// Source is a sequence of text lines that may keep growing.
//
// Stream calls emit synchronously for every line, in order, so a slow emit
// holds back further reads.
type Source interface {
	Stream(ctx context.Context, emit EmitFunc) error
}

// trimLine strips the line terminator, including a CRLF pair.
func trimLine(raw string) string {
	return strings.TrimRight(raw, "\r\n")
}

package tail

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSource_Lines(t *testing.T) {
	src := NewStreamSource(strings.NewReader("a\nb\r\n\nlast"))
	c := &collector{}

	require.NoError(t, src.Stream(context.Background(), c.emit))
	assert.Equal(t, []string{"a", "b", "", "last"}, c.snapshot())
}

func TestStreamSource_Empty(t *testing.T) {
	src := NewStreamSource(strings.NewReader(""))
	c := &collector{}

	require.NoError(t, src.Stream(context.Background(), c.emit))
	assert.Empty(t, c.snapshot())
}

func TestStreamSource_EmitError(t *testing.T) {
	src := NewStreamSource(strings.NewReader("a\nb\n"))
	boom := errors.New("closed")

	err := src.Stream(context.Background(), func(string) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestStreamSource_Cancelled(t *testing.T) {
	src := NewStreamSource(strings.NewReader("a\nb\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &collector{}
	require.NoError(t, src.Stream(ctx, c.emit))
	assert.Empty(t, c.snapshot())
}

func TestStreamSource_CancelWhileBlocked(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	src := NewStreamSource(r)
	c := &collector{}
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() { result <- src.Stream(ctx, c.emit) }()

	_, err := w.Write([]byte("first\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(c.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	// Nothing more is written, so the reader is parked in Read.
	cancel()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stream did not return after cancellation")
	}
	assert.Equal(t, []string{"first"}, c.snapshot())
}

func TestStreamSource_CancelAbandonsUnclosableReader(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	defer r.Close()

	// Hide the Close method so only the select can end the stream.
	src := NewStreamSource(struct{ io.Reader }{r})
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() { result <- src.Stream(ctx, func(string) error { return nil }) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stream did not return after cancellation")
	}
}

func TestStreamSource_LineTooLong(t *testing.T) {
	src := NewStreamSource(strings.NewReader(strings.Repeat("x", MaxLineSize+1) + "\n"))

	err := src.Stream(context.Background(), func(string) error { return nil })
	assert.Error(t, err)
}

func TestTrimLine(t *testing.T) {
	assert.Equal(t, "abc", trimLine("abc\n"))
	assert.Equal(t, "abc", trimLine("abc\r\n"))
	assert.Equal(t, "abc", trimLine("abc"))
	assert.Equal(t, "", trimLine("\n"))
}

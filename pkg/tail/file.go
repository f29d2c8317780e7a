package tail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileOptions holds file source configuration
type FileOptions struct {
	// FromStart emits the lines already in the file before following it.
	FromStart bool
	Logger    zerolog.Logger
}

// FileSource follows a file that is being appended to.
//
// The cursor is the offset of the first byte not yet emitted. It only moves
// past complete lines, so an unterminated trailing line is read again once a
// later write finishes it.
type FileSource struct {
	path      string
	fromStart bool
	logger    zerolog.Logger

	mu     sync.Mutex
	offset int64
	// info identifies the file the cursor belongs to.
	info os.FileInfo
}

// NewFileSource creates a source following path
func NewFileSource(path string, opts FileOptions) *FileSource {
	return &FileSource{
		path:      filepath.Clean(path),
		fromStart: opts.FromStart,
		logger:    opts.Logger.With().Str("component", "file-source").Str("path", path).Logger(),
	}
}

// Stream opens the file, optionally emits its current lines, then emits
// appended lines on every modification until ctx is cancelled.
func (f *FileSource) Stream(ctx context.Context, emit EmitFunc) error {
	// Registered before the initial read so appends in between still fire.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so an atomic replace of the file is still seen.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch file: %w", err)
	}

	if err := f.Open(emit); err != nil {
		return err
	}

	f.logger.Debug().Int64("offset", f.Offset()).Msg("Watching file")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				f.Rewind()
			}
			if _, err := f.ReadAppended(emit); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// Open resets the cursor from a fresh open of the file. With FromStart the
// existing complete lines are emitted and the cursor ends after the last
// one; otherwise the cursor is placed at the current end of file.
func (f *FileSource) Open(emit EmitFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	f.info = info

	f.offset = 0
	if f.fromStart {
		_, err := f.readLinesLocked(file, emit)
		return err
	}

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek file: %w", err)
	}
	f.offset = end
	return nil
}

// ReadAppended re-opens the file, emits every complete line written since
// the cursor and advances the cursor past them. It returns the number of
// lines emitted; with nothing new appended it emits nothing.
func (f *FileSource) ReadAppended(emit EmitFunc) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	switch {
	case f.info != nil && !os.SameFile(f.info, info):
		f.logger.Warn().Int64("offset", f.offset).Msg("File replaced, restarting from beginning")
		f.offset = 0
	case info.Size() < f.offset:
		f.logger.Warn().
			Int64("offset", f.offset).
			Int64("size", info.Size()).
			Msg("File truncated, restarting from beginning")
		f.offset = 0
	default:
		// Truncated and regrown past the cursor: the cursor no longer sits
		// right after a line terminator.
		ok, err := endsLine(file, f.offset)
		if err != nil {
			return 0, err
		}
		if !ok {
			f.logger.Warn().Int64("offset", f.offset).Msg("File rewritten, restarting from beginning")
			f.offset = 0
		}
	}
	f.info = info

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek file: %w", err)
	}

	return f.readLinesLocked(file, emit)
}

// Rewind moves the cursor back to the start of the file, so the next
// ReadAppended emits every complete line from the beginning.
func (f *FileSource) Rewind() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.offset = 0
	f.info = nil
}

// Offset returns the current cursor
func (f *FileSource) Offset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.offset
}

// readLinesLocked emits complete lines from r, advancing the cursor after
// each successful emit. Trailing bytes without a newline are left unread.
func (f *FileSource) readLinesLocked(r io.Reader, emit EmitFunc) (int, error) {
	reader := bufio.NewReader(r)
	count := 0

	for {
		raw, err := reader.ReadString('\n')
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read line: %w", err)
		}

		if err := emit(trimLine(raw)); err != nil {
			return count, err
		}
		f.offset += int64(len(raw))
		count++
	}
}

// endsLine reports whether the byte just before offset is a newline.
// Offset zero always starts a line.
func endsLine(r io.ReaderAt, offset int64) (bool, error) {
	if offset == 0 {
		return true, nil
	}
	var b [1]byte
	if _, err := r.ReadAt(b[:], offset-1); err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}
	return b[0] == '\n', nil
}

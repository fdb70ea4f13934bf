// Package reader implements incremental byte-offset tailing of log
// files: each read returns only the lines appended since the previous
// read of the same file.
package reader

import (
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// IncrementalReader keeps one read cursor per file path. Offsets only
// move forward; they reset to zero on an explicit reset request.
type IncrementalReader struct {
	mu      sync.Mutex
	offsets map[string]int64
	log     zerolog.Logger
}

func New(log zerolog.Logger) *IncrementalReader {
	return &IncrementalReader{
		offsets: make(map[string]int64),
		log:     log,
	}
}

// ReadNewLines returns the lines appended to path since the last read
// and advances the cursor to the new end offset. The trailing segment
// is returned even without a final newline. All failure modes (missing
// file, open, seek, invalid UTF-8) yield an empty result; nothing is
// raised to the caller.
func (r *IncrementalReader) ReadNewLines(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	offset := r.offsets[path]

	f, err := os.Open(path)
	if err != nil {
		r.log.Warn().Err(err).Str("file", path).Msg("cannot open file")
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		r.log.Warn().Err(err).Str("file", path).Msg("seek failed")
		return nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		r.log.Warn().Err(err).Str("file", path).Msg("read failed")
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	r.offsets[path] = offset + int64(len(data))

	if !utf8.Valid(data) {
		r.log.Warn().Str("file", path).Msg("skipping non-UTF-8 chunk")
		return nil
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}

	r.log.Debug().Int("lines", len(lines)).Str("file", path).Msg("read new lines")
	return lines
}

// Offset reports the current cursor for a file.
func (r *IncrementalReader) Offset(path string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offsets[path]
}

// ResetOffset forces the next read of path to start from the beginning.
func (r *IncrementalReader) ResetOffset(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offsets[path] = 0
}

// ResetAllOffsets drops every cursor, forcing full re-reads. Used by
// the full-reload path.
func (r *IncrementalReader) ResetAllOffsets() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offsets = make(map[string]int64)
}

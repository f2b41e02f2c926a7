package log

import (
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends events to a CBOR stream, normally a .dlog file.
// It is safe for concurrent use.
type FileLogger struct {
	mu      sync.Mutex
	w       io.WriteCloser
	encoder *cbor.Encoder
	closed  bool
	dropped int
}

// NewFileLogger opens (or creates with 0644) path for appending.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewStreamLogger(f), nil
}

// NewStreamLogger writes events to w. Close closes w.
func NewStreamLogger(w io.WriteCloser) *FileLogger {
	return &FileLogger{w: w, encoder: NewEncoder(w)}
}

// Log encodes the event. Encoding failures are counted, not returned.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
	}
}

// Dropped returns how many events failed to encode or write.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close closes the underlying writer. Later Log calls are ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.w.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize is the default maximum message size (64 KB).
	DefaultMaxMessageSize = 65536

	// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrFrameTruncated  = errors.New("frame truncated")
)

// frameLog tags frame events with the session and peer.
type frameLog struct {
	logger    log.Logger
	sessionID string
	remote    string
}

func (l *frameLog) log(data []byte, direction log.Direction) {
	if l.logger == nil {
		return
	}
	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}
	l.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  l.sessionID,
		Direction:  direction,
		Layer:      log.LayerTransport,
		Category:   log.CategoryMessage,
		RemoteAddr: l.remote,
		Frame: &log.FrameEvent{
			Size:      FrameSize(len(data)),
			Data:      frameData,
			Truncated: truncated,
		},
	})
}

// FrameWriter writes length-prefixed frames to an underlying writer.
type FrameWriter struct {
	w              io.Writer
	maxMessageSize uint32
	mu             sync.Mutex
	fl             frameLog
}

// NewFrameWriter creates a frame writer. A zero maxSize uses
// DefaultMaxMessageSize.
func NewFrameWriter(w io.Writer, maxSize uint32) *FrameWriter {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &FrameWriter{w: w, maxMessageSize: maxSize}
}

// SetLogger configures frame logging. Pass nil to disable it.
func (fw *FrameWriter) SetLogger(logger log.Logger, sessionID, remote string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.fl = frameLog{logger: logger, sessionID: sessionID, remote: remote}
}

// WriteFrame writes a length-prefixed frame.
// Safe for use from multiple goroutines.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if uint32(len(data)) > fw.maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), fw.maxMessageSize)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	// Prefix and payload go out in a single write.
	buf := make([]byte, LengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[LengthPrefixSize:], data)

	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	fw.fl.log(data, log.DirectionOut)
	return nil
}

// FrameReader reads length-prefixed frames from an underlying reader.
// It is not safe for concurrent use.
type FrameReader struct {
	r              io.Reader
	maxMessageSize uint32
	lengthBuf      [LengthPrefixSize]byte
	fl             frameLog
}

// NewFrameReader creates a frame reader. A zero maxSize uses
// DefaultMaxMessageSize.
func NewFrameReader(r io.Reader, maxSize uint32) *FrameReader {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &FrameReader{r: r, maxMessageSize: maxSize}
}

// SetLogger configures frame logging. Pass nil to disable it.
func (fr *FrameReader) SetLogger(logger log.Logger, sessionID, remote string) {
	fr.fl = frameLog{logger: logger, sessionID: sessionID, remote: remote}
}

// ReadFrame reads a length-prefixed frame and returns its payload.
// A clean end of stream between frames returns io.EOF.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(fr.lengthBuf[:])
	if length == 0 {
		return nil, ErrMessageEmpty
	}
	if length > fr.maxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length, fr.maxMessageSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	fr.fl.log(payload, log.DirectionIn)
	return payload, nil
}

// Framer combines frame reading and writing.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a framer for bidirectional communication.
func NewFramer(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{
		FrameReader: NewFrameReader(rw, maxSize),
		FrameWriter: NewFrameWriter(rw, maxSize),
	}
}

// SetLogger configures logging for both directions.
func (f *Framer) SetLogger(logger log.Logger, sessionID, remote string) {
	f.FrameReader.SetLogger(logger, sessionID, remote)
	f.FrameWriter.SetLogger(logger, sessionID, remote)
}

// FrameSize returns the total frame size including the length prefix.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}

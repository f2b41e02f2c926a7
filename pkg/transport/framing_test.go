package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "small message", payload: []byte("hello")},
		{name: "max size message", payload: bytes.Repeat([]byte("y"), DefaultMaxMessageSize)},
		{name: "single byte", payload: []byte{0x42}},
		{name: "binary data", payload: []byte{0x00, 0xFF, 0x7F, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			writer := NewFrameWriter(buf, 0)
			if err := writer.WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}
			if buf.Len() != FrameSize(len(tt.payload)) {
				t.Errorf("frame size = %d, want %d", buf.Len(), FrameSize(len(tt.payload)))
			}

			got, err := NewFrameReader(buf, 0).ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch")
			}
		})
	}
}

func TestFrameWriterRejects(t *testing.T) {
	writer := NewFrameWriter(new(bytes.Buffer), 8)

	if err := writer.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("empty: got %v, want ErrMessageEmpty", err)
	}
	if err := writer.WriteFrame(make([]byte, 9)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("oversized: got %v, want ErrMessageTooLarge", err)
	}
}

func TestFrameReaderErrors(t *testing.T) {
	header := func(n uint32) []byte {
		b := make([]byte, LengthPrefixSize)
		binary.BigEndian.PutUint32(b, n)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "clean end", data: nil, want: io.EOF},
		{name: "partial prefix", data: []byte{0x00, 0x01}, want: ErrFrameTruncated},
		{name: "short payload", data: append(header(10), 1, 2, 3), want: ErrFrameTruncated},
		{name: "zero length", data: header(0), want: ErrMessageEmpty},
		{name: "too large", data: header(100), want: ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewFrameReader(bytes.NewReader(tt.data), 64)
			if _, err := reader.ReadFrame(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFrameReaderMultipleFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf, 0)
	messages := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, m := range messages {
		if err := writer.WriteFrame(m); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	reader := NewFrameReader(buf, 0)
	for i, want := range messages {
		got, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %q, want %q", i, got, want)
		}
	}
}

func TestFrameWriterConcurrent(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(&lockedWriter{w: buf}, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = writer.WriteFrame(bytes.Repeat([]byte{byte(i)}, 100))
		}()
	}
	wg.Wait()

	reader := NewFrameReader(buf, 0)
	for i := 0; i < 20; i++ {
		got, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, bytes.Repeat(got[:1], 100)) {
			t.Fatalf("frame %d interleaved", i)
		}
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// capturingLogger captures log events for testing.
type capturingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *capturingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *capturingLogger) Events() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func TestFrameWriterLogsOnWrite(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := &capturingLogger{}

	writer := NewFrameWriter(buf, 0)
	writer.SetLogger(logger, "session-123", "10.0.0.5:4990")

	payload := []byte("hello")
	if err := writer.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.SessionID != "session-123" {
		t.Errorf("SessionID = %q, want %q", e.SessionID, "session-123")
	}
	if e.RemoteAddr != "10.0.0.5:4990" {
		t.Errorf("RemoteAddr = %q", e.RemoteAddr)
	}
	if e.Direction != log.DirectionOut {
		t.Errorf("Direction = %v, want DirectionOut", e.Direction)
	}
	if e.Layer != log.LayerTransport || e.Category != log.CategoryMessage {
		t.Errorf("Layer/Category = %v/%v", e.Layer, e.Category)
	}
	if e.Frame == nil {
		t.Fatal("Frame is nil")
	}
	if e.Frame.Size != FrameSize(len(payload)) {
		t.Errorf("Frame.Size = %d, want %d", e.Frame.Size, FrameSize(len(payload)))
	}
	if !bytes.Equal(e.Frame.Data, payload) {
		t.Errorf("Frame.Data = %v, want %v", e.Frame.Data, payload)
	}
}

func TestFrameReaderLogsOnRead(t *testing.T) {
	buf := new(bytes.Buffer)
	_ = NewFrameWriter(buf, 0).WriteFrame([]byte("world"))

	logger := &capturingLogger{}
	reader := NewFrameReader(buf, 0)
	reader.SetLogger(logger, "session-456", "")

	if _, err := reader.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Direction != log.DirectionIn {
		t.Errorf("Direction = %v, want DirectionIn", events[0].Direction)
	}
	if events[0].SessionID != "session-456" {
		t.Errorf("SessionID = %q", events[0].SessionID)
	}
}

func TestFramerNoLoggerNoPanic(t *testing.T) {
	buf := new(bytes.Buffer)
	framer := NewFramer(buf, 0)
	framer.SetLogger(nil, "session", "")

	if err := framer.WriteFrame([]byte("hello")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if _, err := framer.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
}

func TestFramerLogsTruncatedData(t *testing.T) {
	logger := &capturingLogger{}
	writer := NewFrameWriter(new(bytes.Buffer), 0)
	writer.SetLogger(logger, "session-trunc", "")

	large := bytes.Repeat([]byte("x"), 5000)
	if err := writer.WriteFrame(large); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	e := logger.Events()[0]
	if e.Frame.Size != FrameSize(len(large)) {
		t.Errorf("Frame.Size = %d, want %d", e.Frame.Size, FrameSize(len(large)))
	}
	if len(e.Frame.Data) != MaxLogFrameDataSize {
		t.Errorf("Frame.Data length = %d, want %d", len(e.Frame.Data), MaxLogFrameDataSize)
	}
	if !e.Frame.Truncated {
		t.Error("Frame.Truncated = false, want true")
	}
}

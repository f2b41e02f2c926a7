package log

import (
	"testing"
)

// recordingLogger records events for testing.
type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.events = append(r.events, event)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}

	multi := NewMultiLogger(a, nil, b)
	multi.Log(Event{SessionID: "s-1"})

	for i, r := range []*recordingLogger{a, b} {
		if len(r.events) != 1 || r.events[0].SessionID != "s-1" {
			t.Errorf("logger %d: got %v", i, r.events)
		}
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	NewMultiLogger().Log(Event{})
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	r := &recordingLogger{}
	if OrNoop(r) != Logger(r) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
}

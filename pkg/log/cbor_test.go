package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	code := 7

	events := []Event{
		{
			Timestamp: ts, SessionID: "s-1", Direction: DirectionOut, Layer: LayerTree, Category: CategoryMessage,
			LocalRole: RoleOriginator, DeviceID: 1,
			Message: &MessageEvent{
				Type:       MessageTypeCommand,
				Seq:        4,
				Path:       "root/Controls[2]",
				Properties: []string{"VolumeRaw"},
			},
		},
		{
			Timestamp: ts, SessionID: "s-1", Direction: DirectionLocal, Layer: LayerControl, Category: CategoryState,
			DeviceID: 1, ControlID: 1,
			StateChange: &StateChangeEvent{Entity: StateEntityPower, OldState: "POWER_OFF", NewState: "WARMING", ExpectedDuration: 3 * time.Second},
		},
		{
			Timestamp: ts, Direction: DirectionLocal, Layer: LayerControl, Category: CategoryActivity,
			Activity: &ActivityEvent{Action: "PowerOn", Error: "relay stuck"},
		},
		{
			Timestamp: ts, Layer: LayerTree, Category: CategoryError,
			Error: &ErrorEventData{Layer: LayerTree, Message: "unknown key", Code: &code, Context: "Controls[99]"},
		},
	}

	for _, want := range events {
		data, err := EncodeEvent(want)
		require.NoError(t, err)

		got, err := DecodeEvent(data)
		require.NoError(t, err)

		assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp keeps nanoseconds")
		got.Timestamp = want.Timestamp
		assert.Equal(t, want, got)
	}
}

func TestEventStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := 1; i <= 3; i++ {
		require.NoError(t, enc.Encode(Event{SessionID: "s", DeviceID: i}))
	}

	dec := NewDecoder(&buf)
	for i := 1; i <= 3; i++ {
		var e Event
		require.NoError(t, dec.Decode(&e))
		assert.Equal(t, i, e.DeviceID)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte{0xff, 0x00})
	assert.Error(t, err)
}

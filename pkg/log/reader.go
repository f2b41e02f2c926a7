package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	SessionID string
	Direction *Direction
	Layer     *Layer
	Category  *Category
	DeviceID  int
	ControlID int

	// TimeStart matches events at or after this time.
	TimeStart *time.Time

	// TimeEnd matches events before this time.
	TimeEnd *time.Time
}

// Matches reports whether event satisfies every set criterion.
func (f *Filter) Matches(event Event) bool {
	switch {
	case f.SessionID != "" && event.SessionID != f.SessionID:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.DeviceID != 0 && event.DeviceID != f.DeviceID:
		return false
	case f.ControlID != 0 && event.ControlID != f.ControlID:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Reader streams events from a CBOR event file.
type Reader struct {
	r       io.ReadCloser
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens path and reads every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and reads the events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(f, filter), nil
}

// NewStreamReader reads events from r. Close closes r.
func NewStreamReader(r io.ReadCloser, filter Filter) *Reader {
	return &Reader{r: r, decoder: NewDecoder(r), filter: filter}
}

// Next returns the next matching event, or io.EOF.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.Matches(event) {
			return event, nil
		}
	}
}

// All reads the remaining matching events.
func (r *Reader) All() ([]Event, error) {
	var events []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}

// Close closes the underlying reader.
func (r *Reader) Close() error {
	return r.r.Close()
}

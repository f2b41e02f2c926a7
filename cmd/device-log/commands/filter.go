package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

// FilterOptions holds the string form of the filter flags.
type FilterOptions struct {
	SessionID string
	DeviceID  int
	ControlID int
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Build converts the options to a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		SessionID: o.SessionID,
		DeviceID:  o.DeviceID,
		ControlID: o.ControlID,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := ParseLayer(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirection(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategory(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// RunFilter copies the events of path matching filter to output and
// returns how many were written.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}
}

package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

// RunExport writes the events of path to w as "jsonl" or "csv".
func RunExport(path, format string, w io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "session_id", "direction", "role", "layer", "category", "device_id", "control_id", "type", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return cw.Error()
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		row := []string{
			event.Timestamp.UTC().Format(timeFormat),
			event.SessionID,
			event.Direction.String(),
			event.LocalRole.String(),
			event.Layer.String(),
			event.Category.String(),
			strconv.Itoa(event.DeviceID),
			strconv.Itoa(event.ControlID),
			eventLabel(event),
			eventDetail(event),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
}

// eventDetail is the one-field summary used in CSV rows.
func eventDetail(event log.Event) string {
	switch {
	case event.Frame != nil:
		return strconv.Itoa(event.Frame.Size)
	case event.Message != nil:
		return event.Message.Path
	case event.StateChange != nil:
		return event.StateChange.NewState
	case event.Activity != nil:
		return event.Activity.Action
	case event.Error != nil:
		return event.Error.Message
	default:
		return ""
	}
}

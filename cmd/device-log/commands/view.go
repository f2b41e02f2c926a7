// Package commands implements the device-log CLI commands.
package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

const timeFormat = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timeFormat)
	fmt.Fprintf(w, "%s [session:%s] %-5s %s %s %s\n", ts, shortenSessionID(event.SessionID),
		event.Direction, event.LocalRole, event.Layer, eventLabel(event))

	if event.DeviceID != 0 || event.ControlID != 0 {
		fmt.Fprintf(w, "  Device: %d  Control: %d\n", event.DeviceID, event.ControlID)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Activity != nil:
		formatActivityDetails(w, event.Activity)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// eventLabel names the payload carried by event.
func eventLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		return event.Message.Type.String()
	case event.StateChange != nil:
		return "State"
	case event.Activity != nil:
		return "Activity"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.Seq != 0 {
		fmt.Fprintf(w, "  Seq: %d\n", msg.Seq)
	}
	if msg.Path != "" {
		fmt.Fprintf(w, "  Path: %s\n", msg.Path)
	}
	writeList(w, "Properties", msg.Properties)
	writeList(w, "Events", msg.Events)
	writeList(w, "Methods", msg.Methods)
	writeList(w, "Groups", msg.Groups)

	if msg.Payload != nil {
		if payload, err := json.Marshal(msg.Payload); err == nil {
			fmt.Fprintf(w, "  Payload: %s\n", payload)
		}
	}
}

func writeList(w io.Writer, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(items, ", "))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.ExpectedDuration > 0 {
		fmt.Fprintf(w, "  Expected: %s\n", sc.ExpectedDuration)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatActivityDetails(w io.Writer, a *log.ActivityEvent) {
	fmt.Fprintf(w, "  Action: %s", a.Action)
	if a.Value != nil {
		fmt.Fprintf(w, " %v", a.Value)
	}
	fmt.Fprintln(w)
	if a.Error != "" {
		fmt.Fprintf(w, "  Failed: %s\n", a.Error)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayer parses a layer name (case-insensitive).
func ParseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "tree":
		return log.LayerTree, nil
	case "control":
		return log.LayerControl, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, tree or control)", s)
	}
}

// ParseDirection parses a direction name (case-insensitive).
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "local":
		return log.DirectionLocal, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out or local)", s)
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "activity":
		return log.CategoryActivity, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, activity, state or error)", s)
	}
}

// RunView prints every event in path matching filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}

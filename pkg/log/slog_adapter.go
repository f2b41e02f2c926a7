package log

import (
	"context"
	"log/slog"
	"strings"
)

// SlogAdapter writes protocol events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
		slog.String("role", event.LocalRole.String()),
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.DeviceID != 0 {
		attrs = append(attrs, slog.Int("device_id", event.DeviceID))
	}
	if event.ControlID != 0 {
		attrs = append(attrs, slog.Int("control_id", event.ControlID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("msg_type", event.Message.Type.String()),
			slog.String("path", event.Message.Path),
		)
		if event.Message.Seq != 0 {
			attrs = append(attrs, slog.Uint64("seq", uint64(event.Message.Seq)))
		}
		attrs = appendList(attrs, "properties", event.Message.Properties)
		attrs = appendList(attrs, "events", event.Message.Events)
		attrs = appendList(attrs, "methods", event.Message.Methods)
		attrs = appendList(attrs, "groups", event.Message.Groups)
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
		if event.StateChange.ExpectedDuration > 0 {
			attrs = append(attrs, slog.Duration("expected_duration", event.StateChange.ExpectedDuration))
		}
	case event.Activity != nil:
		attrs = append(attrs, slog.String("action", event.Activity.Action))
		if event.Activity.Value != nil {
			attrs = append(attrs, slog.Any("value", event.Activity.Value))
		}
		if event.Activity.Error != "" {
			attrs = append(attrs, slog.String("action_error", event.Activity.Error))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(ctx, slog.LevelDebug, "protocol", attrs...)
}

func appendList(attrs []slog.Attr, key string, values []string) []slog.Attr {
	if len(values) == 0 {
		return attrs
	}
	return append(attrs, slog.String(key, strings.Join(values, ",")))
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)

package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes monitoring events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Errors log at Warn, everything
// else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", event.TraceID))
	}
	if event.TID != nil {
		attrs = append(attrs, slog.Uint64("tid", uint64(*event.TID)))
	}
	if event.EID != nil {
		attrs = append(attrs, slog.Uint64("eid", uint64(*event.EID)))
	}

	// Add type-specific attributes
	switch {
	case event.Message != nil:
		attrs = append(attrs,
			slog.Uint64("command", uint64(event.Message.Command)),
			slog.Uint64("instance_id", uint64(event.Message.InstanceID)),
		)
		if event.Message.CompletionCode != nil {
			attrs = append(attrs, slog.String("completion_code", event.Message.CompletionCode.String()))
		}
		if event.Message.RoundTrip != nil {
			attrs = append(attrs, slog.Duration("round_trip", *event.Message.RoundTrip))
		}

	case event.Polling != nil:
		attrs = append(attrs, slog.String("action", event.Polling.Action.String()))
		if event.Polling.SensorID != nil {
			attrs = append(attrs, slog.Uint64("sensor_id", uint64(*event.Polling.SensorID)))
		}
		if event.Polling.Value != nil {
			attrs = append(attrs, slog.Float64("value", *event.Polling.Value))
		}

	case event.Availability != nil:
		attrs = append(attrs, slog.Bool("available", event.Availability.Available))
		if event.Availability.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Availability.Reason))
		}

	case event.Dispatch != nil:
		attrs = append(attrs,
			slog.String("event_class", event.Dispatch.EventClass.String()),
			slog.Uint64("event_id", uint64(event.Dispatch.EventID)),
			slog.Int("handlers", event.Dispatch.Handlers),
			slog.String("completion_code", event.Dispatch.CompletionCode.String()),
		)
		if event.Dispatch.Failures > 0 {
			attrs = append(attrs, slog.Int("failures", event.Dispatch.Failures))
		}

	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	level := slog.LevelDebug
	if event.Category == CategoryError {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, "pldm event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)

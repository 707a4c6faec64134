package logging

import (
	"context"
	"log/slog"

	"tvrec/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDevice is the standardized key for recorder device keys ("1010CAFE-0", "/dev/video0").
	FieldDevice = "device"
	// FieldRecordingID identifies the recording a pipeline is producing.
	FieldRecordingID = "recording_id"
	// FieldStage is the standardized key for pipeline stage names.
	FieldStage = "stage"
	// FieldJob names the job whose output a record relays.
	FieldJob = "job"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies warnings and errors for log searches.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if device, ok := services.DeviceFromContext(ctx); ok {
		fields = append(fields, Device(device))
	}
	if id, ok := services.RecordingIDFromContext(ctx); ok {
		fields = append(fields, RecordingID(id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, Stage(stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(args(fields)...)
}

package logging

import (
	"context"
	"log/slog"

	"recap/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldVideoID is the standardized structured logging key for item identifiers.
	FieldVideoID = "video_id"
	// FieldStep is the standardized structured logging key for pipeline step names.
	FieldStep = "step"
	// FieldRunID is the standardized structured logging key for pipeline run identifiers.
	FieldRunID = "run_id"
	// FieldChannelID is the standardized structured logging key for source channel identifiers.
	FieldChannelID = "channel_id"
	// FieldStrategy is the standardized structured logging key for transcript strategy names.
	FieldStrategy = "strategy"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.VideoIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldVideoID, id))
	}
	if step, ok := services.StepFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStep, step))
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, runID))
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
	args := make([]any, 0, len(fields))
	for _, field := range fields {
		args = append(args, field)
	}
	return logger.With(args...)
}

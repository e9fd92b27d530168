package services

import "context"

type contextKey string

const (
	videoIDKey contextKey = "video_id"
	stepKey    contextKey = "step"
	runIDKey   contextKey = "run_id"
)

// WithVideoID annotates context with the item identifier.
func WithVideoID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, videoIDKey, id)
}

// VideoIDFromContext extracts the item identifier if present.
func VideoIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(videoIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the pipeline step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldJobFamily names the queue a job belongs to (acquisition, separation).
	FieldJobFamily = "job_family"
	// FieldCatalogID is the standardized structured logging key for catalog entry identifiers.
	FieldCatalogID = "catalog_id"
	// FieldQuality records the quality tier a job runs with.
	FieldQuality = "quality"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	jobFamilyKey contextKey = iota
	jobIDKey
	correlationIDKey
)

// WithJob tags ctx with the job currently being executed.
func WithJob(ctx context.Context, family, id string) context.Context {
	ctx = context.WithValue(ctx, jobFamilyKey, strings.TrimSpace(family))
	return context.WithValue(ctx, jobIDKey, strings.TrimSpace(id))
}

// WithCorrelationID tags ctx with a request identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, strings.TrimSpace(id))
}

// JobFromContext returns the job family and id stored by WithJob.
func JobFromContext(ctx context.Context) (family, id string, ok bool) {
	if ctx == nil {
		return "", "", false
	}
	id, _ = ctx.Value(jobIDKey).(string)
	family, _ = ctx.Value(jobFamilyKey).(string)
	return family, id, id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if family, id, ok := JobFromContext(ctx); ok {
		if family != "" {
			fields = append(fields, slog.String(FieldJobFamily, family))
		}
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if rid, ok := ctx.Value(correlationIDKey).(string); ok && rid != "" {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext adds the job and correlation fields carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return slog.New(logger.Handler().WithAttrs(fields))
}

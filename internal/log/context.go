// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type correlationKey struct{}

// ContextWithCorrelationID tags ctx with the ID of the event being handled,
// typically a withdrawal event ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the tag set by ContextWithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// WithContext adds the correlation ID and, inside a sampled or recording
// span, the trace and span IDs so log lines can be joined with traces.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	cid := CorrelationIDFromContext(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if cid == "" && !sc.IsValid() {
		return logger
	}

	lc := logger.With()
	if cid != "" {
		lc = lc.Str(FieldCorrelationID, cid)
	}
	if sc.IsValid() {
		lc = lc.Str(FieldTraceID, sc.TraceID().String()).Str(FieldSpanID, sc.SpanID().String())
	}
	return lc.Logger()
}

// WithComponentFromContext is WithContext over the request logger,
// annotated with component.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	l := FromContext(ctx).With().Str(FieldComponent, component).Logger()
	return WithContext(ctx, l)
}

// FromContext returns the logger attached with zerolog's Logger.WithContext,
// or the process logger when there is none.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return L()
}

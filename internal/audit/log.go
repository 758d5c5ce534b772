// Package audit writes one structured line per security-relevant action and
// per committed domain event.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"gigshield.org/internal/auth"
	"gigshield.org/internal/events"
	"gigshield.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and caller context.
func LogEvent(ctx context.Context, event string, fields ...zap.Field) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	obs.Logger().Info("audit", append(contextFields(ctx, event), fields...)...)
	return nil
}

func contextFields(ctx context.Context, event string) []zap.Field {
	out := []zap.Field{zap.String("type", "audit"), zap.String("event", event)}
	if rid := RequestIDFromContext(ctx); rid != "" {
		out = append(out, zap.String("request_id", rid))
	}
	if subject, ok := auth.SubjectFromContext(ctx); ok {
		out = append(out, zap.String("subject", subject))
	}
	return out
}

// Publisher records committed domain events in the audit log.
type Publisher struct{}

func (Publisher) Publish(ctx context.Context, evt events.Event) error {
	return LogEvent(ctx, evt.Type,
		zap.String("event_id", evt.ID),
		zap.Time("at", evt.At),
		zap.Any("data", evt.Data),
	)
}

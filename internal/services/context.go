package services

import "context"

type contextKey string

const (
	auditIDKey contextKey = "audit_id"
	stageKey   contextKey = "stage"
)

// WithAuditID annotates context with the audit identifier.
func WithAuditID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, auditIDKey, id)
}

// AuditIDFromContext extracts the audit identifier if present.
func AuditIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(auditIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

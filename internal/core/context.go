package core

import "context"

type contextKey string

const (
	ctxKeyCycleID contextKey = "sync_cycle_id"
	ctxKeyTable   contextKey = "sync_table"
)

// ContextWithCycleID adds the sync cycle id to context for log correlation.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCycleID, id)
}

// ContextWithTable adds the table being synced to context.
func ContextWithTable(ctx context.Context, table string) context.Context {
	return context.WithValue(ctx, ctxKeyTable, table)
}

// CycleIDFromContext extracts the sync cycle id from context.
func CycleIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyCycleID).(string); ok {
		return v
	}
	return ""
}

// TableFromContext extracts the table being synced from context.
func TableFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTable).(string); ok {
		return v
	}
	return ""
}

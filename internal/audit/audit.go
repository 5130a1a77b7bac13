// Package audit records append-only structured log entries for every tenant.
// Entries are persisted through the LogStore and mirrored to slog; a storage
// failure degrades to a slog warning and never reaches the caller, since
// audit writes sit on every hot path.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/botmux/internal/types"
)

// Emitter appends audit entries for tenants.
type Emitter struct {
	store types.LogStore
}

// New creates an Emitter over the given log store.
func New(store types.LogStore) *Emitter {
	return &Emitter{store: store}
}

// Emit appends one entry. Data may be nil.
func (e *Emitter) Emit(ctx context.Context, tenant types.TenantID, kind types.LogKind, message string, data map[string]any) {
	entry := &types.LogEntry{
		ID:       types.NewLogID(),
		TenantID: tenant,
		Kind:     kind,
		Message:  message,
		Data:     data,
		At:       time.Now(),
	}
	if err := e.store.Append(ctx, entry); err != nil {
		slog.Warn("audit append failed", "tenant", tenant, "kind", kind, "error", err)
	}
	slog.Debug("audit", "tenant", tenant, "kind", kind, "message", message)
}

func (e *Emitter) Command(ctx context.Context, tenant types.TenantID, message string, data map[string]any) {
	e.Emit(ctx, tenant, types.LogCommand, message, data)
}

func (e *Emitter) Session(ctx context.Context, tenant types.TenantID, message string, data map[string]any) {
	e.Emit(ctx, tenant, types.LogSession, message, data)
}

func (e *Emitter) Error(ctx context.Context, tenant types.TenantID, message string, data map[string]any) {
	e.Emit(ctx, tenant, types.LogError, message, data)
}

func (e *Emitter) System(ctx context.Context, tenant types.TenantID, message string, data map[string]any) {
	e.Emit(ctx, tenant, types.LogSystem, message, data)
}

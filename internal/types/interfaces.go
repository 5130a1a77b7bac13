// internal/types/interfaces.go
package types

import (
	"context"
)

type CommandStore interface {
	// Create inserts a command. Returns ErrDuplicateCommand if the tenant
	// already has a command with the same normalized name.
	Create(ctx context.Context, cmd *Command) error
	// Update persists mutable fields of a command owned by the tenant.
	Update(ctx context.Context, cmd *Command) error
	Delete(ctx context.Context, tenant TenantID, id CommandID) error
	Get(ctx context.Context, tenant TenantID, id CommandID) (*Command, error)
	FindByName(ctx context.Context, tenant TenantID, name string) (*Command, error)
	// RecordInvocation increments UsageCount and stamps LastUsedAt.
	RecordInvocation(ctx context.Context, tenant TenantID, name string) error
	// ListForTenant returns the tenant's commands ordered by creation time,
	// newest first.
	ListForTenant(ctx context.Context, tenant TenantID) ([]*Command, error)
}

type SessionStore interface {
	Upsert(ctx context.Context, rec *SessionRecord) error
	Get(ctx context.Context, tenant TenantID) (*SessionRecord, error)
}

type LogStore interface {
	Append(ctx context.Context, entry *LogEntry) error
	Tail(ctx context.Context, tenant TenantID, limit int) ([]*LogEntry, error)
}

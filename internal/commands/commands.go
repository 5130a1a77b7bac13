// Package commands is the per-tenant command table service. It owns name
// normalization and duplicate detection, and notifies the registration
// syncer whenever the visible command surface of a tenant changes, so the
// local table and the remote registry never diverge longer than one sync.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/botmux/internal/types"
)

// Syncer pushes a tenant's current command table to the remote registry.
// The manager implements this; the table only knows the trigger.
type Syncer interface {
	Push(ctx context.Context, tenant types.TenantID) error
}

// Table wraps the command store with the tenant-facing operations.
type Table struct {
	store  types.CommandStore
	syncer Syncer
}

// New creates a Table. The syncer may be wired later via SetSyncer to break
// the construction cycle with the manager.
func New(store types.CommandStore) *Table {
	return &Table{store: store}
}

// SetSyncer installs the mutation-triggered syncer.
func (t *Table) SetSyncer(s Syncer) {
	t.syncer = s
}

// UpdateFields carries the mutable command fields; nil means unchanged.
type UpdateFields struct {
	Name        *string
	Description *string
	Response    *string
	Script      *string
}

// Create authors a new command for the tenant. The name is case-normalized;
// a clash within the tenant fails with ErrDuplicateCommand.
func (t *Table) Create(ctx context.Context, tenant types.TenantID, name, description, response, script string) (*types.Command, error) {
	normalized := types.NormalizeName(name)
	if normalized == "" {
		return nil, fmt.Errorf("command name must not be empty")
	}
	now := time.Now()
	cmd := &types.Command{
		ID:          types.NewCommandID(),
		TenantID:    tenant,
		Name:        normalized,
		Description: description,
		Response:    response,
		Script:      script,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.store.Create(ctx, cmd); err != nil {
		return nil, err
	}
	t.syncAfterMutation(ctx, tenant)
	return cmd, nil
}

// Update mutates a command owned by the tenant.
func (t *Table) Update(ctx context.Context, tenant types.TenantID, id types.CommandID, fields UpdateFields) (*types.Command, error) {
	cmd, err := t.store.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if fields.Name != nil {
		normalized := types.NormalizeName(*fields.Name)
		if normalized == "" {
			return nil, fmt.Errorf("command name must not be empty")
		}
		cmd.Name = normalized
	}
	if fields.Description != nil {
		cmd.Description = *fields.Description
	}
	if fields.Response != nil {
		cmd.Response = *fields.Response
	}
	if fields.Script != nil {
		cmd.Script = *fields.Script
	}
	cmd.UpdatedAt = time.Now()
	if err := t.store.Update(ctx, cmd); err != nil {
		return nil, err
	}
	t.syncAfterMutation(ctx, tenant)
	return cmd, nil
}

// Delete removes a command owned by the tenant.
func (t *Table) Delete(ctx context.Context, tenant types.TenantID, id types.CommandID) error {
	if err := t.store.Delete(ctx, tenant, id); err != nil {
		return err
	}
	t.syncAfterMutation(ctx, tenant)
	return nil
}

// RecordInvocation bumps usage accounting for one invocation. Usage changes
// are not part of the visible command surface, so no sync is triggered.
func (t *Table) RecordInvocation(ctx context.Context, tenant types.TenantID, name string) error {
	return t.store.RecordInvocation(ctx, tenant, name)
}

// FindByName looks up a command by its normalized name.
func (t *Table) FindByName(ctx context.Context, tenant types.TenantID, name string) (*types.Command, error) {
	return t.store.FindByName(ctx, tenant, name)
}

// ListForTenant returns the tenant's commands, newest first.
func (t *Table) ListForTenant(ctx context.Context, tenant types.TenantID) ([]*types.Command, error) {
	return t.store.ListForTenant(ctx, tenant)
}

// syncAfterMutation triggers the registry push. Local state is the source of
// truth: a failed push is logged by the syncer and reconciled on the next
// successful one, so mutations never fail on sync errors.
func (t *Table) syncAfterMutation(ctx context.Context, tenant types.TenantID) {
	if t.syncer == nil {
		return
	}
	if err := t.syncer.Push(ctx, tenant); err != nil {
		slog.Warn("post-mutation sync failed", "tenant", tenant, "error", err)
	}
}

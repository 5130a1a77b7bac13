// Package regsync pushes a tenant's command table to the platform's command
// registry as one bulk replace. Local state is the source of truth: a failed
// push is logged and left for the next push to reconcile, never rolled back.
package regsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/botmux/internal/audit"
	"github.com/user/botmux/internal/platform"
	"github.com/user/botmux/internal/types"
	"github.com/user/botmux/internal/vault"
)

// Syncer performs registry pushes.
type Syncer struct {
	commands  types.CommandStore
	sessions  types.SessionStore
	vault     *vault.Vault
	registrar platform.Registrar
	audit     *audit.Emitter
}

// New creates a Syncer.
func New(commands types.CommandStore, sessions types.SessionStore, v *vault.Vault, registrar platform.Registrar, emitter *audit.Emitter) *Syncer {
	return &Syncer{
		commands:  commands,
		sessions:  sessions,
		vault:     v,
		registrar: registrar,
		audit:     emitter,
	}
}

// Push replaces the tenant's remote command registry with the current table.
// Idempotent: an unchanged table produces an unchanged remote state. A tenant
// that has never connected has no registry scope yet, so Push is a no-op.
func (s *Syncer) Push(ctx context.Context, tenant types.TenantID) error {
	rec, err := s.sessions.Get(ctx, tenant)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		return s.fail(ctx, tenant, err)
	}

	cmds, err := s.commands.ListForTenant(ctx, tenant)
	if err != nil {
		return s.fail(ctx, tenant, err)
	}
	descriptors := make([]platform.CommandDescriptor, 0, len(cmds))
	for _, cmd := range cmds {
		descriptors = append(descriptors, platform.CommandDescriptor{
			Name:        cmd.Name,
			Description: cmd.Description,
		})
	}

	token, err := s.vault.Decrypt(rec.Token)
	if err != nil {
		return s.fail(ctx, tenant, err)
	}

	if err := s.registrar.ReplaceCommands(ctx, rec.Identity, token, descriptors); err != nil {
		return s.fail(ctx, tenant, err)
	}
	return nil
}

func (s *Syncer) fail(ctx context.Context, tenant types.TenantID, cause error) error {
	s.audit.Error(ctx, tenant, "command registry sync failed", map[string]any{
		"cause": cause.Error(),
	})
	return fmt.Errorf("%w: %w", types.ErrSyncFailed, cause)
}

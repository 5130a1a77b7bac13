// Package manager is the registry of active sessions. It enforces
// at-most-one live session per tenant, serializes start/stop per tenant,
// persists session summaries, and cascades every transition into the audit
// log. The tenant→session map is the only shared mutable state in the
// system and is touched exclusively under the manager's locks.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/botmux/internal/audit"
	"github.com/user/botmux/internal/platform"
	"github.com/user/botmux/internal/regsync"
	"github.com/user/botmux/internal/session"
	"github.com/user/botmux/internal/types"
	"github.com/user/botmux/internal/vault"
)

// Manager orchestrates all tenant sessions.
type Manager struct {
	client        platform.Client
	vault         *vault.Vault
	commands      types.CommandStore
	sessionStore  types.SessionStore
	syncer        *regsync.Syncer
	recorder      session.CommandRecorder
	scripts       session.ScriptRunner
	audit         *audit.Emitter
	privateMarker string

	mu       sync.Mutex
	sessions map[types.TenantID]*session.Session
	locks    map[types.TenantID]*sync.Mutex
}

// Config carries the manager's collaborators.
type Config struct {
	Client        platform.Client
	Vault         *vault.Vault
	Commands      types.CommandStore
	Sessions      types.SessionStore
	Syncer        *regsync.Syncer
	Recorder      session.CommandRecorder
	Scripts       session.ScriptRunner
	Audit         *audit.Emitter
	PrivateMarker string
}

// New creates an empty Manager.
func New(cfg Config) *Manager {
	return &Manager{
		client:        cfg.Client,
		vault:         cfg.Vault,
		commands:      cfg.Commands,
		sessionStore:  cfg.Sessions,
		syncer:        cfg.Syncer,
		recorder:      cfg.Recorder,
		scripts:       cfg.Scripts,
		audit:         cfg.Audit,
		privateMarker: cfg.PrivateMarker,
		sessions:      make(map[types.TenantID]*session.Session),
		locks:         make(map[types.TenantID]*sync.Mutex),
	}
}

// tenantLock returns the mutex that serializes start/stop for one tenant.
func (m *Manager) tenantLock(tenant types.TenantID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[tenant]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[tenant] = lock
	}
	return lock
}

// Start brings the tenant's session online with the given vault-encrypted
// credential. An existing session is fully torn down first, so at most one
// live session exists per tenant at any instant.
func (m *Manager) Start(ctx context.Context, tenant types.TenantID, encToken string) (*types.SessionRecord, error) {
	lock := m.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	if _, err := m.stopLocked(ctx, tenant); err != nil {
		return nil, m.startFailed(ctx, tenant, err)
	}

	token, err := m.vault.Decrypt(encToken)
	if err != nil {
		return nil, m.startFailed(ctx, tenant, err)
	}

	sess := session.New(tenant, m.recorder, m.scripts, m.audit, m.privateMarker)
	if err := sess.Connect(ctx, m.client, token); err != nil {
		return nil, m.startFailed(ctx, tenant, err)
	}

	cmds, err := m.commands.ListForTenant(ctx, tenant)
	if err != nil {
		sess.Stop()
		return nil, m.startFailed(ctx, tenant, err)
	}
	sess.UpdateCommands(cmds)

	m.mu.Lock()
	m.sessions[tenant] = sess
	m.mu.Unlock()

	now := time.Now()
	summary := sess.Summary()
	rec := &types.SessionRecord{
		TenantID:   tenant,
		Identity:   summary.Identity,
		GuildCount: summary.GuildCount,
		Online:     true,
		Token:      encToken,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.sessionStore.Upsert(ctx, rec); err != nil {
		slog.Warn("persist session summary failed", "tenant", tenant, "error", err)
	}

	// Sync failure is logged by the syncer and reconciled later; the table
	// stays the source of truth, so the start still succeeds.
	if err := m.syncer.Push(ctx, tenant); err != nil {
		slog.Warn("registry push on start failed", "tenant", tenant, "error", err)
	}

	m.audit.Session(ctx, tenant, "session started", map[string]any{
		"identity":    summary.Identity.Username,
		"guild_count": summary.GuildCount,
	})
	return rec, nil
}

func (m *Manager) startFailed(ctx context.Context, tenant types.TenantID, cause error) error {
	m.audit.Error(ctx, tenant, "session start failed", map[string]any{
		"cause": cause.Error(),
	})
	return fmt.Errorf("%w: %w", types.ErrStartFailed, cause)
}

// Stop tears down the tenant's session. Returns false when there was no
// session to stop.
func (m *Manager) Stop(ctx context.Context, tenant types.TenantID) (bool, error) {
	lock := m.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()
	return m.stopLocked(ctx, tenant)
}

// stopLocked assumes the tenant lock is held.
func (m *Manager) stopLocked(ctx context.Context, tenant types.TenantID) (bool, error) {
	m.mu.Lock()
	sess, ok := m.sessions[tenant]
	delete(m.sessions, tenant)
	m.mu.Unlock()
	if !ok {
		return false, nil
	}

	sess.Stop()

	if rec, err := m.sessionStore.Get(ctx, tenant); err == nil {
		rec.Online = false
		rec.UpdatedAt = time.Now()
		if err := m.sessionStore.Upsert(ctx, rec); err != nil {
			slog.Warn("persist session summary failed", "tenant", tenant, "error", err)
		}
	}

	m.audit.Session(ctx, tenant, "session stopped", nil)
	return true, nil
}

// Status reports the live summary when the session is active, falls back to
// the last persisted summary with the online flag cleared, and reports
// ErrNotFound when the tenant has never had a session.
func (m *Manager) Status(ctx context.Context, tenant types.TenantID) (*types.SessionRecord, error) {
	m.mu.Lock()
	sess, ok := m.sessions[tenant]
	m.mu.Unlock()
	if ok {
		rec := sess.Summary()
		return &rec, nil
	}

	rec, err := m.sessionStore.Get(ctx, tenant)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: tenant %s", types.ErrNotFound, tenant)
		}
		return nil, err
	}
	rec.Online = false
	rec.Token = ""
	return rec, nil
}

// Push implements commands.Syncer: it pushes the registry and refreshes the
// live session's command cache so interaction lookups see the mutation.
func (m *Manager) Push(ctx context.Context, tenant types.TenantID) error {
	err := m.syncer.Push(ctx, tenant)

	m.mu.Lock()
	sess, ok := m.sessions[tenant]
	m.mu.Unlock()
	if ok {
		if cmds, listErr := m.commands.ListForTenant(ctx, tenant); listErr == nil {
			sess.UpdateCommands(cmds)
		} else {
			slog.Warn("command cache refresh failed", "tenant", tenant, "error", listErr)
		}
	}
	return err
}

// ActiveTenants lists tenants with a registered session.
func (m *Manager) ActiveTenants() []types.TenantID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.TenantID, 0, len(m.sessions))
	for tenant := range m.sessions {
		out = append(out, tenant)
	}
	return out
}

// ShutdownAll stops every active session concurrently and waits for all of
// them. Callers bound it with a context deadline before letting the process
// exit, so no connection is leaked.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, tenant := range m.ActiveTenants() {
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				if _, err := m.Stop(ctx, tenant); err != nil {
					slog.Warn("shutdown stop failed", "tenant", tenant, "error", err)
				}
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return fmt.Errorf("shutdown of tenant %s: %w", tenant, ctx.Err())
			}
		})
	}
	return g.Wait()
}

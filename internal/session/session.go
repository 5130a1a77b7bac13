// Package session owns one tenant's live connection to the platform. A
// session moves Idle → Connecting → Online, may flip to Disconnected on
// transport errors, and ends Stopped. While online it dispatches inbound
// interactions against a cached snapshot of the tenant's command table.
// Events arrive one at a time per connection; sessions of different tenants
// run fully concurrently.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/user/botmux/internal/audit"
	"github.com/user/botmux/internal/i18n"
	"github.com/user/botmux/internal/platform"
	"github.com/user/botmux/internal/types"
)

type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateOnline       State = "online"
	StateDisconnected State = "disconnected"
	StateStopped      State = "stopped"
)

// CommandRecorder is the slice of the command table the dispatch path needs.
type CommandRecorder interface {
	RecordInvocation(ctx context.Context, tenant types.TenantID, name string) error
}

// ScriptRunner executes a tenant script bound to an interaction.
type ScriptRunner interface {
	Run(ctx context.Context, tenant types.TenantID, inter platform.Interaction, script string) error
}

// Session is one tenant's connection. Owned exclusively by the manager.
type Session struct {
	tenant        types.TenantID
	recorder      CommandRecorder
	scripts       ScriptRunner
	audit         *audit.Emitter
	privateMarker string

	mu    sync.RWMutex
	state State
	conn  platform.Conn
	cache map[string]*types.Command

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle session for the tenant.
func New(tenant types.TenantID, recorder CommandRecorder, scripts ScriptRunner, emitter *audit.Emitter, privateMarker string) *Session {
	return &Session{
		tenant:        tenant,
		recorder:      recorder,
		scripts:       scripts,
		audit:         emitter,
		privateMarker: privateMarker,
		state:         StateIdle,
		cache:         make(map[string]*types.Command),
	}
}

// Connect authenticates and brings the session online. On failure the
// session never reaches Online and the caller discards it; there is no
// retry here.
func (s *Session) Connect(ctx context.Context, client platform.Client, token string) error {
	s.setState(StateConnecting)
	conn, err := client.Connect(ctx, token)
	if err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("%w: %w", types.ErrConnectionFailed, err)
	}

	// The event loop outlives the start request.
	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.conn = conn
	s.state = StateOnline
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.eventLoop(loopCtx, conn)
	return nil
}

// Stop tears the connection down and waits for in-flight dispatch to drain.
// In-flight handlers that have not replied yet are best effort: their sends
// fail against the closed connection and are dropped, never retried.
func (s *Session) Stop() {
	s.mu.Lock()
	conn := s.conn
	cancel := s.cancel
	s.conn = nil
	s.state = StateStopped
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			slog.Warn("connection close failed", "tenant", s.tenant, "error", err)
		}
	}
	s.wg.Wait()
}

// UpdateCommands replaces the cached command table snapshot.
func (s *Session) UpdateCommands(cmds []*types.Command) {
	cache := make(map[string]*types.Command, len(cmds))
	for _, cmd := range cmds {
		cache[cmd.Name] = cmd
	}
	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Summary reports the session's public view.
func (s *Session) Summary() types.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := types.SessionRecord{
		TenantID: s.tenant,
		Online:   s.state == StateOnline,
	}
	if s.conn != nil {
		rec.Identity = s.conn.Identity()
		rec.GuildCount = s.conn.GuildCount()
	}
	return rec
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) eventLoop(ctx context.Context, conn platform.Conn) {
	defer s.wg.Done()
	inters := conn.Interactions()
	errs := conn.Errs()

	for inters != nil || errs != nil {
		select {
		case inter, ok := <-inters:
			if !ok {
				inters = nil
				continue
			}
			s.dispatch(ctx, inter)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.onTransportError(ctx, err)
		case <-ctx.Done():
			return
		}
	}
}

// onTransportError clears the online flag. Reconnecting requires an explicit
// start call; silent retry against a possibly revoked credential is worse
// than a visible outage.
func (s *Session) onTransportError(ctx context.Context, cause error) {
	s.mu.Lock()
	if s.state == StateOnline {
		s.state = StateDisconnected
	}
	s.mu.Unlock()
	s.audit.System(ctx, s.tenant, "connection error", map[string]any{
		"cause": cause.Error(),
	})
}

// dispatch handles one inbound invocation. Whatever happens, the invoker
// receives exactly one terminal response: the command result, an
// "unavailable" notice, or a generic failure notice.
func (s *Session) dispatch(ctx context.Context, inter platform.Interaction) {
	name := types.NormalizeName(inter.Command())

	s.mu.RLock()
	cmd, ok := s.cache[name]
	s.mu.RUnlock()

	if !ok {
		if err := inter.Reply(i18n.T("reply.unavailable"), false); err != nil {
			slog.Debug("unavailable notice dropped", "tenant", s.tenant, "command", name, "error", err)
		}
		return
	}

	tracked := &trackedInteraction{Interaction: inter}
	if err := s.handle(ctx, tracked, cmd); err != nil {
		s.audit.Error(ctx, s.tenant, "interaction failed", map[string]any{
			"command": name,
			"cause":   err.Error(),
		})
		notice := i18n.T("reply.failure")
		if tracked.Replied() {
			err = tracked.FollowUp(notice)
		} else {
			err = tracked.Reply(notice, false)
		}
		if err != nil {
			// Connection already tearing down; the notice is best effort.
			slog.Debug("failure notice dropped", "tenant", s.tenant, "command", name, "error", err)
		}
	}
}

func (s *Session) handle(ctx context.Context, inter *trackedInteraction, cmd *types.Command) error {
	if err := s.recorder.RecordInvocation(ctx, s.tenant, cmd.Name); err != nil {
		return err
	}
	s.audit.Command(ctx, s.tenant, "command invoked", map[string]any{
		"command": cmd.Name,
		"user":    inter.UserID(),
		"channel": inter.ChannelID(),
	})

	switch {
	case cmd.Script != "":
		return s.scripts.Run(ctx, s.tenant, inter, cmd.Script)
	case cmd.Response != "":
		private := s.privateMarker != "" && strings.Contains(cmd.Name, s.privateMarker)
		return inter.Reply(cmd.Response, private)
	}
	return nil
}

// trackedInteraction remembers whether a reply has been delivered so the
// failure path can pick between a direct reply and a follow-up.
type trackedInteraction struct {
	platform.Interaction
	mu      sync.Mutex
	replied bool
}

func (t *trackedInteraction) Reply(text string, private bool) error {
	err := t.Interaction.Reply(text, private)
	if err == nil {
		t.mu.Lock()
		t.replied = true
		t.mu.Unlock()
	}
	return err
}

func (t *trackedInteraction) FollowUp(text string) error {
	err := t.Interaction.FollowUp(text)
	if err == nil {
		t.mu.Lock()
		t.replied = true
		t.mu.Unlock()
	}
	return err
}

func (t *trackedInteraction) Replied() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replied
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/user/botmux/internal/types"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "botmux_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newCommand(tenant types.TenantID, name string) *types.Command {
	now := time.Now()
	return &types.Command{
		ID:        types.NewCommandID(),
		TenantID:  tenant,
		Name:      types.NormalizeName(name),
		Response:  "pong",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCommandCreateDuplicate(t *testing.T) {
	s := NewCommandStore(openTestDB(t))
	ctx := context.Background()

	if err := s.Create(ctx, newCommand("dev1", "Ping")); err != nil {
		t.Fatal(err)
	}
	err := s.Create(ctx, newCommand("dev1", "ping"))
	if !errors.Is(err, types.ErrDuplicateCommand) {
		t.Errorf("expected ErrDuplicateCommand, got %v", err)
	}
	// Same name under a different tenant is fine.
	if err := s.Create(ctx, newCommand("dev2", "ping")); err != nil {
		t.Errorf("expected success for different tenant, got %v", err)
	}
}

func TestCommandRecordInvocation(t *testing.T) {
	s := NewCommandStore(openTestDB(t))
	ctx := context.Background()
	before := time.Now()

	if err := s.Create(ctx, newCommand("dev1", "ping")); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordInvocation(ctx, "dev1", "PING"); err != nil {
		t.Fatal(err)
	}

	cmd, err := s.FindByName(ctx, "dev1", "ping")
	if err != nil {
		t.Fatal(err)
	}
	if cmd.UsageCount != 1 {
		t.Errorf("expected usage count 1, got %d", cmd.UsageCount)
	}
	if cmd.LastUsedAt == nil || cmd.LastUsedAt.Before(before) {
		t.Errorf("expected last_used_at >= invocation start, got %v", cmd.LastUsedAt)
	}

	if err := s.RecordInvocation(ctx, "dev1", "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown command, got %v", err)
	}
}

func TestCommandUpdateAndDeleteScoping(t *testing.T) {
	s := NewCommandStore(openTestDB(t))
	ctx := context.Background()

	cmd := newCommand("dev1", "ping")
	if err := s.Create(ctx, cmd); err != nil {
		t.Fatal(err)
	}

	// Another tenant may not update or delete it.
	foreign := *cmd
	foreign.TenantID = "dev2"
	foreign.Response = "hijacked"
	if err := s.Update(ctx, &foreign); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating across tenants, got %v", err)
	}
	if err := s.Delete(ctx, "dev2", cmd.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting across tenants, got %v", err)
	}

	cmd.Response = "pong!"
	cmd.UpdatedAt = time.Now()
	if err := s.Update(ctx, cmd); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "dev1", cmd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Response != "pong!" {
		t.Errorf("expected updated response, got %q", got.Response)
	}

	if err := s.Delete(ctx, "dev1", cmd.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "dev1", cmd.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCommandListNewestFirst(t *testing.T) {
	s := NewCommandStore(openTestDB(t))
	ctx := context.Background()

	older := newCommand("dev1", "older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := newCommand("dev1", "newer")
	if err := s.Create(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, newer); err != nil {
		t.Fatal(err)
	}

	cmds, err := s.ListForTenant(ctx, "dev1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Name != "newer" {
		t.Errorf("expected newest first, got %q", cmds[0].Name)
	}
}

func TestSessionUpsertAndGet(t *testing.T) {
	db := openTestDB(t)
	s := NewSessionStore(db)
	ctx := context.Background()

	if _, err := s.Get(ctx, "dev1"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown tenant, got %v", err)
	}

	rec := &types.SessionRecord{
		TenantID:   "dev1",
		Identity:   types.Identity{ID: "42", Username: "pingbot"},
		GuildCount: 3,
		Online:     true,
		Token:      "ciphertext",
		StartedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.Online = false
	rec.UpdatedAt = time.Now()
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "dev1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Online {
		t.Error("expected online=false after second upsert")
	}
	if got.Identity.Username != "pingbot" {
		t.Errorf("expected identity to survive upsert, got %q", got.Identity.Username)
	}
}

func TestLogAppendAndTail(t *testing.T) {
	s := NewLogStore(openTestDB(t))
	ctx := context.Background()

	for i, kind := range []types.LogKind{types.LogSession, types.LogCommand, types.LogError} {
		entry := &types.LogEntry{
			ID:       types.NewLogID(),
			TenantID: "dev1",
			Kind:     kind,
			Message:  "entry",
			Data:     map[string]any{"seq": float64(i)},
			At:       time.Now().Add(time.Duration(i) * time.Millisecond),
		}
		if err := s.Append(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.Tail(ctx, "dev1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != types.LogError {
		t.Errorf("expected newest entry first, got kind %q", entries[0].Kind)
	}
	if entries[0].Data["seq"] != float64(2) {
		t.Errorf("expected data round trip, got %v", entries[0].Data)
	}

	other, err := s.Tail(ctx, "dev2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("expected tenant scoping, got %d entries", len(other))
	}
}

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/user/botmux/internal/types"
)

type fakeLogStore struct {
	mu      sync.Mutex
	entries []*types.LogEntry
	fail    bool
}

func (f *fakeLogStore) Append(_ context.Context, entry *types.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("disk full")
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogStore) Tail(_ context.Context, tenant types.TenantID, limit int) ([]*types.LogEntry, error) {
	return nil, nil
}

func TestEmitAppends(t *testing.T) {
	store := &fakeLogStore{}
	e := New(store)

	e.Command(context.Background(), "dev1", "command invoked", map[string]any{"command": "ping"})
	e.Error(context.Background(), "dev1", "boom", nil)

	if len(store.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(store.entries))
	}
	if store.entries[0].Kind != types.LogCommand {
		t.Errorf("expected kind %q, got %q", types.LogCommand, store.entries[0].Kind)
	}
	if store.entries[1].Kind != types.LogError {
		t.Errorf("expected kind %q, got %q", types.LogError, store.entries[1].Kind)
	}
	if store.entries[0].TenantID != "dev1" {
		t.Errorf("expected tenant dev1, got %s", store.entries[0].TenantID)
	}
	if store.entries[0].At.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if store.entries[0].ID == "" {
		t.Error("expected entry ID to be set")
	}
}

func TestEmitSwallowsStoreFailure(t *testing.T) {
	store := &fakeLogStore{fail: true}
	e := New(store)

	// Must not panic or propagate.
	e.System(context.Background(), "dev1", "session error", nil)
}

package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/botmux/internal/commands"
	"github.com/user/botmux/internal/types"
)

type fakeSessions struct {
	startErr error
	stopOK   bool
	rec      *types.SessionRecord
	token    string
}

func (f *fakeSessions) Start(_ context.Context, tenant types.TenantID, encToken string) (*types.SessionRecord, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.token = encToken
	f.rec = &types.SessionRecord{TenantID: tenant, Online: true, StartedAt: time.Now()}
	return f.rec, nil
}

func (f *fakeSessions) Stop(context.Context, types.TenantID) (bool, error) {
	return f.stopOK, nil
}

func (f *fakeSessions) Status(_ context.Context, tenant types.TenantID) (*types.SessionRecord, error) {
	if f.rec == nil {
		return nil, fmt.Errorf("%w: tenant %s", types.ErrNotFound, tenant)
	}
	return f.rec, nil
}

type fakeCommands struct {
	cmds      map[types.CommandID]*types.Command
	createErr error
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{cmds: make(map[types.CommandID]*types.Command)}
}

func (f *fakeCommands) Create(_ context.Context, tenant types.TenantID, name, description, response, script string) (*types.Command, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	cmd := &types.Command{
		ID:          types.NewCommandID(),
		TenantID:    tenant,
		Name:        types.NormalizeName(name),
		Description: description,
		Response:    response,
		Script:      script,
	}
	f.cmds[cmd.ID] = cmd
	return cmd, nil
}

func (f *fakeCommands) Update(_ context.Context, tenant types.TenantID, id types.CommandID, fields commands.UpdateFields) (*types.Command, error) {
	cmd, ok := f.cmds[id]
	if !ok || cmd.TenantID != tenant {
		return nil, fmt.Errorf("%w: command %s", types.ErrNotFound, id)
	}
	if fields.Response != nil {
		cmd.Response = *fields.Response
	}
	return cmd, nil
}

func (f *fakeCommands) Delete(_ context.Context, tenant types.TenantID, id types.CommandID) error {
	cmd, ok := f.cmds[id]
	if !ok || cmd.TenantID != tenant {
		return fmt.Errorf("%w: command %s", types.ErrNotFound, id)
	}
	delete(f.cmds, id)
	return nil
}

func (f *fakeCommands) ListForTenant(_ context.Context, tenant types.TenantID) ([]*types.Command, error) {
	var out []*types.Command
	for _, cmd := range f.cmds {
		if cmd.TenantID == tenant {
			out = append(out, cmd)
		}
	}
	return out, nil
}

type memLogStore struct {
	entries []*types.LogEntry
}

func (m *memLogStore) Append(_ context.Context, entry *types.LogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memLogStore) Tail(_ context.Context, tenant types.TenantID, limit int) ([]*types.LogEntry, error) {
	var out []*types.LogEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].TenantID == tenant {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func newTestServer() (*Server, *fakeSessions, *fakeCommands, *memLogStore) {
	sessions := &fakeSessions{}
	cmds := newFakeCommands()
	logs := &memLogStore{}
	return NewServer(sessions, cmds, logs), sessions, cmds, logs
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer()
	w := doJSON(t, srv, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStartSession(t *testing.T) {
	srv, sessions, _, _ := newTestServer()

	w := doJSON(t, srv, http.MethodPost, "/api/tenants/dev1/session/start", `{"token":"enc-abc"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if sessions.token != "enc-abc" {
		t.Errorf("expected the encrypted token forwarded verbatim, got %q", sessions.token)
	}

	var rec types.SessionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.TenantID != "dev1" || !rec.Online {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestStartSessionMissingToken(t *testing.T) {
	srv, _, _, _ := newTestServer()
	w := doJSON(t, srv, http.MethodPost, "/api/tenants/dev1/session/start", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStartSessionBadCredential(t *testing.T) {
	srv, sessions, _, _ := newTestServer()
	sessions.startErr = fmt.Errorf("%w: %w", types.ErrStartFailed, types.ErrInvalidCredential)

	w := doJSON(t, srv, http.MethodPost, "/api/tenants/dev1/session/start", `{"token":"bad"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an unusable credential, got %d", w.Code)
	}
}

func TestStopSession(t *testing.T) {
	srv, sessions, _, _ := newTestServer()
	sessions.stopOK = true

	w := doJSON(t, srv, http.MethodPost, "/api/tenants/dev1/session/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp["stopped"] {
		t.Error("expected stopped=true")
	}
}

func TestStatusNotFound(t *testing.T) {
	srv, _, _, _ := newTestServer()
	w := doJSON(t, srv, http.MethodGet, "/api/tenants/ghost/session", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateCommand(t *testing.T) {
	srv, _, _, _ := newTestServer()

	w := doJSON(t, srv, http.MethodPost, "/api/tenants/dev1/commands",
		`{"name":"Ping","description":"latency","response":"pong"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	var cmd types.Command
	if err := json.Unmarshal(w.Body.Bytes(), &cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Name != "ping" {
		t.Errorf("expected normalized name, got %q", cmd.Name)
	}
}

func TestCreateCommandDuplicate(t *testing.T) {
	srv, _, cmds, _ := newTestServer()
	cmds.createErr = fmt.Errorf("%w: ping", types.ErrDuplicateCommand)

	w := doJSON(t, srv, http.MethodPost, "/api/tenants/dev1/commands", `{"name":"ping"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a duplicate name, got %d", w.Code)
	}
}

func TestUpdateCommand(t *testing.T) {
	srv, _, cmds, _ := newTestServer()
	cmd, err := cmds.Create(context.Background(), "dev1", "ping", "", "pong", "")
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, srv, http.MethodPatch, "/api/tenants/dev1/commands/"+string(cmd.ID),
		`{"response":"PONG!"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var updated types.Command
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Response != "PONG!" {
		t.Errorf("expected updated response, got %q", updated.Response)
	}
}

func TestUpdateCommandWrongTenant(t *testing.T) {
	srv, _, cmds, _ := newTestServer()
	cmd, err := cmds.Create(context.Background(), "dev1", "ping", "", "pong", "")
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, srv, http.MethodPatch, "/api/tenants/dev2/commands/"+string(cmd.ID),
		`{"response":"stolen"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another tenant's command, got %d", w.Code)
	}
}

func TestDeleteCommand(t *testing.T) {
	srv, _, cmds, _ := newTestServer()
	cmd, err := cmds.Create(context.Background(), "dev1", "ping", "", "pong", "")
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, srv, http.MethodDelete, "/api/tenants/dev1/commands/"+string(cmd.ID), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(cmds.cmds) != 0 {
		t.Error("expected the command removed")
	}
}

func TestTailLogs(t *testing.T) {
	srv, _, _, logs := newTestServer()
	for i := 0; i < 3; i++ {
		logs.entries = append(logs.entries, &types.LogEntry{
			ID:       types.NewLogID(),
			TenantID: "dev1",
			Kind:     types.LogCommand,
			Message:  fmt.Sprintf("entry %d", i),
			At:       time.Now(),
		})
	}
	logs.entries = append(logs.entries, &types.LogEntry{
		ID: types.NewLogID(), TenantID: "dev2", Kind: types.LogSystem, Message: "other tenant", At: time.Now(),
	})

	w := doJSON(t, srv, http.MethodGet, "/api/tenants/dev1/logs?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var entries []*types.LogEntry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "entry 2" {
		t.Errorf("expected newest first, got %q", entries[0].Message)
	}
}

// Package httpapi is the admin HTTP surface: session start/stop/status,
// command authoring, and audit log access, all scoped per tenant.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/botmux/internal/commands"
	"github.com/user/botmux/internal/types"
)

// SessionAdmin is the slice of the session manager the API exposes.
type SessionAdmin interface {
	Start(ctx context.Context, tenant types.TenantID, encToken string) (*types.SessionRecord, error)
	Stop(ctx context.Context, tenant types.TenantID) (bool, error)
	Status(ctx context.Context, tenant types.TenantID) (*types.SessionRecord, error)
}

// CommandAdmin is the slice of the command table the API exposes.
type CommandAdmin interface {
	Create(ctx context.Context, tenant types.TenantID, name, description, response, script string) (*types.Command, error)
	Update(ctx context.Context, tenant types.TenantID, id types.CommandID, fields commands.UpdateFields) (*types.Command, error)
	Delete(ctx context.Context, tenant types.TenantID, id types.CommandID) error
	ListForTenant(ctx context.Context, tenant types.TenantID) ([]*types.Command, error)
}

// Server is the admin HTTP handler.
type Server struct {
	sessions SessionAdmin
	commands CommandAdmin
	logs     types.LogStore
	mux      *http.ServeMux
}

// NewServer creates a Server wired to the manager, command table, and log store.
func NewServer(sessions SessionAdmin, cmds CommandAdmin, logs types.LogStore) *Server {
	s := &Server{
		sessions: sessions,
		commands: cmds,
		logs:     logs,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/tenants/{tenant}/session/start", s.handleStart)
	s.mux.HandleFunc("POST /api/tenants/{tenant}/session/stop", s.handleStop)
	s.mux.HandleFunc("GET /api/tenants/{tenant}/session", s.handleStatus)
	s.mux.HandleFunc("GET /api/tenants/{tenant}/logs", s.handleLogs)
	s.mux.HandleFunc("GET /api/tenants/{tenant}/commands", s.handleListCommands)
	s.mux.HandleFunc("POST /api/tenants/{tenant}/commands", s.handleCreateCommand)
	s.mux.HandleFunc("PATCH /api/tenants/{tenant}/commands/{id}", s.handleUpdateCommand)
	s.mux.HandleFunc("DELETE /api/tenants/{tenant}/commands/{id}", s.handleDeleteCommand)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startRequest is the JSON body for POST /api/tenants/{tenant}/session/start.
type startRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	tenant := types.TenantID(r.PathValue("tenant"))

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, `{"error":"token is required"}`, http.StatusBadRequest)
		return
	}

	rec, err := s.sessions.Start(r.Context(), tenant, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	tenant := types.TenantID(r.PathValue("tenant"))

	stopped, err := s.sessions.Stop(r.Context(), tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenant := types.TenantID(r.PathValue("tenant"))

	rec, err := s.sessions.Status(r.Context(), tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	tenant := types.TenantID(r.PathValue("tenant"))

	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.logs.Tail(r.Context(), tenant, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*types.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	tenant := types.TenantID(r.PathValue("tenant"))

	cmds, err := s.commands.ListForTenant(r.Context(), tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	if cmds == nil {
		cmds = []*types.Command{}
	}
	writeJSON(w, http.StatusOK, cmds)
}

// commandRequest is the JSON body for creating a command.
type commandRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Response    string `json:"response"`
	Script      string `json:"script"`
}

func (s *Server) handleCreateCommand(w http.ResponseWriter, r *http.Request) {
	tenant := types.TenantID(r.PathValue("tenant"))

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
		return
	}

	cmd, err := s.commands.Create(r.Context(), tenant, req.Name, req.Description, req.Response, req.Script)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cmd)
}

// updateRequest mirrors commands.UpdateFields: absent fields stay unchanged.
type updateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Response    *string `json:"response"`
	Script      *string `json:"script"`
}

func (s *Server) handleUpdateCommand(w http.ResponseWriter, r *http.Request) {
	tenant := types.TenantID(r.PathValue("tenant"))
	id := types.CommandID(r.PathValue("id"))

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	cmd, err := s.commands.Update(r.Context(), tenant, id, commands.UpdateFields{
		Name:        req.Name,
		Description: req.Description,
		Response:    req.Response,
		Script:      req.Script,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (s *Server) handleDeleteCommand(w http.ResponseWriter, r *http.Request) {
	tenant := types.TenantID(r.PathValue("tenant"))
	id := types.CommandID(r.PathValue("id"))

	if err := s.commands.Delete(r.Context(), tenant, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrDuplicateCommand):
		status = http.StatusConflict
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidCredential):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrStartFailed), errors.Is(err, types.ErrConnectionFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		slog.Error("admin API request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

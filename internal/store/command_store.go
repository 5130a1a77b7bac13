// internal/store/command_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/user/botmux/internal/types"
)

// CommandStore is the sqlite-backed implementation of types.CommandStore.
type CommandStore struct {
	db *bun.DB
}

// NewCommandStore creates a CommandStore over an opened database.
func NewCommandStore(db *bun.DB) *CommandStore {
	return &CommandStore{db: db}
}

func commandRowFromModel(cmd *types.Command) *commandRow {
	return &commandRow{
		ID:          string(cmd.ID),
		TenantID:    string(cmd.TenantID),
		Name:        cmd.Name,
		Description: cmd.Description,
		Response:    cmd.Response,
		Script:      cmd.Script,
		UsageCount:  cmd.UsageCount,
		LastUsedAt:  cmd.LastUsedAt,
		CreatedAt:   cmd.CreatedAt,
		UpdatedAt:   cmd.UpdatedAt,
	}
}

func commandRowToModel(row *commandRow) *types.Command {
	return &types.Command{
		ID:          types.CommandID(row.ID),
		TenantID:    types.TenantID(row.TenantID),
		Name:        row.Name,
		Description: row.Description,
		Response:    row.Response,
		Script:      row.Script,
		UsageCount:  row.UsageCount,
		LastUsedAt:  row.LastUsedAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (s *CommandStore) Create(ctx context.Context, cmd *types.Command) error {
	exists, err := s.db.NewSelect().
		Model((*commandRow)(nil)).
		Where("tenant_id = ?", string(cmd.TenantID)).
		Where("name = ?", cmd.Name).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCommand, cmd.Name)
	}
	if _, err := s.db.NewInsert().Model(commandRowFromModel(cmd)).Exec(ctx); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %s", types.ErrDuplicateCommand, cmd.Name)
		}
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

func (s *CommandStore) Update(ctx context.Context, cmd *types.Command) error {
	res, err := s.db.NewUpdate().
		Model(commandRowFromModel(cmd)).
		Column("name", "description", "response", "script", "updated_at").
		WherePK().
		Where("tenant_id = ?", string(cmd.TenantID)).
		Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %s", types.ErrDuplicateCommand, cmd.Name)
		}
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: command %s", types.ErrNotFound, cmd.ID)
	}
	return nil
}

func (s *CommandStore) Delete(ctx context.Context, tenant types.TenantID, id types.CommandID) error {
	res, err := s.db.NewDelete().
		Model((*commandRow)(nil)).
		Where("id = ?", string(id)).
		Where("tenant_id = ?", string(tenant)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: command %s", types.ErrNotFound, id)
	}
	return nil
}

func (s *CommandStore) Get(ctx context.Context, tenant types.TenantID, id types.CommandID) (*types.Command, error) {
	var row commandRow
	err := s.db.NewSelect().
		Model(&row).
		Where("id = ?", string(id)).
		Where("tenant_id = ?", string(tenant)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: command %s", types.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return commandRowToModel(&row), nil
}

func (s *CommandStore) FindByName(ctx context.Context, tenant types.TenantID, name string) (*types.Command, error) {
	var row commandRow
	err := s.db.NewSelect().
		Model(&row).
		Where("tenant_id = ?", string(tenant)).
		Where("name = ?", types.NormalizeName(name)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: command %q", types.ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return commandRowToModel(&row), nil
}

func (s *CommandStore) RecordInvocation(ctx context.Context, tenant types.TenantID, name string) error {
	now := time.Now()
	res, err := s.db.NewUpdate().
		Model((*commandRow)(nil)).
		Set("usage_count = usage_count + 1").
		Set("last_used_at = ?", now).
		Where("tenant_id = ?", string(tenant)).
		Where("name = ?", types.NormalizeName(name)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: command %q", types.ErrNotFound, name)
	}
	return nil
}

func (s *CommandStore) ListForTenant(ctx context.Context, tenant types.TenantID) ([]*types.Command, error) {
	var rows []commandRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("tenant_id = ?", string(tenant)).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	out := make([]*types.Command, 0, len(rows))
	for i := range rows {
		out = append(out, commandRowToModel(&rows[i]))
	}
	return out, nil
}

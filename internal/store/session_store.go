// internal/store/session_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/user/botmux/internal/types"
)

// SessionStore is the sqlite-backed implementation of types.SessionStore.
// One row per tenant; Upsert replaces the previous summary.
type SessionStore struct {
	db *bun.DB
}

// NewSessionStore creates a SessionStore over an opened database.
func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Upsert(ctx context.Context, rec *types.SessionRecord) error {
	row := &sessionRow{
		TenantID:   string(rec.TenantID),
		RemoteID:   rec.Identity.ID,
		Username:   rec.Identity.Username,
		GuildCount: rec.GuildCount,
		Online:     rec.Online,
		Token:      rec.Token,
		StartedAt:  rec.StartedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (tenant_id) DO UPDATE").
		Set("remote_id = EXCLUDED.remote_id").
		Set("username = EXCLUDED.username").
		Set("guild_count = EXCLUDED.guild_count").
		Set("online = EXCLUDED.online").
		Set("token = EXCLUDED.token").
		Set("started_at = EXCLUDED.started_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, tenant types.TenantID) (*types.SessionRecord, error) {
	var row sessionRow
	err := s.db.NewSelect().
		Model(&row).
		Where("tenant_id = ?", string(tenant)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: session for tenant %s", types.ErrNotFound, tenant)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return &types.SessionRecord{
		TenantID:   types.TenantID(row.TenantID),
		Identity:   types.Identity{ID: row.RemoteID, Username: row.Username},
		GuildCount: row.GuildCount,
		Online:     row.Online,
		Token:      row.Token,
		StartedAt:  row.StartedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

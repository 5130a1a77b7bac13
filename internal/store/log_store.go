// internal/store/log_store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/user/botmux/internal/types"
)

// LogStore is the sqlite-backed implementation of types.LogStore. Entries
// are append-only; nothing in here mutates or deletes them.
type LogStore struct {
	db *bun.DB
}

// NewLogStore creates a LogStore over an opened database.
func NewLogStore(db *bun.DB) *LogStore {
	return &LogStore{db: db}
}

func (s *LogStore) Append(ctx context.Context, entry *types.LogEntry) error {
	var data string
	if entry.Data != nil {
		raw, err := json.Marshal(entry.Data)
		if err != nil {
			return fmt.Errorf("marshal log data: %w", err)
		}
		data = string(raw)
	}
	row := &logRow{
		ID:       string(entry.ID),
		TenantID: string(entry.TenantID),
		Kind:     string(entry.Kind),
		Message:  entry.Message,
		Data:     data,
		At:       entry.At,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

func (s *LogStore) Tail(ctx context.Context, tenant types.TenantID, limit int) ([]*types.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []logRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("tenant_id = ?", string(tenant)).
		Order("at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	out := make([]*types.LogEntry, 0, len(rows))
	for i := range rows {
		entry := &types.LogEntry{
			ID:       types.LogID(rows[i].ID),
			TenantID: types.TenantID(rows[i].TenantID),
			Kind:     types.LogKind(rows[i].Kind),
			Message:  rows[i].Message,
			At:       rows[i].At,
		}
		if rows[i].Data != "" {
			if err := json.Unmarshal([]byte(rows[i].Data), &entry.Data); err != nil {
				return nil, fmt.Errorf("unmarshal log data: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

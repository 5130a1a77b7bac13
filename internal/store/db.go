// Package store implements the Command, Session, and Log stores on sqlite
// through the bun ORM. The rest of the system only sees the interfaces in
// internal/types; callers must tolerate a slightly stale read while a sync
// is in flight.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// commandRow is the bun mapping for persisted commands.
type commandRow struct {
	bun.BaseModel `bun:"table:commands"`
	ID            string     `bun:"id,pk"`
	TenantID      string     `bun:"tenant_id,notnull"`
	Name          string     `bun:"name,notnull"`
	Description   string     `bun:"description"`
	Response      string     `bun:"response"`
	Script        string     `bun:"script"`
	UsageCount    int64      `bun:"usage_count,notnull,default:0"`
	LastUsedAt    *time.Time `bun:"last_used_at"`
	CreatedAt     time.Time  `bun:"created_at,notnull"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull"`
}

// sessionRow is the bun mapping for persisted session summaries.
type sessionRow struct {
	bun.BaseModel `bun:"table:sessions"`
	TenantID      string    `bun:"tenant_id,pk"`
	RemoteID      string    `bun:"remote_id"`
	Username      string    `bun:"username"`
	GuildCount    int       `bun:"guild_count"`
	Online        bool      `bun:"online"`
	Token         string    `bun:"token"`
	StartedAt     time.Time `bun:"started_at"`
	UpdatedAt     time.Time `bun:"updated_at"`
}

// logRow is the bun mapping for audit log entries. Data is stored as JSON.
type logRow struct {
	bun.BaseModel `bun:"table:logs"`
	ID            string    `bun:"id,pk"`
	TenantID      string    `bun:"tenant_id,notnull"`
	Kind          string    `bun:"kind,notnull"`
	Message       string    `bun:"message"`
	Data          string    `bun:"data"`
	At            time.Time `bun:"at,notnull"`
}

// Open connects to the sqlite database at dsn and ensures the schema exists.
func Open(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := createSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func createSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*commandRow)(nil),
		(*sessionRow)(nil),
		(*logRow)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	// Uniqueness backstop for (tenant, normalized name); the command store
	// checks before insert, the index catches races.
	if _, err := db.NewCreateIndex().
		Model((*commandRow)(nil)).
		Index("idx_commands_tenant_name").
		Unique().
		IfNotExists().
		Column("tenant_id", "name").
		Exec(ctx); err != nil {
		return fmt.Errorf("create command index: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*logRow)(nil)).
		Index("idx_logs_tenant_at").
		IfNotExists().
		Column("tenant_id", "at").
		Exec(ctx); err != nil {
		return fmt.Errorf("create log index: %w", err)
	}
	return nil
}

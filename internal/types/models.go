// internal/types/models.go
package types

import (
	"time"
)

// Command is a tenant-authored named command. Name is stored in its
// normalized form; (TenantID, Name) is unique. A non-empty Script takes
// precedence over Response when both are set.
type Command struct {
	ID          CommandID `json:"id"`
	TenantID    TenantID  `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Response    string    `json:"response,omitempty"`
	Script      string    `json:"script,omitempty"`
	UsageCount  int64     `json:"usage_count"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Identity is the remote identity a connection reports once ready.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SessionRecord is the persisted summary of a tenant's session. Token holds
// the vault ciphertext of the platform credential; the plaintext never leaves
// the connect path.
type SessionRecord struct {
	TenantID   TenantID  `json:"tenant_id"`
	Identity   Identity  `json:"identity"`
	GuildCount int       `json:"guild_count"`
	Online     bool      `json:"online"`
	Token      string    `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LogKind is the closed set of audit log categories.
type LogKind string

const (
	LogCommand LogKind = "command"
	LogSession LogKind = "session"
	LogError   LogKind = "error"
	LogSystem  LogKind = "system"
)

// LogEntry is one append-only audit record. Data is an open, schema-less
// attachment; Kind stays a closed enumeration so consumers can dispatch on it.
type LogEntry struct {
	ID       LogID          `json:"id"`
	TenantID TenantID       `json:"tenant_id"`
	Kind     LogKind        `json:"kind"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
	At       time.Time      `json:"at"`
}

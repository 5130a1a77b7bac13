// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

// TenantID is the opaque device identifier that partitions every entity.
type TenantID string
type CommandID string
type LogID string

func NewCommandID() CommandID {
	return CommandID(uuid.New().String())
}

func NewLogID() LogID {
	return LogID(uuid.New().String())
}

// NormalizeName folds a command name to its canonical lookup form.
// Command names are unique per tenant after normalization.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

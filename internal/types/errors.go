// internal/types/errors.go
package types

import (
	"errors"
)

var (
	// ErrInvalidCredential covers malformed, foreign-keyed, or empty
	// credentials coming out of the vault.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrDuplicateCommand means (tenant, normalized name) already exists.
	ErrDuplicateCommand = errors.New("duplicate command")
	ErrNotFound         = errors.New("not found")
	// ErrConnectionFailed is terminal for a connect attempt; no retry.
	ErrConnectionFailed = errors.New("connection failed")
	ErrStartFailed      = errors.New("start failed")
	// ErrSandbox wraps any failure raised by a tenant script.
	ErrSandbox    = errors.New("script execution failed")
	ErrSyncFailed = errors.New("command sync failed")
	ErrStorage    = errors.New("storage error")
)

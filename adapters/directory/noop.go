package directory

import (
	"context"

	"github.com/quietpage/reflectd/ports"
)

// NoopDirectory is used when no directory is configured. Every lookup misses,
// so ingestion falls back to skip-and-ack for unknown customers.
type NoopDirectory struct{}

// NewNoopDirectory creates a new no-op directory.
func NewNoopDirectory() *NoopDirectory {
	return &NoopDirectory{}
}

// UserIDByEmail always reports the user as unknown.
func (d *NoopDirectory) UserIDByEmail(ctx context.Context, email string) (string, error) {
	return "", ports.ErrNotFound
}

// Ensure interface compliance.
var _ ports.Directory = (*NoopDirectory)(nil)

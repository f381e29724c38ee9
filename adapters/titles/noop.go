package titles

import (
	"context"
	"errors"

	"github.com/quietpage/reflectd/domain/journal"
	"github.com/quietpage/reflectd/ports"
)

// ErrGenerationDisabled is returned when title generation is not configured.
// Callers fall back to the deterministic default titles.
var ErrGenerationDisabled = errors.New("title generation is not configured")

// NoopGenerator is a no-op title generator for when generation is disabled.
type NoopGenerator struct{}

// NewNoopGenerator creates a new no-op title generator.
func NewNoopGenerator() *NoopGenerator {
	return &NoopGenerator{}
}

// Generate always fails so callers use the default title.
func (g *NoopGenerator) Generate(ctx context.Context, summary string) (journal.Generated, error) {
	return journal.Generated{}, ErrGenerationDisabled
}

// Ensure interface compliance.
var _ ports.TitleGenerator = (*NoopGenerator)(nil)

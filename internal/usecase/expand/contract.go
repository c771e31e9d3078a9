package expand

import (
	"context"

	"github.com/kailas-cloud/casequery/internal/domain"
)

// Cache stores successful expansions keyed by raw query.
type Cache interface {
	Lookup(ctx context.Context, raw string) (domain.Expansion, bool)
	Store(ctx context.Context, raw string, exp domain.Expansion)
}

package search

import (
	"context"

	"github.com/kailas-cloud/casequery/internal/domain"
	domquery "github.com/kailas-cloud/casequery/internal/domain/search/query"
	"github.com/kailas-cloud/casequery/internal/domain/search/result"
)

// Engine executes structured queries against the full-text backend.
type Engine interface {
	Search(ctx context.Context, q *domquery.Query) (*result.Response, error)
	Ping(ctx context.Context) error
}

// Expander expands a raw query, degrading to the verbatim query on failure.
type Expander interface {
	ExpandOrFallback(ctx context.Context, raw string) (domain.Expansion, bool)
}

// QueryBuilder turns the session log into a structured query.
type QueryBuilder interface {
	Build(log domain.Log) (*domquery.Query, error)
}

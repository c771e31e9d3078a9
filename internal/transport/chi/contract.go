package chi

import (
	"context"

	domusage "github.com/kailas-cloud/casequery/internal/domain/usage"
	healthuc "github.com/kailas-cloud/casequery/internal/usecase/health"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
)

// Searcher runs one conversational search turn.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (searchuc.Page, error)
}

// UsageReporter reports generator token usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

package usage

import domusage "github.com/kailas-cloud/casequery/internal/domain/usage"

// BudgetReader provides read-only access to generation budget state.
type BudgetReader interface {
	Snapshot(period domusage.Period) (used int64, budget domusage.Budget)
}

package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/casequery/internal/domain/usage"
)

// Service handles generation usage reporting.
type Service struct {
	br       BudgetReader
	provider string
	now      func() time.Time
}

// New creates a Service. br can be nil (no budget configured).
func New(br BudgetReader, provider string) *Service {
	return &Service{br: br, provider: provider, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds a usage report for the given period.
// PeriodTotal has no boundaries and reports the current month's counters.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now()
	var start, end int64

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start, end = dayStart.UnixMilli(), dayStart.AddDate(0, 0, 1).UnixMilli()
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start, end = monthStart.UnixMilli(), monthStart.AddDate(0, 1, 0).UnixMilli()
	}

	if s.br == nil {
		return domusage.NewReport(period, start, end, s.provider, 0, domusage.NewBudget(0, -1, false, end))
	}
	used, b := s.br.Snapshot(period)
	return domusage.NewReport(period, start, end, s.provider, used, b)
}

package chi

import (
	"context"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/domain/search/result"
	domusage "github.com/kailas-cloud/casequery/internal/domain/usage"
	healthuc "github.com/kailas-cloud/casequery/internal/usecase/health"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
)

type mockSearcher struct {
	page     searchuc.Page
	err      error
	tokens   int
	requests []searchuc.Request
}

func (m *mockSearcher) Search(ctx context.Context, req searchuc.Request) (searchuc.Page, error) {
	m.requests = append(m.requests, req)
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).Record(m.tokens)
	}
	return m.page, m.err
}

type mockUsage struct {
	report  domusage.Report
	periods []domusage.Period
}

func (m *mockUsage) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	m.periods = append(m.periods, period)
	return m.report
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func samplePage() searchuc.Page {
	return searchuc.Page{
		Hits: []result.SearchHit{
			result.NewSearchHit(12.5, "2023-12-01", "State v. Rao", "https://viewer.example/?url=a.pdf",
				[]string{"the <em>sanction</em> was refused", "a < b & c"}),
		},
		Total:     7,
		Corrected: "sanction",
		Session:   "TOKEN2",
		Queries:   []string{"murder", "sanctoin"},
		Searched:  true,
	}
}

func newTestServer(t *testing.T, search Searcher) *Server {
	t.Helper()
	healthy := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"engine": healthuc.CheckOK},
	}}
	s, err := NewServer(search, &mockUsage{}, healthy, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func newTestRouter(t *testing.T, s *Server, users map[string]string) http.Handler {
	t.Helper()
	return NewRouter(s, RouterConfig{Users: users, Logger: zap.NewNop()})
}

func emptyPage() searchuc.Page {
	return searchuc.Page{Session: "EMPTY"}
}

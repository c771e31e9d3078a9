package casequery

import (
	"context"
	"strings"

	bleveEngine "github.com/kailas-cloud/casequery/internal/engine/bleve"
	healthuc "github.com/kailas-cloud/casequery/internal/usecase/health"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn  func(ctx context.Context, req searchuc.Request) (searchuc.Page, error)
	explainFn func(ctx context.Context, req searchuc.Request, expand bool) (searchuc.Plan, error)
}

func (m *mockSearchUC) Search(ctx context.Context, req searchuc.Request) (searchuc.Page, error) {
	return m.searchFn(ctx, req)
}

func (m *mockSearchUC) Explain(ctx context.Context, req searchuc.Request, expand bool) (searchuc.Plan, error) {
	return m.explainFn(ctx, req, expand)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report {
	return m.report
}

// --- indexer mock ---

type mockIndexer struct {
	docs   []bleveEngine.Document
	err    error
	closed bool
}

func (m *mockIndexer) Index(_ context.Context, docs []bleveEngine.Document) error {
	m.docs = append(m.docs, docs...)
	return m.err
}

func (m *mockIndexer) Close() error {
	m.closed = true
	return nil
}

// --- Generator fake ---

// fakeGenerator answers with a canned expansion picked by a substring of the user message.
type fakeGenerator struct {
	answers map[string]string
	tokens  int
	calls   int
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, _, user string) (Generation, error) {
	g.calls++
	if g.err != nil {
		return Generation{}, g.err
	}
	for key, answer := range g.answers {
		if strings.Contains(user, key) {
			return Generation{Text: answer, TotalTokens: g.tokens}, nil
		}
	}
	return Generation{Text: "not json", TotalTokens: g.tokens}, nil
}

package casequery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/casequery/internal/usecase/health"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
)

func judgments() []Document {
	return []Document{
		{
			ID:          "recent-sanction",
			Text:        "The denial of sanction for prosecution of the public servant was upheld by the court.",
			Date:        "2023-12-01",
			CaseName:    "State v. Rao",
			DocumentURL: "doc/1.pdf",
		},
		{
			ID:       "old-sanction",
			Text:     "The denial of sanction for prosecution was upheld on appeal.",
			Date:     "2001-05-10",
			CaseName: "Union v. Mehta",
		},
		{
			ID:   "bail",
			Text: "Anticipatory bail granted to the accused pending investigation.",
			Date: "2023-06-01",
		},
	}
}

func newBleveClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBleve(""), WithViewerBaseURL("https://viewer.example/")}, opts...)
	c, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Index(context.Background(), judgments()); err != nil {
		t.Fatalf("Index: %v", err)
	}
	return c
}

func TestNew_RequiresEngine(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error without an engine option")
	}
}

func TestClient_EndToEndWithGenerator(t *testing.T) {
	gen := &fakeGenerator{
		tokens: 42,
		answers: map[string]string{
			"sanction": `{"search": [["denial of sanction", "refusal of sanction"]], "highlight": ["sanction"]}`,
			"servant":  "```json\n{\"search\": [[\"public servant\"]], \"highlight\": [[\"public servant\", 1]]}\n```",
		},
	}
	c := newBleveClient(t, WithGenerator(gen, "expand", "fix"))
	ctx := context.Background()

	first, err := c.Search(ctx, "sanction denied", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if first.Degraded || !first.Searched {
		t.Errorf("degraded=%v searched=%v", first.Degraded, first.Searched)
	}
	if first.Total != 2 || len(first.Hits) != 2 {
		t.Fatalf("total=%d hits=%d, want both sanction judgments", first.Total, len(first.Hits))
	}
	if first.GenerationTokens != 42 {
		t.Errorf("generation tokens = %d, want 42", first.GenerationTokens)
	}
	if first.Session == "" {
		t.Fatal("empty session token")
	}

	second, err := c.Search(ctx, "public servant", first.Session)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if second.Total != 1 {
		t.Fatalf("total = %d, want the turns to narrow to one judgment", second.Total)
	}
	hit := second.Hits[0]
	if hit.CaseName != "State v. Rao" || hit.DocumentURL != "https://viewer.example/doc/1.pdf" {
		t.Errorf("hit = %+v", hit)
	}
	if got := strings.Join(second.Queries, "|"); got != "sanction denied|public servant" {
		t.Errorf("queries = %q", got)
	}
}

func TestClient_WithoutGeneratorSearchesVerbatim(t *testing.T) {
	c := newBleveClient(t)

	page, err := c.Search(context.Background(), "anticipatory bail", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !page.Degraded {
		t.Error("expected a degraded page without a generator")
	}
	if page.Total != 1 || page.Hits[0].CaseName != searchuc.CaseNameNotAvailable {
		t.Errorf("page = %+v", page)
	}
	if page.Hits[0].Date != "2023-06-01" {
		t.Errorf("date = %q", page.Hits[0].Date)
	}
}

func TestClient_GeneratorFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: quota", domain.ErrGenerationQuotaExceeded)}
	c := newBleveClient(t, WithGenerator(gen, "expand", "fix"))

	page, err := c.Search(context.Background(), "anticipatory bail", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !page.Degraded || page.Total != 1 {
		t.Errorf("degraded=%v total=%d", page.Degraded, page.Total)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want no retry after quota", gen.calls)
	}
}

func TestClient_BlankQueryKeepsSession(t *testing.T) {
	c := newBleveClient(t)
	ctx := context.Background()

	first, err := c.Search(ctx, "bail", "")
	if err != nil {
		t.Fatal(err)
	}
	page, err := c.Search(ctx, "   ", first.Session)
	if err != nil {
		t.Fatal(err)
	}
	if page.Searched || len(page.Hits) != 0 {
		t.Errorf("blank query searched: %+v", page)
	}
	if len(page.Queries) != 1 || page.Queries[0] != "bail" {
		t.Errorf("queries = %v", page.Queries)
	}
}

func TestClient_Explain(t *testing.T) {
	c := newBleveClient(t)

	exp, err := c.Explain(context.Background(), "bail", "", false)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if exp.Degraded || exp.Session == "" || len(exp.Queries) != 1 {
		t.Errorf("explanation = %+v", exp)
	}
	if _, ok := exp.Body["query"]; !ok {
		t.Errorf("body has no query: %v", exp.Body)
	}
}

func TestClient_Health(t *testing.T) {
	c := newBleveClient(t)
	h := c.Health(context.Background())
	if h.Status != "ok" || h.Checks["engine"] != "ok" || !h.Ready() {
		t.Errorf("health = %+v", h)
	}
}

func TestClient_SearchErrorWraps(t *testing.T) {
	c := &Client{searchSvc: &mockSearchUC{
		searchFn: func(context.Context, searchuc.Request) (searchuc.Page, error) {
			return searchuc.Page{}, domain.NewEngineError(503, "unavailable")
		},
	}}
	_, err := c.Search(context.Background(), "bail", "")
	if !errors.Is(err, ErrEngine) {
		t.Errorf("err = %v, want ErrEngine", err)
	}
}

func TestClient_SearchConvertsPage(t *testing.T) {
	var got searchuc.Request
	c := &Client{searchSvc: &mockSearchUC{
		searchFn: func(_ context.Context, req searchuc.Request) (searchuc.Page, error) {
			got = req
			return searchuc.Page{
				Hits:      []result.SearchHit{result.NewSearchHit(1.5, "2020-01-01", "A v. B", "u", []string{"<em>x</em>"})},
				Total:     7,
				Corrected: "bail",
				Session:   "tok2",
				Queries:   []string{"bial"},
				Searched:  true,
			}, nil
		},
	}}
	page, err := c.Search(context.Background(), "bial", "tok1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Query != "bial" || got.Session != "tok1" {
		t.Errorf("request = %+v", got)
	}
	if page.Total != 7 || page.Corrected != "bail" || page.Session != "tok2" {
		t.Errorf("page = %+v", page)
	}
	if len(page.Hits) != 1 || page.Hits[0].Score != 1.5 || page.Hits[0].Snippets[0] != "<em>x</em>" {
		t.Errorf("hits = %+v", page.Hits)
	}
}

func TestClient_IndexRequiresBleve(t *testing.T) {
	c := &Client{}
	err := c.Index(context.Background(), judgments())
	if !errors.Is(err, ErrIndexNotSupported) {
		t.Errorf("err = %v, want ErrIndexNotSupported", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close without index: %v", err)
	}
}

func TestClient_IndexConvertsDocuments(t *testing.T) {
	idx := &mockIndexer{}
	c := &Client{index: idx}
	if err := c.Index(context.Background(), judgments()[:1]); err != nil {
		t.Fatal(err)
	}
	if len(idx.docs) != 1 || idx.docs[0].ID != "recent-sanction" || idx.docs[0].CaseName != "State v. Rao" {
		t.Errorf("indexed = %+v", idx.docs)
	}
	_ = c.Close()
	if !idx.closed {
		t.Error("Close did not close the index")
	}
}

func TestClient_HealthMapsReport(t *testing.T) {
	c := &Client{healthSvc: &mockHealthUC{report: healthuc.Report{
		Status: healthuc.Unhealthy,
		Checks: map[string]healthuc.CheckResult{"engine": healthuc.CheckError},
	}}}
	h := c.Health(context.Background())
	if h.Status != "error" || h.Checks["engine"] != "error" || h.Ready() {
		t.Errorf("health = %+v", h)
	}
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newBleveClient(t, WithPrometheus(reg))

	if _, err := c.Search(context.Background(), "bail", ""); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("search", "ok")); got != 1 {
		t.Errorf("search ok = %v", got)
	}
	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("index", "ok")); got != 1 {
		t.Errorf("index ok = %v", got)
	}
	if got := testutil.ToFloat64(c.obs.metrics.degraded); got != 1 {
		t.Errorf("degraded = %v", got)
	}
}

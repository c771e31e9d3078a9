package bleve

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	domquery "github.com/kailas-cloud/casequery/internal/domain/search/query"
	"github.com/kailas-cloud/casequery/internal/domain/search/result"
	"github.com/kailas-cloud/casequery/internal/metrics"
)

const engineName = "bleve"

// DefaultCandidates bounds how many filter matches are scored.
const DefaultCandidates = 1000

var dateLayouts = []string{"2006-01-02", time.RFC3339, "02-01-2006", "2006/01/02"}

// Engine scores like the Elasticsearch backend: the filter selects candidates, matching
// boost clauses add their constant weights, and the gaussian date decay multiplies in.
type Engine struct {
	index      bleve.Index
	candidates int
	now        func() time.Time
	logger     *zap.Logger
}

// New wraps an open index. candidates <= 0 uses DefaultCandidates.
func New(index bleve.Index, candidates int, logger *zap.Logger) *Engine {
	if candidates <= 0 {
		candidates = DefaultCandidates
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{index: index, candidates: candidates, now: time.Now, logger: logger}
}

// Search runs the structured query.
func (e *Engine) Search(ctx context.Context, q *domquery.Query) (*result.Response, error) {
	start := time.Now()
	resp, err := e.search(ctx, q)
	metrics.ObserveEngine(engineName, time.Since(start).Seconds(), err)
	if err != nil {
		e.logger.Warn("Bleve search failed", zap.Error(err))
		return nil, domain.NewEngineError(0, err.Error())
	}
	return resp, nil
}

type candidate struct {
	id       string
	score    float64
	date     string
	caseName string
	url      string
}

func (e *Engine) search(ctx context.Context, q *domquery.Query) (*result.Response, error) {
	filter, err := e.filterQuery(q.Filter)
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(filter, e.candidates, 0, false)
	req.Fields = []string{FieldDate, FieldCaseName, FieldDocumentURL}
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("filter search: %w", err)
	}

	cands := make(map[string]*candidate, len(res.Hits))
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		cands[h.ID] = &candidate{
			id:       h.ID,
			date:     stringField(h.Fields, FieldDate),
			caseName: stringField(h.Fields, FieldCaseName),
			url:      stringField(h.Fields, FieldDocumentURL),
		}
		ids = append(ids, h.ID)
	}

	if len(ids) > 0 {
		for _, w := range q.Boosts {
			matched, err := e.matching(ctx, ids, w.Clause)
			if err != nil {
				return nil, err
			}
			for _, id := range matched {
				cands[id].score += w.Weight
			}
		}
	}

	ranked := make([]*candidate, 0, len(cands))
	for _, c := range cands {
		if q.Decay != nil {
			c.score *= e.decayFactor(*q.Decay, c.date)
		}
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if q.Size > 0 && len(ranked) > q.Size {
		ranked = ranked[:q.Size]
	}

	var fragments map[string][]string
	if q.Highlight != nil && len(q.Highlight.Clauses) > 0 && len(ranked) > 0 {
		top := make([]string, len(ranked))
		for i, c := range ranked {
			top[i] = c.id
		}
		if fragments, err = e.highlight(ctx, top, q.Highlight); err != nil {
			return nil, err
		}
	}

	out := &result.Response{Total: int(res.Total), Hits: make([]result.Hit, len(ranked))}
	for i, c := range ranked {
		out.Hits[i] = result.Hit{
			ID:          c.id,
			Score:       c.score,
			Date:        c.date,
			CaseName:    c.caseName,
			DocumentURL: c.url,
			Fragments:   fragments[c.id],
		}
	}

	if s := q.Suggest; s != nil && s.Text != "" {
		if out.Suggest, err = e.suggest(s.Field, s.Text); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *Engine) filterQuery(clauses []domquery.Clause) (blevequery.Query, error) {
	if len(clauses) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}
	qs, err := translateAll(clauses, 0)
	if err != nil {
		return nil, err
	}
	return bleve.NewConjunctionQuery(qs...), nil
}

// matching returns the candidate ids that also match c.
func (e *Engine) matching(ctx context.Context, ids []string, c domquery.Clause) ([]string, error) {
	bq, err := translate(c, 0)
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(
		bleve.NewConjunctionQuery(bleve.NewDocIDQuery(ids), bq), len(ids), 0, false)
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("boost search: %w", err)
	}
	out := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.ID
	}
	return out, nil
}

// highlight runs the highlight sub-query over ids. The html highlighter marks with
// <mark> and escapes text; fragments are rewritten to raw text marked with <em>, as
// the Elasticsearch highlighter emits.
func (e *Engine) highlight(ctx context.Context, ids []string, h *domquery.Highlight) (map[string][]string, error) {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(bleve.NewDocIDQuery(ids))
	for _, w := range h.Clauses {
		q, err := translate(w.Clause, w.Weight)
		if err != nil {
			return nil, err
		}
		bq.AddShould(q)
	}

	req := bleve.NewSearchRequestOptions(bq, len(ids), 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField(h.Field)
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("highlight search: %w", err)
	}

	marks := strings.NewReplacer("<mark>", "<em>", "</mark>", "</em>")
	out := make(map[string][]string, len(res.Hits))
	for _, hit := range res.Hits {
		frags := hit.Fragments[h.Field]
		if h.Fragments > 0 && len(frags) > h.Fragments {
			frags = frags[:h.Fragments]
		}
		for _, f := range frags {
			out[hit.ID] = append(out[hit.ID], html.UnescapeString(marks.Replace(f)))
		}
	}
	return out, nil
}

// decayFactor is 1 for documents without a parseable date, as in Elasticsearch.
func (e *Engine) decayFactor(d domquery.Decay, date string) float64 {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return d.Factor(e.now().Sub(t))
		}
	}
	return 1
}

// Ping checks the index is open.
func (e *Engine) Ping(_ context.Context) error {
	if _, err := e.index.DocCount(); err != nil {
		return domain.NewEngineError(0, err.Error())
	}
	return nil
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

// Package search runs one conversational search turn end to end.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	domquery "github.com/kailas-cloud/casequery/internal/domain/search/query"
	"github.com/kailas-cloud/casequery/internal/domain/search/result"
	"github.com/kailas-cloud/casequery/internal/logger"
	"github.com/kailas-cloud/casequery/internal/metrics"
	"github.com/kailas-cloud/casequery/internal/session"
	"github.com/kailas-cloud/casequery/internal/usecase/results"
)

// Placeholders shown when a hit lacks metadata.
const (
	DateNotAvailable     = "Date not available"
	CaseNameNotAvailable = "Case name not available"
)

// Request is one search turn: the new raw query and the opaque session token.
type Request struct {
	Query   string
	Session string
}

// Page is the outcome of a search turn.
type Page struct {
	Hits []result.SearchHit
	// Total is the engine's match count, which may exceed len(Hits).
	Total int
	// Corrected is the "did you mean" query, empty when none.
	Corrected string
	// Session is the token carrying the updated log.
	Session string
	// Queries lists the raw queries of the session, oldest first.
	Queries []string
	// Degraded is set when the expansion fell back to the verbatim query.
	Degraded bool
	// Searched is false when the request carried no query and no engine call was made.
	Searched bool
}

// Plan is the prepared turn: the updated log and the query built from it.
type Plan struct {
	Log      domain.Log
	Query    *domquery.Query
	Degraded bool
}

// Service orchestrates decode, expand, build, engine call and post-processing.
type Service struct {
	engine        Engine
	expander      Expander
	builder       QueryBuilder
	viewerBaseURL string
}

// New creates a search service. An empty viewerBaseURL uses results.DefaultViewerBaseURL.
func New(engine Engine, expander Expander, builder QueryBuilder, viewerBaseURL string) *Service {
	if viewerBaseURL == "" {
		viewerBaseURL = results.DefaultViewerBaseURL
	}
	return &Service{engine: engine, expander: expander, builder: builder, viewerBaseURL: viewerBaseURL}
}

// Search runs one turn. Only engine failures are returned; a bad session token or an
// unavailable generator degrade the turn instead.
func (s *Service) Search(ctx context.Context, req Request) (Page, error) {
	log := s.decode(ctx, req.Session)
	ctx = logger.With(ctx, zap.Int("turn", len(log)+1))

	if strings.TrimSpace(req.Query) == "" {
		token, err := session.Encode(log)
		if err != nil {
			return Page{}, fmt.Errorf("encode session: %w", err)
		}
		return Page{Session: token, Queries: log.Queries()}, nil
	}

	plan, err := s.plan(ctx, log, req.Query, true)
	if err != nil {
		return Page{}, err
	}

	resp, err := s.engine.Search(ctx, plan.Query)
	if err != nil {
		return Page{}, fmt.Errorf("engine search: %w", err)
	}

	token, err := session.Encode(plan.Log)
	if err != nil {
		return Page{}, fmt.Errorf("encode session: %w", err)
	}

	corrected := results.CorrectSpelling(resp.Suggest, req.Query)
	vocab := results.BuildVocabulary(plan.Log, corrected)
	hits := make([]result.SearchHit, len(resp.Hits))
	for i, h := range resp.Hits {
		hits[i] = s.present(h, vocab)
	}
	metrics.SearchHitsReturned.Observe(float64(len(hits)))

	logger.FromContext(ctx).Debug("search completed",
		zap.Int("turns", len(plan.Log)),
		zap.Int("hits", len(hits)),
		zap.Int("total", resp.Total),
		zap.Bool("degraded", plan.Degraded),
		zap.Bool("corrected", corrected != ""),
	)

	return Page{
		Hits:      hits,
		Total:     resp.Total,
		Corrected: corrected,
		Session:   token,
		Queries:   plan.Log.Queries(),
		Degraded:  plan.Degraded,
		Searched:  true,
	}, nil
}

// Explain prepares a turn without calling the engine. With expand false the
// generator is skipped and the query is taken verbatim.
func (s *Service) Explain(ctx context.Context, req Request, expand bool) (Plan, error) {
	return s.plan(ctx, s.decode(ctx, req.Session), req.Query, expand)
}

func (s *Service) plan(ctx context.Context, log domain.Log, raw string, expand bool) (Plan, error) {
	var (
		exp      domain.Expansion
		degraded bool
	)
	if expand {
		exp, degraded = s.expander.ExpandOrFallback(ctx, raw)
	} else {
		exp = domain.FallbackExpansion(raw)
	}

	log = log.Append(domain.Turn{Query: raw, Expansion: exp})
	q, err := s.builder.Build(log)
	if err != nil {
		return Plan{}, fmt.Errorf("build query: %w", err)
	}
	return Plan{Log: log, Query: q, Degraded: degraded}, nil
}

// decode treats a malformed token as no prior session.
func (s *Service) decode(ctx context.Context, token string) domain.Log {
	log, err := session.Decode(token)
	if err != nil {
		logger.FromContext(ctx).Warn("discarding malformed session token", zap.Error(err))
		return domain.Log{}
	}
	return log
}

func (s *Service) present(h result.Hit, vocab results.Vocabulary) result.SearchHit {
	date := h.Date
	if date == "" {
		date = DateNotAvailable
	}
	name := h.CaseName
	if name == "" {
		name = CaseNameNotAvailable
	}
	return result.NewSearchHit(
		h.Score,
		date,
		name,
		results.ResolveDocumentURL(h.DocumentURL, s.viewerBaseURL),
		results.CleanSnippets(h.Fragments, vocab),
	)
}

// Ping checks the engine.
func (s *Service) Ping(ctx context.Context) error {
	return s.engine.Ping(ctx)
}

package casequery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	bleveEngine "github.com/kailas-cloud/casequery/internal/engine/bleve"
	"github.com/kailas-cloud/casequery/internal/engine/elastic"
	"github.com/kailas-cloud/casequery/internal/session"
	expanduc "github.com/kailas-cloud/casequery/internal/usecase/expand"
	healthuc "github.com/kailas-cloud/casequery/internal/usecase/health"
	queryuc "github.com/kailas-cloud/casequery/internal/usecase/query"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
)

const (
	defaultCandidates = 1000
	defaultIndex      = "doc_zeta"
)

var errIndexNotSupported = errors.New("casequery: indexing requires the bleve engine")

// Internal interfaces for substitution in tests.
type searchUseCase interface {
	Search(ctx context.Context, req searchuc.Request) (searchuc.Page, error)
	Explain(ctx context.Context, req searchuc.Request, expand bool) (searchuc.Plan, error)
}

type indexer interface {
	Index(ctx context.Context, docs []bleveEngine.Document) error
	Close() error
}

// Client is the casequery entry point.
type Client struct {
	searchSvc searchUseCase
	healthSvc healthUseCase
	index     indexer // nil unless the bleve engine is used
	obs       *observer
}

// New creates a Client. Exactly one engine option is required.
// The provided context bounds the initial engine check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{candidates: defaultCandidates}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	params := queryuc.DefaultParams()
	builder, err := queryuc.New(params)
	if err != nil {
		return nil, fmt.Errorf("casequery: query builder: %w", err)
	}

	var (
		engine searchuc.Engine
		index  indexer
	)
	switch cfg.engine {
	case engineBleve:
		idx, err := bleveEngine.Open(cfg.blevePath)
		if err != nil {
			return nil, fmt.Errorf("casequery: open bleve index: %w", err)
		}
		e := bleveEngine.New(idx, cfg.candidates, zap.NewNop())
		engine, index = e, e
	case engineElastic:
		ec := cfg.elastic
		if ec.Index == "" {
			ec.Index = defaultIndex
		}
		e, err := elastic.New(elastic.Config{
			Addresses:      ec.Addresses,
			CloudID:        ec.CloudID,
			Username:       ec.Username,
			Password:       ec.Password,
			APIKey:         ec.APIKey,
			Index:          ec.Index,
			MaxRetries:     ec.MaxRetries,
			RequestTimeout: ec.RequestTimeout,
			Transport:      ec.Transport,
			Logger:         zap.NewNop(),
		}, params.Field)
		if err != nil {
			return nil, fmt.Errorf("casequery: create elastic engine: %w", err)
		}
		engine = e
	default:
		return nil, errors.New("casequery: search engine required (use WithBleve or WithElasticsearch)")
	}

	if err := engine.Ping(ctx); err != nil {
		if index != nil {
			_ = index.Close()
		}
		return nil, fmt.Errorf("casequery: engine not ready: %w", err)
	}

	var expander searchuc.Expander = verbatimExpander{}
	if cfg.generator != nil {
		expander = expanduc.New(
			&generatorAdapter{inner: cfg.generator},
			expanduc.Prompts{System: cfg.system, Fix: cfg.fix},
			expanduc.Config{
				MaxAttempts: cfg.maxAttempts,
				Backoff:     250 * time.Millisecond,
				MaxBackoff:  2 * time.Second,
			},
			nil,
		)
	}

	return &Client{
		searchSvc: searchuc.New(engine, expander, builder, cfg.viewerBaseURL),
		healthSvc: healthuc.New(engine, nil, nil),
		index:     index,
		obs:       obs,
	}, nil
}

// Close releases the embedded index, if any.
func (c *Client) Close() error {
	if c.index == nil {
		return nil
	}
	if err := c.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return nil
}

// Search runs one turn. token is the Session from the previous Page, or empty to start.
// A malformed session starts over; only engine failures are returned.
func (c *Client) Search(ctx context.Context, query, token string) (_ Page, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	ctx, usage := domain.NewContextWithUsage(ctx)
	p, err := c.searchSvc.Search(ctx, searchuc.Request{Query: query, Session: token})
	if err != nil {
		return Page{}, fmt.Errorf("search: %w", err)
	}
	if p.Degraded {
		c.obs.degraded(query)
	}
	out := pageFromUC(p)
	out.GenerationTokens = usage.TotalTokens
	return out, nil
}

// Explain prepares a turn without searching. With expand false the generator is skipped.
func (c *Client) Explain(ctx context.Context, query, token string, expand bool) (_ Explanation, err error) {
	start := time.Now()
	defer func() { c.obs.observe("explain", start, err) }()

	plan, err := c.searchSvc.Explain(ctx, searchuc.Request{Query: query, Session: token}, expand)
	if err != nil {
		return Explanation{}, fmt.Errorf("explain: %w", err)
	}
	body, err := elastic.Render(plan.Query)
	if err != nil {
		return Explanation{}, fmt.Errorf("explain: render: %w", err)
	}
	next, err := session.Encode(plan.Log)
	if err != nil {
		return Explanation{}, fmt.Errorf("explain: %w", err)
	}
	return Explanation{
		Queries:  plan.Log.Queries(),
		Session:  next,
		Degraded: plan.Degraded,
		Body:     body,
	}, nil
}

// Index adds documents to the embedded bleve index. It fails with
// ErrIndexNotSupported for an Elasticsearch client.
func (c *Client) Index(ctx context.Context, docs []Document) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()

	if c.index == nil {
		return errIndexNotSupported
	}
	batch := make([]bleveEngine.Document, len(docs))
	for i, d := range docs {
		batch[i] = bleveEngine.Document{
			ID:          d.ID,
			Text:        d.Text,
			Date:        d.Date,
			CaseName:    d.CaseName,
			DocumentURL: d.DocumentURL,
		}
	}
	if err = c.index.Index(ctx, batch); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return nil
}

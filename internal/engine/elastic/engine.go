// Package elastic runs structured queries against Elasticsearch.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	domquery "github.com/kailas-cloud/casequery/internal/domain/search/query"
	"github.com/kailas-cloud/casequery/internal/domain/search/result"
	"github.com/kailas-cloud/casequery/internal/metrics"
)

const engineName = "elastic"

// Config holds the Elasticsearch connection settings.
type Config struct {
	Addresses      []string
	CloudID        string
	Username       string
	Password       string
	APIKey         string
	Index          string
	MaxRetries     int
	RequestTimeout time.Duration
	// Transport overrides the HTTP transport, used by tests.
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Engine is the Elasticsearch search backend.
type Engine struct {
	client    *elasticsearch.Client
	index     string
	timeout   time.Duration
	highlight string
	logger    *zap.Logger
}

// New creates an Elasticsearch engine. The highlight field decides which field's
// fragments are read first from hits.
func New(cfg Config, highlightField string) (*Engine, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     cfg.Addresses,
		CloudID:       cfg.CloudID,
		Username:      cfg.Username,
		Password:      cfg.Password,
		APIKey:        cfg.APIKey,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		Transport:     cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:    client,
		index:     cfg.Index,
		timeout:   cfg.RequestTimeout,
		highlight: highlightField,
		logger:    logger,
	}, nil
}

// Search renders q and runs it against the configured index.
func (e *Engine) Search(ctx context.Context, q *domquery.Query) (*result.Response, error) {
	body, err := Render(q)
	if err != nil {
		return nil, fmt.Errorf("render query: %w", err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	suggest := ""
	if q.Suggest != nil {
		suggest = q.Suggest.Name
	}

	start := time.Now()
	resp, err := e.search(ctx, payload, suggest)
	metrics.ObserveEngine(engineName, time.Since(start).Seconds(), err)
	if err != nil {
		e.logger.Warn("Elasticsearch search failed", zap.String("index", e.index), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (e *Engine) search(ctx context.Context, payload []byte, suggest string) (*result.Response, error) {
	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, domain.NewEngineError(0, err.Error())
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, domain.NewEngineError(res.StatusCode, "read body: "+err.Error())
	}
	if res.IsError() {
		return nil, domain.NewEngineError(res.StatusCode, errorReason(raw))
	}
	return parseResponse(raw, e.highlight, suggest)
}

// Ping checks the cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return domain.NewEngineError(0, err.Error())
	}
	defer res.Body.Close()
	if res.IsError() {
		return domain.NewEngineError(res.StatusCode, res.Status())
	}
	return nil
}

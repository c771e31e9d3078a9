package casequery

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type engineKind int

const (
	engineNone engineKind = iota
	engineBleve
	engineElastic
)

type clientConfig struct {
	engine     engineKind
	blevePath  string
	candidates int
	elastic    ElasticConfig

	generator Generator
	system    string
	fix       string

	viewerBaseURL string
	maxAttempts   int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// ElasticConfig holds Elasticsearch connection settings. CloudID wins over Addresses.
type ElasticConfig struct {
	Addresses      []string
	CloudID        string
	Username       string
	Password       string
	APIKey         string
	Index          string // default "doc_zeta"
	MaxRetries     int
	RequestTimeout time.Duration
	Transport      http.RoundTripper
}

// WithBleve searches an embedded bleve index at path, created if missing.
// An empty path keeps the index in memory.
func WithBleve(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.engine = engineBleve
		c.blevePath = path
	})
}

// WithBleveCandidates caps how many filter matches the bleve engine scores.
// Default: 1000.
func WithBleveCandidates(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.candidates = n
	})
}

// WithElasticsearch searches an Elasticsearch index.
func WithElasticsearch(cfg ElasticConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.engine = engineElastic
		c.elastic = cfg
	})
}

// WithGenerator enables query expansion through g with the given system and fix prompts.
func WithGenerator(g Generator, systemPrompt, fixPrompt string) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
		c.system = systemPrompt
		c.fix = fixPrompt
	})
}

// WithMaxAttempts bounds generator calls per expansion. Default: 3.
func WithMaxAttempts(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxAttempts = n
	})
}

// WithViewerBaseURL sets the prefix for bare document paths in results.
func WithViewerBaseURL(u string) Option {
	return optionFunc(func(c *clientConfig) {
		c.viewerBaseURL = u
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

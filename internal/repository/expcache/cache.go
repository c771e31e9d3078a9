// Package expcache caches successful query expansions in the key-value store.
package expcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/db"
	"github.com/kailas-cloud/casequery/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "exp_cache:"

// decMode reads back raw query text that is not valid UTF-8.
var decMode = mustDecMode(cbor.DecOptions{UTF8: cbor.UTF8DecodeInvalid})

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic("expcache: CBOR decoder initialization failed: " + err.Error())
	}
	return dm
}

// store is the consumer interface for the expansion cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type entry struct {
	Search    [][]termDTO `cbor:"s"`
	Highlight []termDTO   `cbor:"h"`
}

type termDTO struct {
	Text     string `cbor:"x"`
	Stripped string `cbor:"n"`
	Priority int    `cbor:"p,omitempty"`
}

// Cache stores expansions under sha256(version, raw query).
// Bumping version (the prompt revision) orphans old entries until they expire.
type Cache struct {
	store      store
	version    string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates an expansion cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), may be nil.
func New(s store, version string, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{store: s, version: version, ttl: ttl, cacheTotal: cacheTotal, logger: logger}
}

// Lookup returns the cached expansion for raw. Store failures count as misses.
func (c *Cache) Lookup(ctx context.Context, raw string) (domain.Expansion, bool) {
	key := c.key(raw)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached expansion", zap.String("key", key), zap.Error(err))
		}
		c.inc("miss")
		return domain.Expansion{}, false
	}

	exp, err := unmarshal(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached expansion", zap.String("key", key), zap.Error(err))
		c.inc("miss")
		return domain.Expansion{}, false
	}

	c.inc("hit")
	return exp, true
}

// Store caches exp for raw. Failures are logged and dropped.
func (c *Cache) Store(ctx context.Context, raw string, exp domain.Expansion) {
	key := c.key(raw)
	data, err := marshal(exp)
	if err != nil {
		c.logger.Warn("Failed to encode expansion", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache expansion", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) key(raw string) string {
	h := sha256.New()
	h.Write([]byte(c.version))
	h.Write([]byte{0})
	h.Write([]byte(raw))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func marshal(exp domain.Expansion) ([]byte, error) {
	e := entry{Search: make([][]termDTO, len(exp.Search)), Highlight: toDTO(exp.Highlight)}
	for i, g := range exp.Search {
		e.Search[i] = toDTO(g)
	}
	data, err := cbor.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal expansion: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte) (domain.Expansion, error) {
	var e entry
	if err := decMode.Unmarshal(data, &e); err != nil {
		return domain.Expansion{}, fmt.Errorf("unmarshal expansion: %w", err)
	}
	if len(e.Search) == 0 {
		return domain.Expansion{}, errors.New("cached expansion has no search groups")
	}
	exp := domain.Expansion{Search: make([]domain.TermGroup, len(e.Search)), Highlight: fromDTO(e.Highlight)}
	for i, g := range e.Search {
		exp.Search[i] = fromDTO(g)
	}
	return exp, nil
}

func toDTO(terms []domain.Term) []termDTO {
	out := make([]termDTO, len(terms))
	for i, t := range terms {
		out[i] = termDTO{Text: t.Text(), Stripped: t.Stripped(), Priority: t.Priority()}
	}
	return out
}

func fromDTO(dtos []termDTO) []domain.Term {
	out := make([]domain.Term, len(dtos))
	for i, d := range dtos {
		out[i] = domain.ReconstructTerm(d.Text, d.Stripped, d.Priority)
	}
	return out
}

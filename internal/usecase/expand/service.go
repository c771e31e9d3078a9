// Package expand turns a raw legal query into groups of interchangeable search
// phrases through an external text generator.
package expand

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/logger"
	"github.com/kailas-cloud/casequery/internal/metrics"
)

// DefaultMaxAttempts bounds generator calls per expansion.
const DefaultMaxAttempts = 3

// Prompts are the system prompts sent to the generator.
type Prompts struct {
	// System asks for an expansion of the raw query.
	System string
	// Fix asks the generator to repair a malformed previous response.
	Fix string
}

// Config tunes the retry loop.
type Config struct {
	MaxAttempts int
	// Backoff is the wait after a transport error, doubled on each consecutive one.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

type state int

const (
	stateDrafting state = iota
	stateValidating
	stateFixing
	stateSucceeded
	stateExhausted
)

func (s state) String() string {
	switch s {
	case stateDrafting:
		return "drafting"
	case stateValidating:
		return "validating"
	case stateFixing:
		return "fixing"
	case stateSucceeded:
		return "succeeded"
	case stateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Service expands raw queries.
type Service struct {
	gen     domain.Generator
	prompts Prompts
	cfg     Config
	cache   Cache
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates an expansion service. cache can be nil.
func New(gen domain.Generator, prompts Prompts, cfg Config, cache Cache) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = cfg.Backoff
	}
	return &Service{gen: gen, prompts: prompts, cfg: cfg, cache: cache, sleep: sleepCtx}
}

// run carries the loop state of one expansion.
type run struct {
	state    state
	attempts int
	failures int // consecutive transport errors
	response string
	result   domain.Expansion
	lastErr  error
	drafting string
	rejected string // response the next Fixing message asks to repair
}

// Expand runs the draft/validate/fix loop. It fails with an error wrapping
// domain.ErrExpansionUnavailable once the attempts are spent or ctx is done.
func (s *Service) Expand(ctx context.Context, raw string) (domain.Expansion, error) {
	if s.cache != nil {
		if exp, ok := s.cache.Lookup(ctx, raw); ok {
			return exp, nil
		}
	}

	r := &run{state: stateDrafting, drafting: fmt.Sprintf("provide result for: '%s'", raw)}
	for {
		switch r.state {
		case stateDrafting:
			s.call(ctx, r, s.prompts.System, r.drafting, stateDrafting)
		case stateFixing:
			s.call(ctx, r, s.prompts.Fix, "Fix this output:\n"+r.rejected, stateFixing)
		case stateValidating:
			s.validate(ctx, r)
		case stateSucceeded:
			metrics.ExpansionAttempts.Observe(float64(r.attempts))
			if s.cache != nil {
				s.cache.Store(ctx, raw, r.result)
			}
			return r.result, nil
		case stateExhausted:
			metrics.ExpansionAttempts.Observe(float64(r.attempts))
			return domain.Expansion{}, fmt.Errorf("%w after %d attempts: %w",
				domain.ErrExpansionUnavailable, r.attempts, r.lastErr)
		}
	}
}

// call sends one message. On a transport error the same message is retried
// from the current state after a backoff.
func (s *Service) call(ctx context.Context, r *run, system, user string, current state) {
	if err := ctx.Err(); err != nil {
		r.lastErr, r.state = err, stateExhausted
		return
	}

	r.attempts++
	gen, err := s.gen.Generate(ctx, system, user)
	if err == nil {
		r.failures = 0
		r.response = gen.Text
		r.state = stateValidating
		return
	}

	r.lastErr = err
	logger.FromContext(ctx).Debug("Expansion generator call failed",
		zap.Stringer("state", current), zap.Int("attempt", r.attempts), zap.Error(err))

	if ctx.Err() != nil || errors.Is(err, domain.ErrGenerationQuotaExceeded) || r.attempts >= s.cfg.MaxAttempts {
		r.state = stateExhausted
		return
	}
	r.failures++
	if err := s.sleep(ctx, s.backoff(r.failures)); err != nil {
		r.state = stateExhausted
		return
	}
	r.state = current
}

func (s *Service) validate(ctx context.Context, r *run) {
	exp, err := ParseExpansion(r.response)
	if err == nil {
		r.result, r.state = exp, stateSucceeded
		return
	}

	r.lastErr = err
	logger.FromContext(ctx).Debug("Expansion response rejected",
		zap.Int("attempt", r.attempts), zap.Error(err))

	if r.attempts >= s.cfg.MaxAttempts {
		r.state = stateExhausted
		return
	}
	r.rejected = r.response
	r.state = stateFixing
}

func (s *Service) backoff(failures int) time.Duration {
	d := s.cfg.Backoff
	for i := 1; i < failures && d < s.cfg.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, s.cfg.MaxBackoff)
}

// ExpandOrFallback never fails: when expansion is unavailable it returns the
// raw query as a single-term expansion and degraded=true.
func (s *Service) ExpandOrFallback(ctx context.Context, raw string) (exp domain.Expansion, degraded bool) {
	exp, err := s.Expand(ctx, raw)
	if err == nil {
		metrics.ExpansionsTotal.WithLabelValues("ok").Inc()
		return exp, false
	}

	metrics.ExpansionsTotal.WithLabelValues("degraded").Inc()
	logger.FromContext(ctx).Warn("Query expansion degraded to raw query",
		zap.String("query", raw), zap.Error(err))
	return domain.FallbackExpansion(raw), true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

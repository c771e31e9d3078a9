package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/config"
	dbRedis "github.com/kailas-cloud/casequery/internal/db/redis"
	"github.com/kailas-cloud/casequery/internal/domain"
	bleveEngine "github.com/kailas-cloud/casequery/internal/engine/bleve"
	"github.com/kailas-cloud/casequery/internal/engine/elastic"
	"github.com/kailas-cloud/casequery/internal/metrics"
	budgetrepo "github.com/kailas-cloud/casequery/internal/repository/budget"
	"github.com/kailas-cloud/casequery/internal/repository/expcache"
	ollamaGen "github.com/kailas-cloud/casequery/internal/transport/ollama"
	openaiGen "github.com/kailas-cloud/casequery/internal/transport/openai"
	expanduc "github.com/kailas-cloud/casequery/internal/usecase/expand"
	generationuc "github.com/kailas-cloud/casequery/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/casequery/internal/usecase/health"
	queryuc "github.com/kailas-cloud/casequery/internal/usecase/query"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
	usageuc "github.com/kailas-cloud/casequery/internal/usecase/usage"
)

// providerGenerator is a generator adapter that can also report its own health.
type providerGenerator interface {
	domain.Generator
	domain.HealthChecker
}

// app is the composition root shared by every command.
type app struct {
	search  *searchuc.Service
	usage   *usageuc.Service
	health  *healthuc.Service
	bleve   *bleveEngine.Engine // set when engine.driver is bleve
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires the engine, the generator chain and the services. The caller must Close it.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	metrics.RegisterGenerationMetrics()
	metrics.RegisterEngineMetrics()

	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	engine, err := a.buildEngine(cfg.Engine, cfg.Query.Field, logger)
	if err != nil {
		return nil, err
	}

	// Key-value store backs the expansion cache and the budget counters; optional.
	var store *dbRedis.Store
	if len(cfg.Store.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Store.Addrs,
			Username: cfg.Store.Username,
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.WaitForReady(ctx, time.Duration(cfg.Store.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("store not ready: %w", err)
		}
		logger.Info("Connected to store", zap.Strings("addrs", cfg.Store.Addrs))
	}

	base, err := buildGenerator(cfg.Generator, logger)
	if err != nil {
		return nil, err
	}

	// Single BudgetTracker shared by the generator chain and the usage service.
	var budget *generationuc.BudgetTracker
	if b := cfg.Generator.Budget; b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0 {
		action := generationuc.BudgetActionWarn
		if b.Action == string(generationuc.BudgetActionReject) {
			action = generationuc.BudgetActionReject
		}
		budget = generationuc.NewBudgetTracker(
			cfg.Generator.Provider, b.DailyTokenLimit, b.MonthlyTokenLimit, action, logger,
		)
		if store != nil {
			budget.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
		}
	}

	// Pass nil interfaces, not typed nil pointers.
	var budgetChecker generationuc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}
	generator := generationuc.NewInstrumentedGenerator(
		base, cfg.Generator.Provider, cfg.Generator.Model, budgetChecker, logger,
	)

	var cache expanduc.Cache
	if store != nil && cfg.Expansion.CacheTTLHours > 0 {
		cache = expcache.New(store, cfg.Expansion.PromptVersion,
			time.Duration(cfg.Expansion.CacheTTLHours)*time.Hour, metrics.ExpansionCacheTotal, logger)
	}
	expander := expanduc.New(generator,
		expanduc.Prompts{System: cfg.Expansion.SystemPrompt, Fix: cfg.Expansion.FixPrompt},
		expanduc.Config{
			MaxAttempts: cfg.Expansion.MaxAttempts,
			Backoff:     time.Duration(cfg.Expansion.BackoffMs) * time.Millisecond,
			MaxBackoff:  time.Duration(cfg.Expansion.MaxBackoffMs) * time.Millisecond,
		},
		cache,
	)

	builder, err := queryuc.New(queryParams(cfg.Query))
	if err != nil {
		return nil, err
	}

	a.search = searchuc.New(engine, expander, builder, cfg.Results.ViewerBaseURL)
	a.usage = usageuc.New(budgetReader, cfg.Generator.Provider)

	var storePinger healthuc.Pinger
	if store != nil {
		storePinger = store
	}
	a.health = healthuc.New(engine, base, storePinger)

	logger.Info("Services wired",
		zap.String("engine", cfg.Engine.Driver),
		zap.String("generator", cfg.Generator.Provider),
		zap.String("model", cfg.Generator.Model),
		zap.Bool("budget", budget != nil),
		zap.Bool("expansion_cache", cache != nil),
	)
	return a, nil
}

func (a *app) buildEngine(cfg config.EngineConfig, field string, logger *zap.Logger) (searchuc.Engine, error) {
	switch cfg.Driver {
	case config.EngineBleve:
		index, err := bleveEngine.Open(cfg.Bleve.Path)
		if err != nil {
			return nil, fmt.Errorf("open bleve index: %w", err)
		}
		a.bleve = bleveEngine.New(index, cfg.Bleve.Candidates, logger)
		a.closers = append(a.closers, func() {
			if err := a.bleve.Close(); err != nil {
				logger.Warn("Failed to close bleve index", zap.Error(err))
			}
		})
		return a.bleve, nil
	default:
		es := cfg.Elastic
		engine, err := elastic.New(elastic.Config{
			Addresses:      es.Addresses,
			CloudID:        es.CloudID,
			Username:       es.Username,
			Password:       es.Password,
			APIKey:         es.APIKey,
			Index:          es.Index,
			MaxRetries:     es.MaxRetries,
			RequestTimeout: time.Duration(es.RequestTimeoutSec) * time.Second,
			Logger:         logger,
		}, field)
		if err != nil {
			return nil, fmt.Errorf("create elasticsearch engine: %w", err)
		}
		return engine, nil
	}
}

func buildGenerator(cfg config.GeneratorConfig, logger *zap.Logger) (providerGenerator, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		g, err := ollamaGen.NewGenerator(&ollamaGen.Config{
			ServerURL:   cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama generator: %w", err)
		}
		return g, nil
	default:
		return openaiGen.NewGenerator(&openaiGen.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Temperature:       float32(cfg.Temperature),
			MaxTokens:         cfg.MaxTokens,
			Provider:          cfg.Provider,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			Logger:            logger,
		}), nil
	}
}

func queryParams(q config.QueryConfig) queryuc.Params {
	return queryuc.Params{
		Field:     q.Field,
		DateField: q.DateField,
		Weights: queryuc.Weights{
			ExactPhrase:    q.Weights.ExactPhrase,
			StrippedPhrase: q.Weights.StrippedPhrase,
			Token:          q.Weights.Token,
			Fuzzy:          q.Weights.Fuzzy,
		},
		Slop:           *q.Slop,
		Fuzzy:          *q.Fuzzy,
		Fuzziness:      q.Fuzziness,
		GroupMode:      queryuc.GroupMode(q.GroupMode),
		DecayScale:     time.Duration(q.DecayScaleDays) * 24 * time.Hour,
		Decay:          q.Decay,
		HighlightSlop:  *q.HighlightSlop,
		HighlightBoost: q.HighlightBoost,
		FragmentSize:   q.FragmentSize,
		Fragments:      q.Fragments,
		SuggestName:    q.SuggestName,
		Size:           q.Size,
	}
}

// Package ollama adapts a local Ollama server to domain.Generator through langchaingo.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/metrics"
)

const provider = "ollama"

// Config holds the Ollama settings.
type Config struct {
	ServerURL   string
	Model       string
	Temperature float64
	Logger      *zap.Logger
}

// Generator generates text with a local Ollama model.
type Generator struct {
	llm         llms.Model
	serverURL   string
	model       string
	temperature float64
	http        *http.Client
	logger      *zap.Logger
}

// NewGenerator creates an Ollama-backed generator.
func NewGenerator(cfg *Config) (*Generator, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.ServerURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		llm:         llm,
		serverURL:   cfg.ServerURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		http:        &http.Client{Timeout: 5 * time.Second},
		logger:      logger,
	}, nil
}

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, system, user string) (domain.Generation, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, content, llms.WithTemperature(g.temperature))
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return domain.Generation{}, fmt.Errorf("ollama generate: %w", ctx.Err())
		}
		metrics.GenerationRequestsTotal.WithLabelValues(provider, g.model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(provider, g.model, "api_error").Inc()
		return domain.Generation{}, fmt.Errorf("ollama generate: %v: %w", err, domain.ErrGeneratorProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(provider, g.model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(provider, g.model, "empty_response").Inc()
		return domain.Generation{}, fmt.Errorf("ollama returned no choices: %w", domain.ErrGeneratorProviderError)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(provider, g.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(provider, g.model).Observe(duration.Seconds())

	choice := resp.Choices[0]
	gen := domain.Generation{
		Text:             choice.Content,
		PromptTokens:     intInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
		TotalTokens:      intInfo(choice.GenerationInfo, "TotalTokens"),
	}
	if gen.TotalTokens == 0 {
		gen.TotalTokens = gen.PromptTokens + gen.CompletionTokens
	}
	if gen.TotalTokens > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(provider, g.model, "prompt").Add(float64(gen.PromptTokens))
		metrics.GenerationTokensTotal.WithLabelValues(provider, g.model, "completion").Add(float64(gen.CompletionTokens))
	}
	return gen, nil
}

// HealthCheck pings the Ollama version endpoint.
func (g *Generator) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.serverURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama version: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("ollama version: unexpected status " + resp.Status)
	}
	return nil
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

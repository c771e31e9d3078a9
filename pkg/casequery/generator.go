package casequery

import (
	"context"

	"github.com/kailas-cloud/casequery/internal/domain"
)

// Generator produces text from a system and a user message, typically a chat LLM.
// Return an error wrapping ErrGeneratorProviderError for transient failures so the
// expander backs off and retries.
type Generator interface {
	Generate(ctx context.Context, system, user string) (Generation, error)
}

// Generation carries the generated text and token counts.
type Generation struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// generatorAdapter adapts a public Generator to domain.Generator.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, system, user string) (domain.Generation, error) {
	g, err := a.inner.Generate(ctx, system, user)
	if err != nil {
		return domain.Generation{}, err //nolint:wrapcheck // caller's error passes through unchanged
	}
	domain.UsageFromContext(ctx).Record(g.TotalTokens)
	return domain.Generation{
		Text:             g.Text,
		PromptTokens:     g.PromptTokens,
		CompletionTokens: g.CompletionTokens,
		TotalTokens:      g.TotalTokens,
	}, nil
}

// verbatimExpander is used when no generator is configured: every query is
// searched as typed and the page reports Degraded.
type verbatimExpander struct{}

func (verbatimExpander) ExpandOrFallback(_ context.Context, raw string) (domain.Expansion, bool) {
	return domain.FallbackExpansion(raw), true
}

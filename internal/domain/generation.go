package domain

import "context"

// Generator is the text generation contract shared between layers.
type Generator interface {
	Generate(ctx context.Context, system, user string) (Generation, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Generation carries the generated text and token usage through the decorator chain.
type Generation struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type generationUsageKey struct{}

// GenerationUsage collects token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the service;
// the generator chain writes to it; the handler reads it for response headers.
type GenerationUsage struct {
	TotalTokens int
	Calls       int
}

// NewContextWithUsage returns a context with a generation usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *GenerationUsage) {
	u := &GenerationUsage{}
	return context.WithValue(ctx, generationUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *GenerationUsage {
	u, _ := ctx.Value(generationUsageKey{}).(*GenerationUsage)
	return u
}

// Record adds one generator call and its tokens.
func (u *GenerationUsage) Record(tokens int) {
	if u != nil {
		u.TotalTokens += tokens
		u.Calls++
	}
}

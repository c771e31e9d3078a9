package health

import "context"

// Pinger checks a backing store or search engine.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GeneratorChecker checks text generation provider availability.
type GeneratorChecker interface {
	HealthCheck(ctx context.Context) error
}

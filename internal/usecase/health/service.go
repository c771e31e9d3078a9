package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed; searches still run.
	Degraded Status = "degraded"
	// Unhealthy indicates the search engine is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	name     string
	required bool
	check    func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	components []component
	timeout    time.Duration
}

// New creates a Service. generator and cache can be nil.
func New(engine Pinger, generator GeneratorChecker, cache Pinger) *Service {
	s := &Service{timeout: 3 * time.Second}
	s.components = append(s.components, component{name: "engine", required: true, check: engine.Ping})
	if generator != nil {
		s.components = append(s.components, component{name: "generator", check: generator.HealthCheck})
	}
	if cache != nil {
		s.components = append(s.components, component{name: "cache", check: cache.Ping})
	}
	return s
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make([]CheckResult, len(s.components))
	var wg sync.WaitGroup
	for i, c := range s.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = CheckOK
			if err := c.check(ctx); err != nil {
				results[i] = CheckError
			}
		}()
	}
	wg.Wait()

	status := Healthy
	checks := make(map[string]CheckResult, len(s.components))
	for i, c := range s.components {
		checks[c.name] = results[i]
		if results[i] != CheckError {
			continue
		}
		if c.required {
			status = Unhealthy
		} else if status == Healthy {
			status = Degraded
		}
	}
	return Report{Status: status, Checks: checks}
}

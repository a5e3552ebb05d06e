package llm

import (
	"context"
	"errors"

	"github.com/harunnryd/vira/pkg/metrics"
	"github.com/harunnryd/vira/pkg/resilience"
)

// CircuitBreakerAdapter wraps an LLMAdapter so a failing upstream is
// short-circuited instead of being called on every utterance.
type CircuitBreakerAdapter struct {
	inner   LLMAdapter
	breaker *resilience.Breaker
}

func NewCircuitBreakerAdapter(inner LLMAdapter, cfg resilience.BreakerConfig, obs metrics.Observer) *CircuitBreakerAdapter {
	obs = metrics.OrNoop(obs)
	if cfg.Name == "" {
		cfg.Name = inner.Name()
	}
	if cfg.Ignore == nil {
		cfg.Ignore = callerGaveUp
	}
	cfg.OnStateChange = func(name, from, to string) {
		obs.RecordEvent(metrics.NewEvent(metrics.EventBreakerState, 1, map[string]string{
			metrics.TagState: to,
			metrics.TagFrom:  from,
		}))
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: resilience.NewBreaker(cfg)}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

// Generate returns resilience.ErrOpen while the breaker is open.
func (a *CircuitBreakerAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	var resp Response
	err := a.breaker.Do(func() error {
		var err error
		resp, err = a.inner.Generate(ctx, input)
		return err
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// State exposes the breaker state for health reporting.
func (a *CircuitBreakerAdapter) State() string { return a.breaker.State() }

// callerGaveUp keeps caller cancellation from counting against the upstream.
func callerGaveUp(err error) bool {
	return errors.Is(err, context.Canceled)
}

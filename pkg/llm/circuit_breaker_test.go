package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/vira/pkg/metrics"
	"github.com/harunnryd/vira/pkg/resilience"
)

type flakyAdapter struct {
	calls int
	err   error
}

func (f *flakyAdapter) Name() string { return "flaky" }

func (f *flakyAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	f.calls++
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Text: "ok"}, nil
}

func TestCircuitBreakerAdapterOpens(t *testing.T) {
	inner := &flakyAdapter{err: errors.New("503")}
	obs := metrics.NewMemoryObserver()
	a := NewCircuitBreakerAdapter(inner, resilience.BreakerConfig{MinRequests: 2, FailureRate: 0.5, Cooldown: time.Hour}, obs)

	for i := 0; i < 2; i++ {
		if _, err := a.Generate(context.Background(), Context{Prompt: "hi"}); err == nil {
			t.Fatalf("expected upstream error")
		}
	}
	_, err := a.Generate(context.Background(), Context{Prompt: "hi"})
	if !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected upstream called twice, got %d", inner.calls)
	}
	if obs.Count(metrics.EventBreakerState, map[string]string{metrics.TagState: "open"}) != 1 {
		t.Fatalf("expected breaker open event")
	}
	if a.State() != "open" {
		t.Fatalf("expected open state, got %s", a.State())
	}
}

func TestCircuitBreakerAdapterPassesThrough(t *testing.T) {
	inner := &flakyAdapter{}
	a := NewCircuitBreakerAdapter(inner, resilience.BreakerConfig{}, nil)
	resp, err := a.Generate(context.Background(), Context{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "ok" || a.Name() != "flaky" {
		t.Fatalf("unexpected response %+v name %s", resp, a.Name())
	}
}

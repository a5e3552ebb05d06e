package mock

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/vira/pkg/llm"
)

type LLMConfig struct {
	// ResponseText is returned when Replies is empty.
	ResponseText string
	// Replies are returned in order, cycling when exhausted.
	Replies []string
	Err     error
	// Delay holds each call until it elapses or the context ends.
	Delay time.Duration
}

// LLMAdapter is a deterministic text-generation provider.
type LLMAdapter struct {
	cfg LLMConfig

	mu      sync.Mutex
	calls   int
	prompts []string
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" && len(cfg.Replies) == 0 {
		cfg.ResponseText = `{"kind":"general","normalizedInput":"mock input","spokenReply":"mock response"}`
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	n := a.calls
	a.calls++
	a.prompts = append(a.prompts, input.Prompt)
	a.mu.Unlock()

	if a.cfg.Delay > 0 {
		timer := time.NewTimer(a.cfg.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		case <-timer.C:
		}
	}
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	text := a.cfg.ResponseText
	if len(a.cfg.Replies) > 0 {
		text = a.cfg.Replies[n%len(a.cfg.Replies)]
	}
	return llm.Response{Text: text, FinishReason: "STOP"}, nil
}

// Calls returns how many times Generate ran.
func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Prompts returns every prompt received so far.
func (a *LLMAdapter) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.prompts))
	copy(out, a.prompts)
	return out
}

var _ llm.LLMAdapter = (*LLMAdapter)(nil)

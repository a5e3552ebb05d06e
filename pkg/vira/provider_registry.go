package vira

import (
	"fmt"
	"strings"

	"github.com/harunnryd/vira/pkg/configutil"
	"github.com/harunnryd/vira/pkg/llm"
	"github.com/harunnryd/vira/pkg/providers/gemini"
	"github.com/harunnryd/vira/pkg/providers/mock"
)

type LLMFactory func(cfg Config) (llm.LLMAdapter, error)

type ProviderRegistry struct {
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{llm: make(map[string]LLMFactory)}
}

// DefaultProviders registers the built-in "gemini" and "mock" providers.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterLLM("gemini", buildGemini)
	r.RegisterLLM("mock", buildMockLLM)
	return r
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config) (llm.LLMAdapter, error) {
	fn := r.llm[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}

var geminiSchema = configutil.Schema{
	Required: []string{"endpoint"},
	Optional: []string{"api_key", "timeout_ms"},
}

func buildGemini(cfg Config) (llm.LLMAdapter, error) {
	settings := cfg.Vendors.LLM.Settings
	if err := configutil.ValidateSettings(settings, geminiSchema); err != nil {
		return nil, fmt.Errorf("vendors.llm.settings: %w", err)
	}
	var s gemini.Settings
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("vendors.llm.settings: %w", err)
	}
	return gemini.NewAdapter(s)
}

type mockLLMSettings struct {
	ResponseText string   `mapstructure:"response_text"`
	Replies      []string `mapstructure:"replies"`
}

func buildMockLLM(cfg Config) (llm.LLMAdapter, error) {
	var s mockLLMSettings
	if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &s); err != nil {
		return nil, fmt.Errorf("vendors.llm.settings: %w", err)
	}
	return mock.NewLLMAdapter(mock.LLMConfig{ResponseText: s.ResponseText, Replies: s.Replies}), nil
}

package llm

import "context"

// Context is the input to a single generation call.
type Context struct {
	Prompt string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// LLMAdapter is implemented by every text-generation provider.
type LLMAdapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}

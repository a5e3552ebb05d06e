package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/vira/pkg/errorsx"
	"github.com/harunnryd/vira/pkg/llm"
	"github.com/harunnryd/vira/pkg/redact"
	"github.com/harunnryd/vira/pkg/resilience"
)

const providerName = "gemini"

// maxErrorBody caps how much of a failed response body is kept in errors.
const maxErrorBody = 2048

// Settings are decoded from vendors.llm.settings.
type Settings struct {
	Endpoint  string `mapstructure:"endpoint"`
	APIKey    string `mapstructure:"api_key"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// StatusError is returned for non-2xx responses other than 429.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Adapter posts a single prompt to a generateContent-style endpoint.
// The endpoint is configuration; nothing about the host is assumed.
type Adapter struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewAdapter(s Settings) (*Adapter, error) {
	if strings.TrimSpace(s.Endpoint) == "" {
		return nil, fmt.Errorf("gemini: endpoint is required")
	}
	if _, err := url.Parse(s.Endpoint); err != nil {
		return nil, fmt.Errorf("gemini: invalid endpoint: %w", err)
	}
	timeout := time.Duration(s.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{
		Endpoint: s.Endpoint,
		APIKey:   s.APIKey,
		Client:   &http.Client{Timeout: timeout},
	}, nil
}

func (a *Adapter) Name() string { return providerName }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: input.Prompt}}}},
	})
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonClassifyTransport)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.requestURL(), bytes.NewReader(body))
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonClassifyTransport)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client().Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redact.URL(uerr.URL)
		}
		return llm.Response{}, errorsx.Wrap(fmt.Errorf("gemini: %w", err), errorsx.ReasonClassifyTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return llm.Response{}, errorsx.Wrap(resilience.RateLimitError{Provider: providerName, Message: string(msg)}, errorsx.ReasonClassifyRateLimit)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return llm.Response{}, errorsx.Wrap(&StatusError{StatusCode: resp.StatusCode, Body: string(msg)}, errorsx.ReasonClassifyStatus)
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, errorsx.Errorf(errorsx.ReasonClassifyDecode, "gemini: decode response: %w", err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return llm.Response{}, errorsx.New(errorsx.ReasonClassifyDecode, "gemini: no candidate text in response")
	}
	first := payload.Candidates[0]
	return llm.Response{
		Text:         first.Content.Parts[0].Text,
		FinishReason: first.FinishReason,
		Usage: llm.Usage{
			PromptTokens:     payload.UsageMetadata.PromptTokenCount,
			CompletionTokens: payload.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      payload.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (a *Adapter) requestURL() string {
	if a.APIKey == "" {
		return a.Endpoint
	}
	u, err := url.Parse(a.Endpoint)
	if err != nil {
		return a.Endpoint
	}
	q := u.Query()
	if !q.Has("key") {
		q.Set("key", a.APIKey)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/vira/pkg/errorsx"
	"github.com/harunnryd/vira/pkg/intent"
	"github.com/harunnryd/vira/pkg/llm"
	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/metrics"
	"github.com/harunnryd/vira/pkg/redact"
	"github.com/harunnryd/vira/pkg/resilience"
)

const (
	outcomeOK       = "ok"
	outcomeFallback = "fallback"

	logReplyChars = 240
)

// Config tunes the classifier client.
type Config struct {
	// Timeout bounds one classification call including the upstream request.
	Timeout time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.NewComponentLogger(l, "classifier") }
}

// WithObserver sets the metrics sink.
func WithObserver(obs metrics.Observer) Option {
	return func(c *Client) { c.obs = metrics.OrNoop(obs) }
}

// Client turns utterances into intents through a text-generation provider.
// It never returns an error: every failure degrades to intent.Fallback.
type Client struct {
	adapter llm.LLMAdapter
	cfg     Config
	logger  *slog.Logger
	obs     metrics.Observer
}

func New(adapter llm.LLMAdapter, cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{
		adapter: adapter,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(slog.Default(), "classifier"),
		obs:     metrics.NoopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the intent for utterance, or the fallback intent.
func (c *Client) Classify(ctx context.Context, utterance, assistantName, creatorName string) intent.Intent {
	start := time.Now()
	in, raw, err := c.classify(ctx, utterance, assistantName, creatorName)
	elapsed := time.Since(start)
	if err != nil {
		reason := errorsx.Reason(err)
		c.logger.Warn("classification_failed",
			"reason", string(reason),
			"error", err,
			"utterance", redact.Text(utterance),
			"reply", redact.Clip(raw, logReplyChars),
			"latency_ms", elapsed.Milliseconds(),
		)
		c.record(outcomeFallback, reason, intent.KindGeneral, elapsed)
		return intent.Fallback(utterance)
	}
	c.logger.Debug("classified",
		"kind", string(in.Kind),
		"latency_ms", elapsed.Milliseconds(),
	)
	c.record(outcomeOK, "", in.Kind, elapsed)
	return in
}

// classify returns the raw model reply alongside any error for diagnostics.
func (c *Client) classify(ctx context.Context, utterance, assistantName, creatorName string) (intent.Intent, string, error) {
	if c.adapter == nil {
		return intent.Intent{}, "", errorsx.New(errorsx.ReasonClassifyTransport, "no llm adapter configured")
	}
	prompt, err := BuildPrompt(utterance, assistantName, creatorName)
	if err != nil {
		return intent.Intent{}, "", errorsx.Errorf(errorsx.ReasonClassifyTransport, "build prompt: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	resp, err := c.adapter.Generate(callCtx, llm.Context{Prompt: prompt})
	if err != nil {
		return intent.Intent{}, "", classifyCallError(callCtx, err)
	}

	payload, err := extractJSON(resp.Text)
	if err != nil {
		return intent.Intent{}, resp.Text, err
	}
	var candidate any
	if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
		return intent.Intent{}, resp.Text, errorsx.Errorf(errorsx.ReasonClassifyParse, "parse classifier json: %w", err)
	}
	in, err := intent.Validate(candidate)
	if err != nil {
		return intent.Intent{}, resp.Text, errorsx.Wrap(err, errorsx.ReasonClassifyShape)
	}
	return in, resp.Text, nil
}

func classifyCallError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, resilience.ErrOpen):
		return errorsx.Wrap(err, errorsx.ReasonClassifyCircuitOpen)
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		// Override any transport reason the provider attached.
		return errorsx.ReasonedError{Err: fmt.Errorf("classifier call timed out: %w", err), Reason: errorsx.ReasonClassifyTimeout}
	case resilience.IsRateLimit(err):
		return errorsx.Wrap(err, errorsx.ReasonClassifyRateLimit)
	default:
		return errorsx.Wrap(err, errorsx.ReasonClassifyTransport)
	}
}

func (c *Client) record(outcome string, reason errorsx.ReasonCode, kind intent.Kind, elapsed time.Duration) {
	r := ""
	if reason != "" && reason != errorsx.ReasonUnknown {
		r = string(reason)
	}
	c.obs.RecordEvent(metrics.NewEvent(metrics.EventClassify, elapsed.Seconds(), map[string]string{
		metrics.TagOutcome: outcome,
		metrics.TagReason:  r,
		metrics.TagKind:    string(kind),
	}))
}

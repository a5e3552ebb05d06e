package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/harunnryd/vira/pkg/intent"
	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/metrics"
	"github.com/harunnryd/vira/pkg/redact"
	"github.com/harunnryd/vira/pkg/session"
)

// Classifier is the part of classifier.Client the channel needs.
type Classifier interface {
	Classify(ctx context.Context, utterance, assistantName, creatorName string) intent.Intent
}

// Channel validates command requests and hands them to the classifier.
type Channel struct {
	classifier Classifier
	logger     *slog.Logger
	obs        metrics.Observer
}

type ChannelOption func(*Channel)

func WithChannelLogger(l *slog.Logger) ChannelOption {
	return func(c *Channel) { c.logger = logging.NewComponentLogger(l, "command") }
}

func WithChannelObserver(obs metrics.Observer) ChannelOption {
	return func(c *Channel) { c.obs = metrics.OrNoop(obs) }
}

func NewChannel(classifier Classifier, opts ...ChannelOption) *Channel {
	c := &Channel{
		classifier: classifier,
		logger:     logging.NewComponentLogger(slog.Default(), "command"),
		obs:        metrics.NoopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the classifier's intent for req. A request with a missing
// or blank field yields *BadRequestError and the classifier is not called.
// Classifier failures are already folded into the fallback intent.
func (c *Channel) Classify(ctx context.Context, req Request) (intent.Intent, error) {
	if err := req.Validate(); err != nil {
		c.logger.Info("command_rejected", "error", err)
		return intent.Intent{}, err
	}
	// The utterance goes through untouched; fallback echoes it verbatim.
	in := c.classifier.Classify(ctx,
		req.Utterance,
		strings.TrimSpace(req.AssistantName),
		strings.TrimSpace(req.CreatorName),
	)
	c.logger.Debug("command_classified",
		"kind", string(in.Kind),
		"utterance", redact.Clip(redact.Text(req.Utterance), 120),
	)
	return in, nil
}

// Dispatcher binds the channel to fixed names so an in-process session can
// classify without an HTTP hop.
func (c *Channel) Dispatcher(assistantName, creatorName string) session.Dispatcher {
	return session.DispatcherFunc(func(ctx context.Context, transcript string) (intent.Intent, error) {
		return c.Classify(ctx, Request{Utterance: transcript, AssistantName: assistantName, CreatorName: creatorName})
	})
}

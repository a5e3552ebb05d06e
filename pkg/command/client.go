package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/vira/pkg/errorsx"
	"github.com/harunnryd/vira/pkg/intent"
	"github.com/harunnryd/vira/pkg/session"
)

var _ session.Dispatcher = (*Client)(nil)

// ClientConfig points a Client at a running command channel.
type ClientConfig struct {
	BaseURL       string
	Token         string
	AssistantName string
	CreatorName   string
	Timeout       time.Duration
}

// Client posts transcripts to POST /api/ai. It satisfies session.Dispatcher.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) Dispatch(ctx context.Context, transcript string) (intent.Intent, error) {
	body, err := json.Marshal(Request{
		Utterance:     transcript,
		AssistantName: c.cfg.AssistantName,
		CreatorName:   c.cfg.CreatorName,
	})
	if err != nil {
		return intent.Intent{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/ai", bytes.NewReader(body))
	if err != nil {
		return intent.Intent{}, errorsx.Wrap(err, errorsx.ReasonCommandDispatch)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return intent.Intent{}, errorsx.Errorf(errorsx.ReasonCommandDispatch, "command request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return intent.Intent{}, errorsx.Errorf(errorsx.ReasonCommandDispatch, "read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return intent.Intent{}, errorsx.New(errorsx.ReasonCommandUnauthorized, "command channel rejected credentials")
	case resp.StatusCode == http.StatusBadRequest:
		return intent.Intent{}, errorsx.Errorf(errorsx.ReasonCommandBadRequest, "command channel rejected request: %s", strings.TrimSpace(string(payload)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return intent.Intent{}, errorsx.Errorf(errorsx.ReasonCommandDispatch, "command channel returned %d", resp.StatusCode)
	}

	var in intent.Intent
	if err := json.Unmarshal(payload, &in); err != nil {
		return intent.Intent{}, errorsx.Errorf(errorsx.ReasonCommandDispatch, "decode intent: %w", err)
	}
	return in, nil
}

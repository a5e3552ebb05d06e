package remote

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/harunnryd/vira/pkg/command"
	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/metrics"
	"github.com/harunnryd/vira/pkg/session"
)

// DispatcherFactory returns the dispatcher for a new connection. assistant and
// creator come from the connection's query string.
type DispatcherFactory func(assistant, creator string) session.Dispatcher

// HandlerConfig configures the websocket session endpoint.
type HandlerConfig struct {
	Session        session.Config
	Dispatcher     DispatcherFactory
	DefaultCreator string
	Auth           command.Authenticator
	Registry       *Registry
	Logger         *slog.Logger
	Observer       metrics.Observer
}

// Handler runs one voice session per websocket connection.
type Handler struct {
	cfg    HandlerConfig
	logger *slog.Logger
	obs    metrics.Observer
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Auth == nil {
		cfg.Auth = command.AllowAll{}
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	return &Handler{
		cfg:    cfg,
		logger: logging.NewComponentLogger(cfg.Logger, "remote"),
		obs:    metrics.OrNoop(cfg.Observer),
	}
}

// Mount registers GET path as the websocket endpoint.
func (h *Handler) Mount(app *fiber.App, path string) {
	app.Use(path, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, command.AuthRequired(h.cfg.Auth))
	app.Get(path, websocket.New(h.serve))
}

func (h *Handler) serve(c *websocket.Conn) {
	cfg := h.cfg.Session
	if name := c.Query("assistant"); name != "" {
		cfg.AssistantName = name
	}
	creator := c.Query("creator", h.cfg.DefaultCreator)
	user, _ := c.Locals(command.LocalUserID).(string)

	bridge := NewBridge(c, WithBridgeLogger(h.cfg.Logger), WithBridgeObserver(h.obs))
	sess := session.New(bridge, bridge, h.cfg.Dispatcher(cfg.AssistantName, creator), cfg,
		session.WithLogger(h.cfg.Logger),
		session.WithObserver(h.obs),
	)
	h.cfg.Registry.Add(sess)
	logger := h.logger.With("session_id", sess.ID(), "user_id", user)
	logger.Info("session_connected")

	updates, _ := sess.Subscribe()
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		bridge.ForwardSnapshots(updates)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	err := bridge.Serve(ctx, sess)
	cancel()
	sess.Close()
	// The connection is released when serve returns.
	<-forwarded
	h.cfg.Registry.Remove(sess.ID())
	logger.Info("session_disconnected", "error", err)
}

package vira

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/harunnryd/vira/pkg/classifier"
	"github.com/harunnryd/vira/pkg/command"
	"github.com/harunnryd/vira/pkg/llm"
	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/metrics"
	"github.com/harunnryd/vira/pkg/redact"
	"github.com/harunnryd/vira/pkg/remote"
	"github.com/harunnryd/vira/pkg/resilience"
	"github.com/harunnryd/vira/pkg/session"
)

// Engine wires the classifier, the command channel and the session socket
// into one fiber app.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	obs        metrics.Observer
	timeline   *metrics.TimelineObserver
	timelineQ  *metrics.AsyncObserver
	prom       *metrics.PrometheusObserver
	adapter    llm.LLMAdapter
	classifier *classifier.Client
	channel    *command.Channel
	auth       command.Authenticator
	sessions   *remote.Registry
	app        *fiber.App
	addr       net.Addr
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	Logger    *slog.Logger
	// Observers receive metrics events next to the Prometheus observer.
	Observers []metrics.Observer
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviders()
	}

	e := &Engine{cfg: cfg, logger: logging.NewComponentLogger(logger, "engine"), sessions: remote.NewRegistry()}

	obsList := append([]metrics.Observer{}, opts.Observers...)
	if cfg.Metrics.Enabled {
		e.prom = metrics.NewPrometheusObserver(cfg.Metrics.Namespace)
		obsList = append(obsList, e.prom)
	}
	if cfg.Metrics.LogEvents {
		obsList = append(obsList, metrics.NewJSONLObserver(os.Stderr))
	}
	if dir := cfg.Metrics.TimelineDir; dir != "" {
		if n, err := metrics.PurgeTimelines(dir, time.Duration(cfg.Metrics.TimelineRetentionHours)*time.Hour); err != nil {
			e.logger.Warn("timeline_purge_failed", "dir", dir, "error", err)
		} else if n > 0 {
			e.logger.Info("timeline_purged", "dir", dir, "removed", n)
		}
		e.timeline = metrics.NewTimelineObserver(dir)
		e.timelineQ = metrics.NewAsyncObserver(e.timeline, 1024)
		obsList = append(obsList, e.timelineQ)
	}
	base := metrics.Multi(obsList)
	e.obs = metrics.Multi{base, metrics.NewLatencyObserver(logging.NewComponentLogger(logger, "latency"), base)}

	adapter, err := providers.BuildLLM(cfg.Vendors.LLM.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("build llm: %w", err)
	}
	if b := cfg.Classifier.Breaker; b.Enabled {
		adapter = llm.NewCircuitBreakerAdapter(adapter, resilience.BreakerConfig{
			MinRequests: uint32(b.MinRequests),
			FailureRate: b.FailureRate,
			Cooldown:    time.Duration(b.CooldownMS) * time.Millisecond,
			Window:      time.Duration(b.WindowMS) * time.Millisecond,
		}, e.obs)
	}
	e.adapter = adapter

	e.classifier = classifier.New(adapter, classifier.Config{Timeout: cfg.ClassifierTimeout()},
		classifier.WithLogger(logger),
		classifier.WithObserver(e.obs),
	)
	e.channel = command.NewChannel(e.classifier,
		command.WithChannelLogger(logger),
		command.WithChannelObserver(e.obs),
	)

	if cfg.Auth.JWTSecret != "" {
		e.auth = command.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.TokenTTL())
	} else {
		e.logger.Warn("auth_disabled", "hint", "set auth.jwt_secret to require tokens")
		e.auth = command.AllowAll{}
	}

	serverCfg := command.ServerConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth:           e.auth,
		Logger:         logger,
		Observer:       e.obs,

		LegacyAssistant: cfg.Session.AssistantName,
		LegacyCreator:   cfg.Session.CreatorName,
	}
	if e.prom != nil {
		serverCfg.Metrics = e.prom.Handler()
	}
	e.app = command.NewApp(e.channel, serverCfg)

	remote.NewHandler(remote.HandlerConfig{
		Session:        e.SessionConfig(),
		Dispatcher:     e.channel.Dispatcher,
		DefaultCreator: cfg.Session.CreatorName,
		Auth:           e.auth,
		Registry:       e.sessions,
		Logger:         logger,
		Observer:       e.obs,
	}).Mount(e.app, cfg.Server.SessionPath)

	logger.Info("vira_init",
		"environment", cfg.Environment,
		"llm_provider", cfg.Vendors.LLM.Provider,
		"breaker", cfg.Classifier.Breaker.Enabled,
		"auth", cfg.Auth.JWTSecret != "",
		"session_path", cfg.Server.SessionPath,
	)
	return e, nil
}

// SessionConfig is the per-connection session configuration.
func (e *Engine) SessionConfig() session.Config {
	return session.Config{
		AssistantName:    e.cfg.Session.AssistantName,
		MaxCapture:       time.Duration(e.cfg.Session.MaxCaptureMS) * time.Millisecond,
		DispatchTimeout:  time.Duration(e.cfg.Session.DispatchTimeoutMS) * time.Millisecond,
		SubscriberBuffer: e.cfg.Session.SubscriberBuffer,
	}
}

func (e *Engine) App() *fiber.App                      { return e.app }
func (e *Engine) Channel() *command.Channel            { return e.channel }
func (e *Engine) Sessions() *remote.Registry           { return e.sessions }
func (e *Engine) Authenticator() command.Authenticator { return e.auth }

// Serve accepts connections on ln until Drain is called.
func (e *Engine) Serve(ln net.Listener) error {
	e.logger.Info("listening", "addr", ln.Addr().String())
	return e.app.Listener(ln)
}

// Start listens on server.addr in the background. Listen errors are logged
// and returned on the channel.
func (e *Engine) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", e.cfg.Server.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", e.cfg.Server.Addr, err)
	}
	e.addr = ln.Addr()
	errc := make(chan error, 1)
	go func() {
		if err := e.Serve(ln); err != nil {
			e.logger.Error("server_stopped", "error", err)
			errc <- err
		}
		close(errc)
	}()
	return errc, nil
}

// Addr is the bound address once Start has returned.
func (e *Engine) Addr() net.Addr { return e.addr }

// Drain closes every live session and then stops the HTTP server.
func (e *Engine) Drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.DrainTimeout())
	defer cancel()
	live := e.sessions.Len()
	sessErr := e.sessions.CloseAll(ctx)
	httpErr := e.app.ShutdownWithContext(ctx)
	e.logger.Info("drained", "sessions", live)
	var tlErr error
	if e.timeline != nil {
		e.timelineQ.Close()
		tlErr = e.timeline.Close()
	}
	return errors.Join(sessErr, httpErr, tlErr)
}

package command

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/metrics"
)

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	AppName        string
	AllowedOrigins []string
	Auth           Authenticator
	// Metrics is served on GET /metrics when set.
	Metrics  http.Handler
	Logger   *slog.Logger
	Observer metrics.Observer
	// LegacyAssistant and LegacyCreator fill in names the legacy route's
	// clients never send (they post only {"command"}).
	LegacyAssistant string
	LegacyCreator   string
}

// NewApp builds the fiber app serving the command channel. Callers may add
// more routes before Listen.
func NewApp(ch *Channel, cfg ServerConfig) *fiber.App {
	if cfg.AppName == "" {
		cfg.AppName = "vira"
	}
	if cfg.Auth == nil {
		cfg.Auth = AllowAll{}
	}
	logger := logging.NewComponentLogger(cfg.Logger, "http")
	obs := metrics.OrNoop(cfg.Observer)

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})
	app.Use(recover.New())
	if len(cfg.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowMethods:     "GET, POST, OPTIONS",
			AllowCredentials: true,
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if cfg.Metrics != nil {
		handler := fasthttpadaptor.NewFastHTTPHandler(cfg.Metrics)
		app.Get("/metrics", func(c *fiber.Ctx) error {
			handler(c.Context())
			return nil
		})
	}

	h := &handler{ch: ch, logger: logger, obs: obs}
	legacy := &handler{ch: ch, logger: logger, obs: obs, assistant: cfg.LegacyAssistant, creator: cfg.LegacyCreator}
	api := app.Group("/api", AuthRequired(cfg.Auth))
	api.Post("/ai", h.classify)
	// Legacy path still used by older web clients.
	api.Post("/user/asktoassistant", legacy.classify)
	return app
}

type handler struct {
	ch     *Channel
	logger *slog.Logger
	obs    metrics.Observer
	// Defaults for blank request names; empty on /api/ai.
	assistant string
	creator   string
}

func (h *handler) classify(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		h.record(fiber.StatusBadRequest)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "request body must be a JSON object",
		})
	}
	if strings.TrimSpace(req.AssistantName) == "" {
		req.AssistantName = h.assistant
	}
	if strings.TrimSpace(req.CreatorName) == "" {
		req.CreatorName = h.creator
	}
	in, err := h.ch.Classify(c.UserContext(), req)
	if err != nil {
		var bad *BadRequestError
		if errors.As(err, &bad) {
			h.record(fiber.StatusBadRequest)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "bad_request",
				"missing": bad.Missing,
			})
		}
		h.record(fiber.StatusInternalServerError)
		return err
	}
	h.record(fiber.StatusOK)
	return c.JSON(in)
}

func (h *handler) record(status int) {
	h.obs.RecordEvent(metrics.NewEvent(metrics.EventCommandRequest, 1, map[string]string{
		metrics.TagStatus: strconv.Itoa(status),
	}))
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code == fiber.StatusInternalServerError {
			logger.Error("internal_error", "error", err, "path", c.Path())
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}

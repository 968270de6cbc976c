package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dukex/shiphook/pkg/web"
)

const maxRequestBodySize = 1024 * 1024 // 1MB max request body

type API struct {
	logger   *slog.Logger
	handlers *web.WebhookHandlers
}

func NewAPI(logger *slog.Logger, handlers *web.WebhookHandlers) *API {
	return &API{
		logger:   logger,
		handlers: handlers,
	}
}

func (a *API) App() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: maxRequestBodySize,
	})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Shiphook")
	})

	w := app.Group("/webhooks")
	w.Post("/release", a.handlers.HandleRelease)
	w.Get("/release/info", a.handlers.HandleInfo)

	app.Get("/limits", a.handlers.HandleLimits)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}

package web

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// AppConfig selects the optional parts of the router.
type AppConfig struct {
	RequestLogging bool
	Metrics        http.Handler
}

// NewApp mounts the API routes on a new fiber app.
func NewApp(handlers *APIHandlers, config AppConfig) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())

	if config.RequestLogging {
		app.Use(logger.New(logger.Config{
			DisableColors: true,
		}))
	}

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("EvoFlow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/enable", handlers.EnableWorkflow)
	w.Post("/:id/disable", handlers.DisableWorkflow)
	w.Post("/:id/run", handlers.RunWorkflow)
	w.Get("/:id/stats", handlers.GetWorkflowStats)

	app.Get("/executions", handlers.GetExecutions)
	app.Get("/executions/:id", handlers.GetExecution)

	app.Post("/events/:name", handlers.PublishEvent)
	app.Post("/facts", handlers.AssertFacts)
	app.Post("/hooks/*", handlers.InvokeWebhook)

	app.Get("/health", handlers.HealthCheck)

	if config.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(config.Metrics))
	}

	return app
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/evofitmeals/evoflow/pkg/actions/datastore"
	"github.com/evofitmeals/evoflow/pkg/cmd"
	"github.com/evofitmeals/evoflow/pkg/config"
	"github.com/evofitmeals/evoflow/pkg/engine"
	"github.com/evofitmeals/evoflow/pkg/log"
	"github.com/evofitmeals/evoflow/pkg/metrics"
	"github.com/evofitmeals/evoflow/pkg/otelhelper"
	"github.com/evofitmeals/evoflow/pkg/schedule"
	"github.com/evofitmeals/evoflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPort     = 9091
	shutdownTimeout = 15 * time.Second
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the engine and the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL: memory://, file://<dir> or postgres://...",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for updateData actions",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing action plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "workflows-dir",
				Usage:   "Directory of JSON/YAML workflow definitions to register at startup",
				Sources: cli.EnvVars("WORKFLOWS_DIR"),
			},
			&cli.StringFlag{
				Name:    "cron-mode",
				Usage:   "Schedule interpretation (interval, cron)",
				Value:   "interval",
				Sources: cli.EnvVars("CRON_MODE"),
			},
			&cli.IntFlag{
				Name:    "max-depth",
				Usage:   "Maximum nesting depth of workflow actions",
				Value:   engine.DefaultMaxDepth,
				Sources: cli.EnvVars("MAX_WORKFLOW_DEPTH"),
			},
			&cli.BoolFlag{
				Name:    "fail-on-retry-exhausted",
				Usage:   "Fail the run when an action exhausts its retries",
				Sources: cli.EnvVars("FAIL_ON_RETRY_EXHAUSTED"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "Log actions instead of performing them",
				Sources: cli.EnvVars("DRY_RUN"),
			},
			&cli.BoolFlag{
				Name:    "no-defaults",
				Usage:   "Do not register the built-in workflows",
				Sources: cli.EnvVars("NO_DEFAULT_WORKFLOWS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("evoflow")
			logger.InfoContext(ctx, "Initializing EvoFlow")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			tracer, shutdownTracer, err := newTracer(ctx, command.Bool("tracing"))
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to open persistence: %w", err)
			}

			defer func() {
				if err := persistence.Close(context.Background()); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			transport, err := cmd.NewTransport(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := transport.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			registryConfig := cmd.RegistryConfig{
				DryRun:      command.Bool("dry-run"),
				LogLevel:    command.String("log-level"),
				Publisher:   transport.Publisher,
				HTTPClient:  &http.Client{},
				PluginsPath: command.String("plugins-path"),
			}

			if redisURL := command.String("redis-url"); redisURL != "" && !registryConfig.DryRun {
				client, err := datastore.NewClient(ctx, redisURL)
				if err != nil {
					return err
				}

				defer func() {
					_ = client.Close()
				}()

				registryConfig.Store = client
			}

			registry, err := cmd.NewRegistry(logger, registryConfig)
			if err != nil {
				return fmt.Errorf("failed to load action plugins: %w", err)
			}

			observer := metrics.NewObserver()

			opts := []engine.Option{
				engine.WithMaxDepth(command.Int("max-depth")),
				engine.WithPlanner(schedule.NewPlanner(command.String("cron-mode"))),
				engine.WithTracer(tracer),
				engine.WithObservers(
					engine.NewLogObserver(logger),
					engine.NewBusObserver(transport.Bus, logger),
					observer,
				),
			}
			if command.Bool("fail-on-retry-exhausted") {
				opts = append(opts, engine.WithFailOnRetryExhausted())
			}

			eng, err := engine.New(ctx, engine.Dependencies{
				Registry:    registry,
				Persistence: persistence,
				Logger:      logger,
			}, opts...)
			if err != nil {
				return err
			}

			if !command.Bool("no-defaults") {
				if err := eng.RegisterDefaultWorkflows(ctx); err != nil {
					return err
				}
			}

			if dir := command.String("workflows-dir"); dir != "" {
				definitions, err := config.LoadWorkflowsDir(dir)
				if err != nil {
					return err
				}

				added, err := eng.RegisterWorkflows(ctx, definitions)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Workflow definitions registered", "dir", dir, "added", added)
			}

			if err := eng.SubscribeTriggers(transport.Bus); err != nil {
				return err
			}

			if err := transport.Bus.Subscribe(ctx); err != nil {
				return fmt.Errorf("failed to subscribe to event bus: %w", err)
			}

			if err := eng.Start(ctx); err != nil {
				return err
			}

			handlers := web.NewAPIHandlers(eng, persistence, validator.New(validator.WithRequiredStructEnabled()), registry)
			app := web.NewApp(handlers, web.AppConfig{
				RequestLogging: true,
				Metrics:        observer.Handler(),
			})

			return serve(ctx, app, eng, command.Int("port"))
		},
	}
}

func serve(ctx context.Context, app *fiber.App, eng *engine.Engine, port int) error {
	logger := log.WithModule("evoflow")
	errs := make(chan error, 1)

	go func() {
		errs <- app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	logger.InfoContext(ctx, "EvoFlow API listening", "port", port)

	var listenErr error

	select {
	case listenErr = <-errs:
	case <-ctx.Done():
		logger.InfoContext(ctx, "Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "Failed to stop HTTP server", "error", err)
	}

	if err := eng.Close(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "Runs still in flight at shutdown", "error", err)
	}

	return listenErr
}

// nolint:ireturn
func newTracer(ctx context.Context, enabled bool) (trace.Tracer, otelhelper.ShutdownFunc, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	return otelhelper.NewTracer(ctx, "evoflow")
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/traffic-safety-pipeline/internal/api/http"
	"github.com/i474232898/traffic-safety-pipeline/internal/common"
	"github.com/i474232898/traffic-safety-pipeline/internal/config"
	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
	"github.com/i474232898/traffic-safety-pipeline/internal/pipeline"
	"github.com/i474232898/traffic-safety-pipeline/internal/scheduler"
	"github.com/i474232898/traffic-safety-pipeline/internal/sources"
	"github.com/i474232898/traffic-safety-pipeline/internal/store"
)

func main() {
	once := flag.Bool("once", false, "run a single accumulation pass and exit")
	days := flag.Int("days", 0, "override the trailing fetch window in days")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *days > 0 {
		cfg.WindowDays = *days
	}

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Durable master store; the dashboard reads its files directly.
	fileStore, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open data dir: %v", err)
	}

	weatherSchema := dataset.WeatherSchema()
	collisionsSchema := dataset.CollisionsSchema()

	kinds := []pipeline.Kind{
		{Schema: weatherSchema, Source: sources.NewOpenMeteoSource(httpClient)},
		{Schema: collisionsSchema, Source: sources.NewCollisionsSource(httpClient, cfg.SocrataAppToken)},
	}

	pipe := pipeline.New(fileStore, kinds, cfg.Retry)

	if *once {
		window := common.TrailingWindow(cfg.WindowDays, time.Now())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
		defer cancel()

		report := pipe.RunAll(ctx, window)
		if report.Failed() {
			os.Exit(1)
		}
		return
	}

	// Scheduler that periodically accumulates fresh data.
	sched := scheduler.New(pipe, cfg.FetchInterval, cfg.WindowDays, cfg.RunTimeout)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "traffic-safety-pipeline",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "traffic-safety-pipeline",
		})
	})

	// API routes.
	schemas := map[string]dataset.Schema{
		weatherSchema.Kind:    weatherSchema,
		collisionsSchema.Kind: collisionsSchema,
	}
	httpapi.RegisterRoutes(app, fileStore, schemas, pipe)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

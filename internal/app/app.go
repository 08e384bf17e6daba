// Package app assembles the HTTP server and the background worker
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"gorm.io/gorm"

	"github.com/eresh-mittal/ImageProc/config"
	"github.com/eresh-mittal/ImageProc/internal/batch"
	"github.com/eresh-mittal/ImageProc/internal/db/repos"
	"github.com/eresh-mittal/ImageProc/internal/imaging"
	"github.com/eresh-mittal/ImageProc/internal/logger"
	"github.com/eresh-mittal/ImageProc/internal/notify"
	"github.com/eresh-mittal/ImageProc/internal/services"
	"github.com/eresh-mittal/ImageProc/internal/storage"
	"github.com/eresh-mittal/ImageProc/internal/types"
	"github.com/eresh-mittal/ImageProc/pkg/api/v1/handlers"
	"github.com/eresh-mittal/ImageProc/pkg/api/v1/routes"
)

// App holds the wired components of a running service
type App struct {
	Fiber      *fiber.App
	Worker     *services.Worker
	JobService *services.Job

	natsConn *nats.Conn
}

// New wires every component on top of an open database
func New(cfg config.Config, database *gorm.DB) (*App, error) {
	jobRepo := repos.NewJobRepository(database)
	productRepo := repos.NewProductRepository(database)

	images, err := storage.NewLocal(cfg.ProcessedDir, routes.ProcessedImagesPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare processed image storage: %w", err)
	}
	outputs, err := storage.NewLocal(cfg.OutputDir, routes.OutputsPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output storage: %w", err)
	}

	notifiers := notify.Multi{notify.NewWebhook(cfg.WebhookTimeout)}
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		publisher, conn, err := notify.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		natsConn = conn
		notifiers = append(notifiers, publisher)
		logger.Infof("Publishing job completions to %s", cfg.NATSURL)
	}

	processor := batch.NewRowProcessor(
		imaging.NewHTTPFetcher(cfg.FetchTimeout),
		imaging.NewResizer(cfg.TransformTimeout),
		images,
		cfg.EntryConcurrency,
	)
	orchestrator := batch.NewOrchestrator(
		jobRepo,
		productRepo,
		batch.NewCSVLoader(),
		processor,
		batch.NewCSVResultWriter(outputs),
		notifiers,
		batch.Options{RowConcurrency: cfg.RowConcurrency},
	)

	worker := services.NewWorker(jobRepo, orchestrator, cfg.MaxConcurrentJobs, cfg.PollInterval)
	jobService := services.NewJobService(jobRepo, productRepo, worker, cfg.UploadDir)

	server := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    cfg.BodyLimit,
	})
	server.Use(logger.APILogger())
	routes.RegisterRoutes(server, handlers.NewJobHandler(jobService), routes.StaticDirs{
		ProcessedImages: images.Root(),
		Outputs:         outputs.Root(),
	})

	return &App{
		Fiber:      server,
		Worker:     worker,
		JobService: jobService,
		natsConn:   natsConn,
	}, nil
}

// Start launches the background worker. It stops when ctx is cancelled.
func (a *App) Start(ctx context.Context, wg *sync.WaitGroup) {
	a.Worker.Start(ctx, wg)
}

// Close releases connections held by the app
func (a *App) Close() {
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			logger.Warnf("Failed to drain NATS connection: %v", err)
		}
	}
}

// ErrorHandler renders unhandled errors as slug responses
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	switch code {
	case fiber.StatusNotFound:
		return c.Status(code).JSON(types.ErrNotFound(err.Error()))
	case fiber.StatusInternalServerError:
		logger.Errorf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(code).JSON(types.ErrServer("Internal server error"))
	default:
		return c.Status(code).JSON(types.ErrInvalidInput(err.Error()))
	}
}

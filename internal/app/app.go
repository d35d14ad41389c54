package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/handlers"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/pipeline"
	"github.com/ternarybob/prospector/internal/services/enrich"
	"github.com/ternarybob/prospector/internal/services/events"
	"github.com/ternarybob/prospector/internal/services/export"
	"github.com/ternarybob/prospector/internal/services/llm"
	"github.com/ternarybob/prospector/internal/services/mock"
	"github.com/ternarybob/prospector/internal/services/scheduler"
	"github.com/ternarybob/prospector/internal/services/search"
	badgerstore "github.com/ternarybob/prospector/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	EventService    interfaces.EventService
	PipelineManager *pipeline.Manager
	Scheduler       *scheduler.Scheduler

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	JobHandler    *handlers.JobHandler
	TitleHandler  *handlers.TitleHandler
	ExportHandler *handlers.ExportHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.EventService = events.NewService(app.Logger)

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	// Resume jobs stranded by a previous process. The recovery sweep keeps
	// covering this afterwards.
	recovered, err := app.PipelineManager.RecoverJobs(context.Background())
	if err != nil {
		app.Logger.Warn().Err(err).Msg("Startup job recovery failed")
	} else if recovered > 0 {
		app.Logger.Info().Int("jobs", recovered).Msg("Resumed interrupted jobs")
	}

	if cfg.Scheduler.Enabled {
		app.Scheduler = scheduler.NewScheduler(&cfg.Scheduler, app.PipelineManager, app.StorageManager.CacheStorage(), app.Logger)
		if err := app.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	logger.Info().
		Bool("mock_mode", cfg.MockMode).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := badgerstore.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices wires the external collaborators and the pipeline manager. In
// mock mode a single fixture-backed service replaces all four collaborators so
// the full pipeline runs without live credentials.
func (a *App) initServices() error {
	collab, err := a.buildCollaborators(context.Background())
	if err != nil {
		return err
	}

	a.PipelineManager = pipeline.NewManager(a.Config, a.StorageManager, collab, a.EventService, a.Logger)
	a.Logger.Debug().Msg("Pipeline manager initialized")

	return nil
}

func (a *App) buildCollaborators(ctx context.Context) (pipeline.Collaborators, error) {
	if a.Config.MockMode {
		mockService, err := mock.NewService(a.Config.Search.FixturesDir, a.Logger)
		if err != nil {
			return pipeline.Collaborators{}, fmt.Errorf("failed to load mock fixtures: %w", err)
		}
		a.Logger.Info().
			Str("fixtures_dir", a.Config.Search.FixturesDir).
			Msg("Mock mode enabled, all collaborators are fixture-backed")
		return pipeline.Collaborators{
			Queries:  mockService,
			Search:   mockService,
			Enricher: mockService,
			Exporter: mockService,
		}, nil
	}

	queryService, err := llm.NewClaudeService(&a.Config.Claude, a.Config.Search.MaxQueries, a.Logger)
	if err != nil {
		return pipeline.Collaborators{}, fmt.Errorf("failed to initialize query generator: %w", err)
	}

	searchProvider, err := search.NewSearchProvider(ctx, &a.Config.Search, a.Logger)
	if err != nil {
		return pipeline.Collaborators{}, fmt.Errorf("failed to initialize search provider: %w", err)
	}

	enricher, err := enrich.NewProxycurlClient(&a.Config.Enrichment, a.Logger)
	if err != nil {
		return pipeline.Collaborators{}, fmt.Errorf("failed to initialize enrichment client: %w", err)
	}

	exporter, err := export.NewSheetsService(ctx, &a.Config.Export, a.Logger)
	if err != nil {
		return pipeline.Collaborators{}, fmt.Errorf("failed to initialize sheets exporter: %w", err)
	}

	return pipeline.Collaborators{
		Queries:  queryService,
		Search:   searchProvider,
		Enricher: enricher,
		Exporter: exporter,
	}, nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.PipelineManager, a.StorageManager.JobStorage(), a.Logger)
	a.TitleHandler = handlers.NewTitleHandler(a.PipelineManager, a.Logger)
	a.ExportHandler = handlers.NewExportHandler(a.PipelineManager, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if closer, ok := a.EventService.(interface{ Close() error }); ok && closer != nil {
		if err := closer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

// Package bootstrap wires the dependencies shared by the API server and the importer CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"htmlvault/internal/config"
	"htmlvault/internal/database"
	"htmlvault/internal/database/migration"
	"htmlvault/internal/events"
	"htmlvault/internal/export"
	"htmlvault/internal/ingest"
	"htmlvault/internal/repository"
	"htmlvault/internal/repository/mongodb"
	"htmlvault/internal/repository/postgres"
	"htmlvault/internal/service"
	"htmlvault/internal/storage"
)

// App holds the long-lived dependencies built from an AppConfig.
type App struct {
	Repo    repository.DocumentRepository
	Store   storage.Storage
	Events  events.Publisher
	Service service.DocumentService

	closers []func() error
}

// New builds storage, the document repository, the ingest processor, the
// event publisher and the document service. reg may be nil to skip metrics.
func New(ctx context.Context, cfg *config.AppConfig, log *zap.Logger, reg prometheus.Registerer) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{}

	store, err := storage.New(cfg.Storage, cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	app.Store = store

	repo, err := app.openRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.Repo = repo

	procOpts := []ingest.Option{ingest.WithLogger(log)}
	if reg != nil {
		metrics, err := ingest.NewMetrics(reg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("register ingest metrics: %w", err)
		}
		procOpts = append(procOpts, ingest.WithMetrics(metrics))
	}
	processor := ingest.NewProcessor(store, procOpts...)

	pub, err := events.New(cfg.NATS, log)
	if err != nil {
		// Events are best effort; ingestion keeps working without them.
		log.Warn("event publisher unavailable", zap.Error(err))
		pub = events.Noop{}
	}
	app.Events = pub
	app.closers = append(app.closers, pub.Close)

	app.Service = service.NewDocumentService(store, repo, processor,
		service.WithLogger(log),
		service.WithEvents(pub),
		service.WithMarkdown(export.NewMarkdown(cfg.AppHost)),
		service.WithStagingDir(cfg.Storage.StagingDir),
		service.WithMaxUploadBytes(int64(cfg.MaxUploadBytes())),
		service.WithConfinedUploads(cfg.Storage.ConfineUploads),
	)
	return app, nil
}

func (a *App) openRepository(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (repository.DocumentRepository, error) {
	switch cfg.Database.Driver {
	case "", "postgres":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.NewDocumentPostgres(db), nil
	case "mongo", "mongodb":
		client, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		repo := mongodb.NewDocumentMongo(client, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

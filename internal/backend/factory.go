package backend

import (
	"context"
	"fmt"

	"uangku/internal/amqp"
	"uangku/internal/config"
	"uangku/internal/log"
	"uangku/internal/repository"
	"uangku/internal/repository/memory"
	gsheet "uangku/internal/sheets/google"
	"uangku/internal/storage"
	"uangku/internal/storage/boltdb"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateRepository implements Factory.CreateRepository
func (f *DefaultFactory) CreateRepository(ctx context.Context, cfg *config.Config) (*Result, error) {
	var closers cleanups

	local, err := f.createLocal(cfg, &closers)
	if err != nil {
		_ = closers.run()
		return nil, err
	}

	remote, err := f.createRemote(ctx, cfg, &closers)
	if err != nil {
		_ = closers.run()
		return nil, err
	}

	layered := repository.NewLayered(local, remote,
		repository.WithRemoteTimeout(cfg.RemoteTimeout),
		repository.WithMirrorDeletes(cfg.MirrorDeletes),
		repository.WithLogger(f.logger))

	f.logger.InfoContext(ctx, "Repository ready",
		"local", cfg.LocalBackend,
		"remote", cfg.RemoteBackend,
		"remote_timeout", cfg.RemoteTimeout.String(),
		"mirror_deletes", cfg.MirrorDeletes)

	return &Result{
		Repository: layered,
		Local:      local,
		Remote:     remote,
		Cleanup:    closers.run,
	}, nil
}

func (f *DefaultFactory) createLocal(cfg *config.Config, closers *cleanups) (repository.Store, error) {
	switch cfg.LocalBackend {
	case config.BackendSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		closers.add(repo.Close)
		return repo, nil
	case config.BackendBolt:
		store, err := boltdb.New(cfg.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bbolt store: %w", err)
		}
		closers.add(store.Close)
		f.logger.Info("Initialized bbolt backend", "db_path", cfg.BoltDBPath)
		return store, nil
	case config.BackendMemory:
		f.logger.Warn("Using in-memory local store, data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported local backend: %s", cfg.LocalBackend)
	}
}

func (f *DefaultFactory) createRemote(ctx context.Context, cfg *config.Config, closers *cleanups) (repository.Store, error) {
	switch cfg.RemoteBackend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSheets:
		sheets, err := f.CreateSheets(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sheets, nil
	case config.BackendQueued:
		sheets, err := f.CreateSheets(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client, err := f.CreateAMQP(cfg)
		if err != nil {
			// Writes still reach Sheets, just without the queue in between.
			f.logger.Warn("Failed to initialize AMQP client, writing to Sheets directly", log.FieldError, err.Error())
			return sheets, nil
		}
		closers.add(client.Close)
		return repository.CombineRemote(sheets, amqp.NewQueuedWriter(client)), nil
	default:
		return nil, fmt.Errorf("unsupported remote backend: %s", cfg.RemoteBackend)
	}
}

// CreateSheets implements Factory.CreateSheets
func (f *DefaultFactory) CreateSheets(ctx context.Context, cfg *config.Config) (*gsheet.Client, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}

// CreateAMQP implements Factory.CreateAMQP
func (f *DefaultFactory) CreateAMQP(cfg *config.Config) (*amqp.Client, error) {
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	f.logger.Info("Initialized AMQP client",
		log.FieldQueue, cfg.AMQPQueue,
		"exchange", cfg.AMQPExchange)
	return client, nil
}

package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/config"
	"github.com/adfharrison1/go-odm/pkg/domain"
	"github.com/adfharrison1/go-odm/pkg/mongostore"
	"github.com/adfharrison1/go-odm/pkg/storage"
)

// OpenDatabase connects to the database named by cfg. In memory mode the
// snapshot file, if any, is loaded first and written again on Close.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Memory() {
		return openMemory(cfg, logger.Named("storage"))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	db, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.Database,
		mongostore.WithMaxPoolSize(cfg.MaxPoolSize),
		mongostore.WithMinPoolSize(cfg.MinPoolSize),
		mongostore.WithConnectTimeout(cfg.ConnectTimeout),
		mongostore.WithLogger(logger.Named("mongo")),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to MongoDB", zap.String("database", db.Name()))
	return db, nil
}

func openMemory(cfg *config.Config, logger *zap.Logger) (domain.Database, error) {
	file := cfg.SnapshotFile()
	opts := []storage.StorageOption{
		storage.WithName(cfg.Database),
		storage.WithLogger(logger),
	}
	if file != "" {
		opts = append(opts, storage.WithDataFile(file), storage.WithBackgroundSave(cfg.SnapshotInterval))
	}
	engine := storage.NewStorageEngine(opts...)

	if file == "" {
		logger.Warn("memory database has no snapshot file, data is lost on shutdown")
		return engine, nil
	}
	if err := engine.LoadFromFile(file); err != nil {
		return nil, fmt.Errorf("could not load snapshot %s: %w", file, err)
	}
	logger.Info("loaded memory database", zap.String("file", file), zap.Strings("collections", engine.CollectionNames()))

	engine.StartBackgroundWorkers()
	if cfg.SnapshotInterval > 0 {
		logger.Info("background save enabled", zap.Duration("interval", cfg.SnapshotInterval))
	} else {
		logger.Warn("background save disabled, data only saved on graceful shutdown")
	}
	return engine, nil
}

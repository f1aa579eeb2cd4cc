package storage

import (
	"time"

	"go.uber.org/zap"
)

type StorageOption func(*StorageEngine)

// WithName sets the database name reported by Name.
func WithName(name string) StorageOption {
	return func(engine *StorageEngine) {
		engine.name = name
	}
}

// WithDataFile sets the snapshot file written on Close and by the
// background saver.
func WithDataFile(path string) StorageOption {
	return func(engine *StorageEngine) {
		engine.dataFile = path
	}
}

func WithBackgroundSave(interval time.Duration) StorageOption {
	return func(engine *StorageEngine) {
		engine.backgroundSave = interval > 0
		engine.saveInterval = interval
	}
}

func WithLogger(logger *zap.Logger) StorageOption {
	return func(engine *StorageEngine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

// WithRejectedIndexOptions makes index creation fail for the named options
// the way a restricted hosting tier does.
func WithRejectedIndexOptions(names ...string) StorageOption {
	return func(engine *StorageEngine) {
		for _, name := range names {
			engine.rejectedIndexOptions[name] = true
		}
	}
}

package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// StorageEngine is an in-memory document database. It implements
// domain.Database and is used for tests and the memory:// mode of the demo
// service. State can be snapshotted to a single file.
type StorageEngine struct {
	name        string
	mu          sync.RWMutex
	collections map[string]*collectionData
	logger      *zap.Logger

	// Options
	dataFile             string
	backgroundSave       bool
	saveInterval         time.Duration
	rejectedIndexOptions map[string]bool

	// Background workers
	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
	closeOnce    sync.Once
}

var _ domain.Database = (*StorageEngine)(nil)

// NewStorageEngine creates a new storage engine
func NewStorageEngine(options ...StorageOption) *StorageEngine {
	engine := &StorageEngine{
		name:                 "test",
		collections:          make(map[string]*collectionData),
		logger:               zap.NewNop(),
		saveInterval:         5 * time.Minute,
		rejectedIndexOptions: make(map[string]bool),
		stopChan:             make(chan struct{}),
	}

	for _, option := range options {
		option(engine)
	}

	return engine
}

// Name returns the database name.
func (se *StorageEngine) Name() string {
	return se.name
}

// Collection returns a handle on the named collection. The collection is
// created on first write.
func (se *StorageEngine) Collection(name string) domain.Collection {
	return &Collection{engine: se, name: name}
}

// CollectionNames lists the collections holding data or indexes.
func (se *StorageEngine) CollectionNames() []string {
	se.mu.RLock()
	defer se.mu.RUnlock()
	names := make([]string, 0, len(se.collections))
	for name := range se.collections {
		names = append(names, name)
	}
	return names
}

// Close stops background workers and writes a final snapshot when a data
// file is configured.
func (se *StorageEngine) Close(ctx context.Context) error {
	var err error
	se.closeOnce.Do(func() {
		se.StopBackgroundWorkers()
		if se.dataFile != "" {
			err = se.SaveToFile(se.dataFile)
		}
	})
	return err
}

// lookup returns the collection data, or nil when the collection does not exist.
func (se *StorageEngine) lookup(name string) *collectionData {
	se.mu.RLock()
	defer se.mu.RUnlock()
	return se.collections[name]
}

// getOrCreate returns the collection data, creating it when missing
func (se *StorageEngine) getOrCreate(name string) *collectionData {
	se.mu.RLock()
	if coll, exists := se.collections[name]; exists {
		se.mu.RUnlock()
		return coll
	}
	se.mu.RUnlock()

	se.mu.Lock()
	defer se.mu.Unlock()

	// Double-check in case another goroutine created it
	if coll, exists := se.collections[name]; exists {
		return coll
	}
	coll := newCollectionData(name)
	se.collections[name] = coll
	return coll
}

// withReadLock runs fn under the collection's read lock. fn receives nil
// when the collection does not exist.
func (se *StorageEngine) withReadLock(name string, fn func(*collectionData) error) error {
	coll := se.lookup(name)
	if coll == nil {
		return fn(nil)
	}
	coll.mu.RLock()
	defer coll.mu.RUnlock()
	return fn(coll)
}

// withWriteLock runs fn under the collection's write lock, creating the
// collection if needed.
func (se *StorageEngine) withWriteLock(name string, fn func(*collectionData) error) error {
	coll := se.getOrCreate(name)
	coll.mu.Lock()
	defer coll.mu.Unlock()
	return fn(coll)
}

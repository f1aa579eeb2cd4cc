package odm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/domain"
	"github.com/adfharrison1/go-odm/pkg/fields"
	"github.com/adfharrison1/go-odm/pkg/indexing"
)

// Registry holds the models of an application and the database they are
// persisted to. It is created once at startup and shared.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]*Model
	order    []*Model
	embedded map[string]*EmbeddedModel
	db       domain.Database

	logger    *zap.Logger
	clock     func() time.Time
	autoIndex bool
	indexer   *indexing.Synchronizer

	stampMu   sync.Mutex
	lastStamp time.Time
}

type RegistryOption func(*Registry)

func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock replaces the time source used for timestamps.
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithAutoIndex makes Connect synchronize the indexes of every model.
func WithAutoIndex(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.autoIndex = enabled
	}
}

// NewRegistry creates an empty registry
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		models:    make(map[string]*Model),
		embedded:  make(map[string]*EmbeddedModel),
		logger:    zap.NewNop(),
		clock:     time.Now,
		autoIndex: true,
	}
	for _, option := range options {
		option(r)
	}
	r.indexer = indexing.NewSynchronizer(r.logger)
	return r
}

// Define registers a document model. Fields of the extended model come
// first; a field declared again overrides the inherited one.
func (r *Registry) Define(def ModelDef) (*Model, error) {
	if def.Name == "" {
		return nil, ErrConfig.New("model declared without a name")
	}

	m := &Model{
		registry:   r,
		name:       def.Name,
		parent:     def.Extends,
		collection: def.Meta.Collection,
		createdAt:  def.Meta.CreatedAtTimestamp,
		updatedAt:  def.Meta.UpdatedAtTimestamp,
	}
	if m.collection == "" {
		m.collection = CollectionName(def.Name)
	}

	s := &schema{name: def.Name, byName: make(map[string]fields.Field)}
	if def.Extends != nil {
		if def.Extends.registry != r {
			return nil, ErrConfig.New("%s extends %s of another registry", def.Name, def.Extends.name)
		}
		for _, f := range def.Extends.schema.fields {
			if err := s.add(f, false); err != nil {
				return nil, err
			}
		}
		m.indexes = append(m.indexes, def.Extends.indexes...)
		m.createdAt = m.createdAt || def.Extends.createdAt
		m.updatedAt = m.updatedAt || def.Extends.updatedAt
	}
	declared := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if f != nil && declared[f.Name()] {
			return nil, ErrConfig.New("%s declares field %q twice", def.Name, f.Name())
		}
		if err := s.add(f, true); err != nil {
			return nil, err
		}
		declared[f.Name()] = true
	}
	if m.createdAt {
		if _, ok := s.field(CreatedAtKey); !ok {
			if err := s.add(fields.DateTime(CreatedAtKey), false); err != nil {
				return nil, err
			}
		}
	}
	if m.updatedAt {
		if _, ok := s.field(UpdatedAtKey); !ok {
			if err := s.add(fields.DateTime(UpdatedAtKey), false); err != nil {
				return nil, err
			}
		}
	}
	m.schema = s
	m.indexes = append(m.indexes, def.Meta.Indexes...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[def.Name]; exists {
		return nil, ErrConfig.New("model %s is already registered", def.Name)
	}
	r.models[def.Name] = m
	r.order = append(r.order, m)
	if m.parent != nil {
		m.parent.children = append(m.parent.children, m)
	}
	r.logger.Debug("registered document model",
		zap.String("model", m.name),
		zap.String("collection", m.collection),
		zap.Int("fields", len(s.fields)))
	return m, nil
}

// MustDefine is like Define but panics on a configuration error. It is meant
// for package level model declarations.
func (r *Registry) MustDefine(def ModelDef) *Model {
	m, err := r.Define(def)
	if err != nil {
		panic(err)
	}
	return m
}

// DefineEmbedded registers an embedded document model.
func (r *Registry) DefineEmbedded(name string, fs ...fields.Field) (*EmbeddedModel, error) {
	if name == "" {
		return nil, ErrConfig.New("embedded model declared without a name")
	}
	s, err := newSchema(name, fs)
	if err != nil {
		return nil, err
	}
	em := &EmbeddedModel{registry: r, schema: s}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.embedded[name]; exists {
		return nil, ErrConfig.New("embedded model %s is already registered", name)
	}
	r.embedded[name] = em
	return em, nil
}

// MustDefineEmbedded is like DefineEmbedded but panics on error.
func (r *Registry) MustDefineEmbedded(name string, fs ...fields.Field) *EmbeddedModel {
	em, err := r.DefineEmbedded(name, fs...)
	if err != nil {
		panic(err)
	}
	return em
}

// Lookup returns the model registered under name.
func (r *Registry) Lookup(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models returns the registered models in registration order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Model(nil), r.order...)
}

// Connect binds the registry to db. Index synchronization flags are reset
// and, with auto indexing enabled, every model's indexes are synchronized.
func (r *Registry) Connect(ctx context.Context, db domain.Database) error {
	if db == nil {
		return ErrNotConnected.New("nil database")
	}
	r.mu.Lock()
	r.db = db
	models := append([]*Model(nil), r.order...)
	r.mu.Unlock()

	for _, m := range models {
		m.indexed.Store(false)
	}
	r.logger.Info("database connected", zap.String("database", db.Name()), zap.Int("models", len(models)))

	if !r.autoIndex {
		return nil
	}
	for _, m := range models {
		if err := m.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database handle.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	db := r.db
	r.db = nil
	r.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close(ctx)
}

// Database returns the connected database.
func (r *Registry) Database() (domain.Database, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return nil, ErrNotConnected.New("call Connect first")
	}
	return r.db, nil
}

// stamp returns the current UTC time truncated to milliseconds. Successive
// stamps are strictly increasing.
func (r *Registry) stamp() time.Time {
	now := r.clock().UTC().Truncate(time.Millisecond)
	r.stampMu.Lock()
	defer r.stampMu.Unlock()
	if !now.After(r.lastStamp) {
		now = r.lastStamp.Add(time.Millisecond)
	}
	r.lastStamp = now
	return now
}

// collectionSpecs gathers unique fields and declared indexes of every model
// stored in collection, so models sharing a collection never drop each
// other's indexes.
func (r *Registry) collectionSpecs(collection string) ([]string, []IndexSpec) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var unique []string
	var declared []IndexSpec
	seenUnique := make(map[string]bool)
	seenIndex := make(map[string]bool)
	for _, m := range r.order {
		if m.collection != collection {
			continue
		}
		for _, name := range m.UniqueFields() {
			if !seenUnique[name] {
				seenUnique[name] = true
				unique = append(unique, name)
			}
		}
		for _, spec := range m.indexes {
			if name := spec.Name(); !seenIndex[name] {
				seenIndex[name] = true
				declared = append(declared, spec)
			}
		}
	}
	return unique, declared
}

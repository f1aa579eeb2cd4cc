// Package mongostore backs the ODM with a MongoDB deployment through the
// official driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

type settings struct {
	maxPoolSize    uint64
	minPoolSize    uint64
	connectTimeout time.Duration
	logger         *zap.Logger
}

type Option func(*settings)

func WithMaxPoolSize(n uint64) Option {
	return func(s *settings) { s.maxPoolSize = n }
}

func WithMinPoolSize(n uint64) Option {
	return func(s *settings) { s.minPoolSize = n }
}

// WithConnectTimeout bounds dialing and the initial ping.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *settings) { s.connectTimeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Database is a connected MongoDB database. It implements domain.Database.
type Database struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ domain.Database = (*Database)(nil)

// Connect dials uri, verifies the deployment answers a ping and returns a
// handle on database dbName.
func Connect(ctx context.Context, uri, dbName string, opts ...Option) (*Database, error) {
	s := settings{
		maxPoolSize:    100,
		connectTimeout: 10 * time.Second,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if dbName == "" {
		return nil, fmt.Errorf("database name is required")
	}

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(s.maxPoolSize).
		SetMinPoolSize(s.minPoolSize).
		SetConnectTimeout(s.connectTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", redact(uri), err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping %s: %w", redact(uri), err)
	}

	s.logger.Info("connected to MongoDB",
		zap.String("database", dbName),
		zap.Uint64("max_pool_size", s.maxPoolSize),
		zap.Uint64("min_pool_size", s.minPoolSize))
	return &Database{client: client, db: client.Database(dbName), logger: s.logger}, nil
}

func (d *Database) Name() string {
	return d.db.Name()
}

func (d *Database) Collection(name string) domain.Collection {
	return &Collection{db: d, coll: d.db.Collection(name)}
}

// Close disconnects the client.
func (d *Database) Close(ctx context.Context) error {
	if err := d.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	d.logger.Info("disconnected from MongoDB", zap.String("database", d.db.Name()))
	return nil
}

// Collection adapts a driver collection to domain.Collection.
type Collection struct {
	db   *Database
	coll *mongo.Collection
}

var _ domain.Collection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.coll.Name()
}

func (c *Collection) InsertOne(ctx context.Context, doc domain.Document) (interface{}, error) {
	res, err := c.coll.InsertOne(ctx, toBSONMap(doc))
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (c *Collection) InsertMany(ctx context.Context, docs []domain.Document) ([]interface{}, error) {
	batch := make([]interface{}, len(docs))
	for i, doc := range docs {
		batch[i] = toBSONMap(doc)
	}
	res, err := c.coll.InsertMany(ctx, batch)
	if err != nil {
		return nil, err
	}
	return res.InsertedIDs, nil
}

func (c *Collection) FindOne(ctx context.Context, filter domain.Document) (domain.Document, error) {
	return decodeSingle(c.coll.FindOne(ctx, toBSONMap(filter)))
}

func (c *Collection) Find(ctx context.Context, filter domain.Document, opts domain.FindOptions) (domain.Cursor, error) {
	findOpts := options.Find()
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(toBSON(opts.Sort))
	}
	cur, err := c.coll.Find(ctx, toBSONMap(filter), findOpts)
	if err != nil {
		return nil, err
	}
	return &Cursor{cur: cur}, nil
}

func (c *Collection) UpdateMany(ctx context.Context, filter, update domain.Document) (int64, error) {
	res, err := c.coll.UpdateMany(ctx, toBSONMap(filter), toBSONMap(update))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter domain.Document) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, toBSONMap(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *Collection) DeleteMany(ctx context.Context, filter domain.Document) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, toBSONMap(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func returnDocument(rd domain.ReturnDocument) options.ReturnDocument {
	if rd == domain.ReturnAfter {
		return options.After
	}
	return options.Before
}

func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update domain.Document, rd domain.ReturnDocument) (domain.Document, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(returnDocument(rd))
	return decodeSingle(c.coll.FindOneAndUpdate(ctx, toBSONMap(filter), toBSONMap(update), opts))
}

func (c *Collection) FindOneAndReplace(ctx context.Context, filter, replacement domain.Document, rd domain.ReturnDocument) (domain.Document, error) {
	opts := options.FindOneAndReplace().SetReturnDocument(returnDocument(rd))
	return decodeSingle(c.coll.FindOneAndReplace(ctx, toBSONMap(filter), toBSONMap(replacement), opts))
}

func (c *Collection) FindOneAndDelete(ctx context.Context, filter domain.Document) (domain.Document, error) {
	return decodeSingle(c.coll.FindOneAndDelete(ctx, toBSONMap(filter)))
}

func (c *Collection) Aggregate(ctx context.Context, pipeline domain.Pipeline) (domain.Cursor, error) {
	cur, err := c.coll.Aggregate(ctx, toPipeline(pipeline))
	if err != nil {
		return nil, err
	}
	return &Cursor{cur: cur}, nil
}

// CreateIndex issues a createIndexes command so that options reach the
// server exactly as declared.
func (c *Collection) CreateIndex(ctx context.Context, model domain.IndexModel) (string, error) {
	if len(model.Keys) == 0 {
		return "", fmt.Errorf("index on %s has no keys", c.coll.Name())
	}
	spec := bson.D{{Key: "key", Value: indexKeys(model.Keys)}}
	if model.Name != "" {
		spec = append(spec, bson.E{Key: "name", Value: model.Name})
	}
	if model.Unique {
		spec = append(spec, bson.E{Key: "unique", Value: true})
	}
	for _, key := range sortedKeys(model.Options) {
		spec = append(spec, bson.E{Key: key, Value: toBSON(model.Options[key])})
	}
	cmd := bson.D{
		{Key: "createIndexes", Value: c.coll.Name()},
		{Key: "indexes", Value: bson.A{spec}},
	}
	if err := c.db.db.RunCommand(ctx, cmd).Err(); err != nil {
		return "", err
	}
	name := model.Name
	if name == "" {
		name = defaultIndexName(model.Keys)
	}
	c.db.logger.Debug("index created", zap.String("collection", c.coll.Name()), zap.String("index", name))
	return name, nil
}

type indexSpec struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique"`
}

func (c *Collection) ListIndexes(ctx context.Context) ([]domain.IndexInfo, error) {
	cur, err := c.coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.IndexInfo
	for cur.Next(ctx) {
		var spec indexSpec
		if err := cur.Decode(&spec); err != nil {
			return nil, err
		}
		info := domain.IndexInfo{Name: spec.Name, Unique: spec.Unique}
		for _, e := range spec.Key {
			info.Keys = append(info.Keys, domain.IndexKey{Field: e.Key, Order: fromBSON(e.Value)})
		}
		out = append(out, info)
	}
	return out, cur.Err()
}

func (c *Collection) DropIndex(ctx context.Context, name string) error {
	_, err := c.coll.Indexes().DropOne(ctx, name)
	return err
}

// decodeSingle maps a missing document to a nil result.
func decodeSingle(res *mongo.SingleResult) (domain.Document, error) {
	var m bson.M
	if err := res.Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return toDocument(m), nil
}

// Cursor adapts a driver cursor to domain.Cursor.
type Cursor struct {
	cur *mongo.Cursor
}

func (c *Cursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

func (c *Cursor) Document() (domain.Document, error) {
	var m bson.M
	if err := c.cur.Decode(&m); err != nil {
		return nil, err
	}
	return toDocument(m), nil
}

func (c *Cursor) Err() error {
	return c.cur.Err()
}

func (c *Cursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

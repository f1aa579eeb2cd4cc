package storage

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// collectionData holds the documents and indexes of one collection. Documents
// are kept in insertion order.
type collectionData struct {
	name    string
	mu      sync.RWMutex
	docs    map[string]domain.Document
	order   []string
	indexes []*Index
	dirty   bool
}

func newCollectionData(name string) *collectionData {
	return &collectionData{
		name: name,
		docs: make(map[string]domain.Document),
	}
}

// scan returns the keys of the documents matching filter, in order. Plain
// equality on a single-field index narrows the candidates first.
func (c *collectionData) scan(filter domain.Document) []string {
	candidates := c.order
	if keys, ok := c.candidatesFromIndex(filter); ok {
		candidates = keys
	}
	var out []string
	for _, key := range candidates {
		if MatchesFilter(c.docs[key], filter) {
			out = append(out, key)
		}
	}
	return out
}

func (c *collectionData) first(filter domain.Document) (string, bool) {
	for _, key := range c.scan(filter) {
		return key, true
	}
	return "", false
}

// put stores doc under key, keeping indexes current. It fails without
// changing anything when a unique index would be violated.
func (c *collectionData) put(key string, doc domain.Document) error {
	old, exists := c.docs[key]
	for _, idx := range c.indexes {
		if err := idx.check(c.name, key, doc); err != nil {
			return err
		}
	}
	for _, idx := range c.indexes {
		if exists {
			idx.remove(key, old)
		}
		idx.add(key, doc)
	}
	if !exists {
		c.order = append(c.order, key)
	}
	c.docs[key] = doc
	c.dirty = true
	return nil
}

func (c *collectionData) remove(key string) {
	doc, exists := c.docs[key]
	if !exists {
		return
	}
	for _, idx := range c.indexes {
		idx.remove(key, doc)
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.dirty = true
}

func (c *collectionData) snapshot() []domain.Document {
	out := make([]domain.Document, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, deepCopyDocument(c.docs[key]))
	}
	return out
}

// docKey derives the storage key of an identity value.
func docKey(id interface{}) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return "oid:" + oid.Hex()
	}
	if n, ok := ToFloat64(id); ok {
		return fmt.Sprintf("num:%v", n)
	}
	return fmt.Sprintf("%T:%v", id, id)
}

// Collection is a handle on a collection of a StorageEngine.
type Collection struct {
	engine *StorageEngine
	name   string
}

var _ domain.Collection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) read(ctx context.Context, fn func(*collectionData) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.engine.withReadLock(c.name, fn)
}

func (c *Collection) write(ctx context.Context, fn func(*collectionData) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.engine.withWriteLock(c.name, fn)
}

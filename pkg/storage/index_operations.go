package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// DuplicateKeyError is returned when a write would violate a unique index
type DuplicateKeyError struct {
	Collection string
	Index      string
	Key        string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("E11000 duplicate key error collection: %s index: %s dup key: %s", e.Collection, e.Index, e.Key)
}

// Index maps the encoded key values of each document to the document keys
// holding them.
type Index struct {
	Name     string
	Keys     []domain.IndexKey
	Unique   bool
	Sparse   bool
	Options  domain.Document
	Inverted map[string][]string

	// multikey is set once an array value has been indexed; equality
	// lookups then fall back to a scan.
	multikey bool
}

func newIndex(model domain.IndexModel) *Index {
	idx := &Index{
		Name:     model.Name,
		Keys:     model.Keys,
		Unique:   model.Unique,
		Options:  model.Options,
		Inverted: make(map[string][]string),
	}
	if sparse, ok := model.Options["sparse"].(bool); ok {
		idx.Sparse = sparse
	}
	if unique, ok := model.Options["unique"].(bool); ok && unique {
		idx.Unique = true
	}
	return idx
}

// keyFor encodes the indexed values of doc. Missing values index as null
// unless the index is sparse.
func (idx *Index) keyFor(doc domain.Document) (string, bool) {
	values := make([]interface{}, len(idx.Keys))
	present := false
	for i, k := range idx.Keys {
		v, ok := getPath(doc, k.Field)
		if ok && v != nil {
			present = true
		}
		values[i] = indexValue(v)
	}
	if idx.Sparse && !present {
		return "", false
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(values); err != nil {
		return fmt.Sprint(values), true
	}
	return buf.String(), true
}

// indexValue normalizes a value so that equal values encode identically.
func indexValue(v interface{}) interface{} {
	if n, ok := ToFloat64(v); ok {
		return n
	}
	switch t := v.(type) {
	case primitive.ObjectID:
		return "oid:" + t.Hex()
	case time.Time:
		return t.UnixNano()
	case domain.Document:
		return indexValue(map[string]interface{}(t))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = indexValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = indexValue(val)
		}
		return out
	}
	return v
}

func (idx *Index) add(docKey string, doc domain.Document) {
	for _, k := range idx.Keys {
		if v, ok := getPath(doc, k.Field); ok {
			if _, isList := v.([]interface{}); isList {
				idx.multikey = true
			}
		}
	}
	if key, ok := idx.keyFor(doc); ok {
		idx.Inverted[key] = append(idx.Inverted[key], docKey)
	}
}

func (idx *Index) remove(docKey string, doc domain.Document) {
	key, ok := idx.keyFor(doc)
	if !ok {
		return
	}
	docList := idx.Inverted[key]
	for i, id := range docList {
		if id == docKey {
			idx.Inverted[key] = append(docList[:i], docList[i+1:]...)
			break
		}
	}
	if len(idx.Inverted[key]) == 0 {
		delete(idx.Inverted, key)
	}
}

// check reports whether storing doc under docKey would violate uniqueness
func (idx *Index) check(collection, docKey string, doc domain.Document) error {
	if !idx.Unique {
		return nil
	}
	key, ok := idx.keyFor(doc)
	if !ok {
		return nil
	}
	for _, other := range idx.Inverted[key] {
		if other != docKey {
			return &DuplicateKeyError{Collection: collection, Index: idx.Name, Key: idx.describe(doc)}
		}
	}
	return nil
}

func (idx *Index) describe(doc domain.Document) string {
	parts := make([]string, len(idx.Keys))
	for i, k := range idx.Keys {
		v, _ := getPath(doc, k.Field)
		parts[i] = fmt.Sprintf("%s: %v", k.Field, v)
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// Query returns the keys of the documents holding value in a single-field index.
func (idx *Index) Query(value interface{}) []string {
	key, ok := idx.keyFor(domain.Document{idx.Keys[0].Field: value})
	if !ok {
		return nil
	}
	return idx.Inverted[key]
}

// candidatesFromIndex narrows a scan using a single-field index when the
// filter constrains that field to a plain value.
func (c *collectionData) candidatesFromIndex(filter domain.Document) ([]string, bool) {
	for _, idx := range c.indexes {
		if len(idx.Keys) != 1 || idx.Sparse || idx.multikey {
			continue
		}
		value, ok := filter[idx.Keys[0].Field]
		if !ok || value == nil || isOperatorMap(value) {
			continue
		}
		if _, isList := value.([]interface{}); isList {
			continue
		}
		keys := idx.Query(value)
		// restore insertion order
		wanted := make(map[string]bool, len(keys))
		for _, k := range keys {
			wanted[k] = true
		}
		out := make([]string, 0, len(keys))
		for _, k := range c.order {
			if wanted[k] {
				out = append(out, k)
			}
		}
		return out, true
	}
	return nil, false
}

// defaultIndexName derives the name the driver would give an unnamed index
func defaultIndexName(keys []domain.IndexKey) string {
	parts := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		parts = append(parts, k.Field, fmt.Sprint(orderOf(k)))
	}
	return strings.Join(parts, "_")
}

func orderOf(k domain.IndexKey) interface{} {
	if k.Order == nil {
		return 1
	}
	if n, ok := ToFloat64(k.Order); ok {
		return int(n)
	}
	return k.Order
}

func sameKeys(a, b []domain.IndexKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Field != b[i].Field || fmt.Sprint(orderOf(a[i])) != fmt.Sprint(orderOf(b[i])) {
			return false
		}
	}
	return true
}

// CreateIndex builds an index over the existing documents. Creating an index
// that already exists with the same keys is a no-op.
func (c *Collection) CreateIndex(ctx context.Context, model domain.IndexModel) (string, error) {
	if len(model.Keys) == 0 {
		return "", fmt.Errorf("index on %s has no keys", c.name)
	}
	for _, opt := range sortedKeys(model.Options) {
		if c.engine.rejectedIndexOptions[opt] {
			return "", fmt.Errorf("index option %s is not supported on this atlas tier", opt)
		}
	}
	keys := make([]domain.IndexKey, len(model.Keys))
	for i, k := range model.Keys {
		keys[i] = domain.IndexKey{Field: k.Field, Order: orderOf(k)}
	}
	model.Keys = keys
	if model.Name == "" {
		model.Name = defaultIndexName(keys)
	}

	err := c.write(ctx, func(coll *collectionData) error {
		for _, existing := range coll.indexes {
			if existing.Name != model.Name {
				continue
			}
			if sameKeys(existing.Keys, model.Keys) {
				return nil
			}
			return fmt.Errorf("index %s already exists with different keys", model.Name)
		}
		idx := newIndex(model)
		for _, key := range coll.order {
			doc := coll.docs[key]
			if err := idx.check(coll.name, key, doc); err != nil {
				return fmt.Errorf("index build failed: %w", err)
			}
			idx.add(key, doc)
		}
		coll.indexes = append(coll.indexes, idx)
		coll.dirty = true
		return nil
	})
	if err != nil {
		return "", err
	}
	c.engine.logger.Debug("index created", zap.String("collection", c.name), zap.String("index", model.Name))
	return model.Name, nil
}

// ListIndexes lists the indexes of the collection, the identity index first
func (c *Collection) ListIndexes(ctx context.Context) ([]domain.IndexInfo, error) {
	var out []domain.IndexInfo
	err := c.read(ctx, func(coll *collectionData) error {
		if coll == nil {
			return nil
		}
		out = append(out, domain.IndexInfo{Name: domain.DefaultIndexName, Keys: []domain.IndexKey{{Field: "_id", Order: 1}}})
		for _, idx := range coll.indexes {
			out = append(out, domain.IndexInfo{Name: idx.Name, Keys: idx.Keys, Unique: idx.Unique})
		}
		return nil
	})
	return out, err
}

// DropIndex removes the named index
func (c *Collection) DropIndex(ctx context.Context, name string) error {
	if name == domain.DefaultIndexName {
		return fmt.Errorf("cannot drop _id index")
	}
	return c.write(ctx, func(coll *collectionData) error {
		for i, idx := range coll.indexes {
			if idx.Name == name {
				coll.indexes = append(coll.indexes[:i], coll.indexes[i+1:]...)
				coll.dirty = true
				return nil
			}
		}
		return fmt.Errorf("index not found with name [%s]", name)
	})
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

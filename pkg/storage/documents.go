package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// InsertOne inserts a document, generating an ObjectID when it has no _id
func (c *Collection) InsertOne(ctx context.Context, doc domain.Document) (interface{}, error) {
	var id interface{}
	err := c.write(ctx, func(coll *collectionData) error {
		var err error
		id, err = insertLocked(coll, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// InsertMany inserts all documents or none of them
func (c *Collection) InsertMany(ctx context.Context, docs []domain.Document) ([]interface{}, error) {
	var ids []interface{}
	err := c.write(ctx, func(coll *collectionData) error {
		for _, doc := range docs {
			id, err := insertLocked(coll, doc)
			if err != nil {
				for _, done := range ids {
					coll.remove(docKey(done))
				}
				ids = nil
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func insertLocked(coll *collectionData, doc domain.Document) (interface{}, error) {
	stored := deepCopyDocument(doc)
	id, ok := stored["_id"]
	if !ok || id == nil {
		id = primitive.NewObjectID()
		stored["_id"] = id
	}
	key := docKey(id)
	if _, exists := coll.docs[key]; exists {
		return nil, &DuplicateKeyError{Collection: coll.name, Index: domain.DefaultIndexName, Key: fmt.Sprint(id)}
	}
	if err := coll.put(key, stored); err != nil {
		return nil, err
	}
	return id, nil
}

// FindOne returns the first matching document, or nil
func (c *Collection) FindOne(ctx context.Context, filter domain.Document) (domain.Document, error) {
	var out domain.Document
	err := c.read(ctx, func(coll *collectionData) error {
		if coll == nil {
			return nil
		}
		if key, ok := coll.first(filter); ok {
			out = deepCopyDocument(coll.docs[key])
		}
		return nil
	})
	return out, err
}

// Find returns a cursor over the matching documents
func (c *Collection) Find(ctx context.Context, filter domain.Document, opts domain.FindOptions) (domain.Cursor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var docs []domain.Document
	err := c.read(ctx, func(coll *collectionData) error {
		if coll == nil {
			return nil
		}
		for _, key := range coll.scan(filter) {
			docs = append(docs, deepCopyDocument(coll.docs[key]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(opts.Sort) > 0 {
		sortDocuments(docs, opts.Sort)
	}
	docs = window(docs, opts.Skip, opts.Limit)
	return newSliceCursor(docs), nil
}

func window(docs []domain.Document, skip, limit int64) []domain.Document {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

// UpdateMany applies an update to every matching document and returns the
// number of documents that changed
func (c *Collection) UpdateMany(ctx context.Context, filter, update domain.Document) (int64, error) {
	var modified int64
	err := c.write(ctx, func(coll *collectionData) error {
		for _, key := range coll.scan(filter) {
			changed, _, err := updateLocked(coll, key, update)
			if err != nil {
				return err
			}
			if changed {
				modified++
			}
		}
		return nil
	})
	return modified, err
}

func updateLocked(coll *collectionData, key string, update domain.Document) (bool, domain.Document, error) {
	current := coll.docs[key]
	next, err := applyUpdate(current, update)
	if err != nil {
		return false, nil, err
	}
	if ValuesMatch(current, next) {
		return false, next, nil
	}
	if err := coll.put(key, next); err != nil {
		return false, nil, err
	}
	return true, next, nil
}

// DeleteOne removes the first matching document
func (c *Collection) DeleteOne(ctx context.Context, filter domain.Document) (int64, error) {
	var deleted int64
	err := c.write(ctx, func(coll *collectionData) error {
		if key, ok := coll.first(filter); ok {
			coll.remove(key)
			deleted = 1
		}
		return nil
	})
	return deleted, err
}

// DeleteMany removes every matching document
func (c *Collection) DeleteMany(ctx context.Context, filter domain.Document) (int64, error) {
	var deleted int64
	err := c.write(ctx, func(coll *collectionData) error {
		for _, key := range coll.scan(filter) {
			coll.remove(key)
			deleted++
		}
		return nil
	})
	return deleted, err
}

// FindOneAndUpdate atomically updates the first matching document
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update domain.Document, rd domain.ReturnDocument) (domain.Document, error) {
	var out domain.Document
	err := c.write(ctx, func(coll *collectionData) error {
		key, ok := coll.first(filter)
		if !ok {
			return nil
		}
		before := coll.docs[key]
		_, after, err := updateLocked(coll, key, update)
		if err != nil {
			return err
		}
		out = pickImage(before, after, rd)
		return nil
	})
	return out, err
}

// FindOneAndReplace atomically replaces the first matching document, keeping its _id
func (c *Collection) FindOneAndReplace(ctx context.Context, filter, replacement domain.Document, rd domain.ReturnDocument) (domain.Document, error) {
	for key := range replacement {
		if len(key) > 0 && key[0] == '$' {
			return nil, fmt.Errorf("replacement document must not contain update operators, found %s", key)
		}
	}
	return c.FindOneAndUpdate(ctx, filter, replacement, rd)
}

// FindOneAndDelete atomically removes the first matching document and returns it
func (c *Collection) FindOneAndDelete(ctx context.Context, filter domain.Document) (domain.Document, error) {
	var out domain.Document
	err := c.write(ctx, func(coll *collectionData) error {
		key, ok := coll.first(filter)
		if !ok {
			return nil
		}
		out = deepCopyDocument(coll.docs[key])
		coll.remove(key)
		return nil
	})
	return out, err
}

// Aggregate runs a pipeline over a snapshot of the collection
func (c *Collection) Aggregate(ctx context.Context, pipeline domain.Pipeline) (domain.Cursor, error) {
	var docs []domain.Document
	err := c.read(ctx, func(coll *collectionData) error {
		if coll != nil {
			docs = coll.snapshot()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out, err := runPipeline(docs, pipeline)
	if err != nil {
		return nil, err
	}
	return newSliceCursor(out), nil
}

func pickImage(before, after domain.Document, rd domain.ReturnDocument) domain.Document {
	if rd == domain.ReturnAfter {
		return deepCopyDocument(after)
	}
	return deepCopyDocument(before)
}

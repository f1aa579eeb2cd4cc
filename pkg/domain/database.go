package domain

import "context"

// ReturnDocument selects which image a find-and-modify call returns.
type ReturnDocument int

const (
	// ReturnBefore returns the document as it was before the modification.
	ReturnBefore ReturnDocument = iota
	// ReturnAfter returns the document after the modification.
	ReturnAfter
)

// Database is a handle on a named database.
type Database interface {
	Name() string
	Collection(name string) Collection
	Close(ctx context.Context) error
}

// Collection is the set of driver operations the ODM relies on. Single
// document lookups return a nil document and a nil error when nothing matches.
type Collection interface {
	Name() string

	InsertOne(ctx context.Context, doc Document) (interface{}, error)
	InsertMany(ctx context.Context, docs []Document) ([]interface{}, error)

	FindOne(ctx context.Context, filter Document) (Document, error)
	Find(ctx context.Context, filter Document, opts FindOptions) (Cursor, error)

	UpdateMany(ctx context.Context, filter, update Document) (int64, error)
	DeleteOne(ctx context.Context, filter Document) (int64, error)
	DeleteMany(ctx context.Context, filter Document) (int64, error)

	FindOneAndUpdate(ctx context.Context, filter, update Document, rd ReturnDocument) (Document, error)
	FindOneAndReplace(ctx context.Context, filter, replacement Document, rd ReturnDocument) (Document, error)
	FindOneAndDelete(ctx context.Context, filter Document) (Document, error)

	Aggregate(ctx context.Context, pipeline Pipeline) (Cursor, error)

	CreateIndex(ctx context.Context, model IndexModel) (string, error)
	ListIndexes(ctx context.Context) ([]IndexInfo, error)
	DropIndex(ctx context.Context, name string) error
}

// Cursor iterates over a lazily fetched result set.
type Cursor interface {
	Next(ctx context.Context) bool
	Document() (Document, error)
	Err() error
	Close(ctx context.Context) error
}

// All drains the cursor and closes it.
func All(ctx context.Context, cur Cursor) ([]Document, error) {
	defer cur.Close(ctx)

	var docs []Document
	for cur.Next(ctx) {
		doc, err := cur.Document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

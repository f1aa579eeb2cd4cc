package odm

import (
	"context"

	"github.com/zeebo/errs"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// Cursor iterates lazily over the documents of one collection, hydrating
// each as its model.
type Cursor struct {
	cur   domain.Cursor
	model *Model
	owner *Model
	class *errs.Class
}

// Model returns the model of the collection the cursor reads.
func (c *Cursor) Model() *Model { return c.owner }

// Next advances the cursor.
func (c *Cursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

// Raw returns the current stored document.
func (c *Cursor) Raw() (domain.Document, error) {
	return c.cur.Document()
}

// Document returns the current document hydrated.
func (c *Cursor) Document() (*Document, error) {
	raw, err := c.cur.Document()
	if err != nil {
		return nil, c.class.Wrap(err)
	}
	return c.model.hydrate(c.owner, raw)
}

func (c *Cursor) Err() error {
	if err := c.cur.Err(); err != nil {
		return c.class.Wrap(err)
	}
	return nil
}

func (c *Cursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

// All drains and closes the cursor.
func (c *Cursor) All(ctx context.Context) ([]*Document, error) {
	defer c.cur.Close(ctx)
	var out []*Document
	for c.cur.Next(ctx) {
		doc, err := c.Document()
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

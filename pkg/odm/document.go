package odm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/domain"
	"github.com/adfharrison1/go-odm/pkg/fields"
)

// Document is an instance of a model. A document without an identity is new;
// it gets one when it is first saved.
type Document struct {
	record
	model   *Model
	id      primitive.ObjectID
	hasID   bool
	deleted bool
}

var _ fields.Identifiable = (*Document)(nil)

// Model returns the model of the document.
func (d *Document) Model() *Model { return d.model }

// ID returns the identity of the document.
func (d *Document) ID() primitive.ObjectID { return d.id }

// HasID reports whether the document has been persisted.
func (d *Document) HasID() bool { return d.hasID }

// IsNew reports whether the document has no identity yet.
func (d *Document) IsNew() bool { return !d.hasID }

// IsDeleted reports whether the document was deleted through Delete.
func (d *Document) IsDeleted() bool { return d.deleted }

// Get returns the read form of a field value; "_id" returns the identity.
func (d *Document) Get(name string) (interface{}, error) {
	if name == IDKey {
		if !d.hasID {
			return nil, nil
		}
		return d.id, nil
	}
	return d.record.Get(name)
}

// Set validates v and assigns it to the named field. The identity cannot be
// changed once assigned.
func (d *Document) Set(name string, v interface{}) error {
	if name == IDKey {
		return ErrUpdate.New("%s: _id is immutable", d.model.name)
	}
	return d.record.set(name, v, d.model.registry.stamp())
}

// Ref returns the identity stored in a reference field.
func (d *Document) Ref(name string) (primitive.ObjectID, bool) {
	oid, ok := d.values[name].(primitive.ObjectID)
	return oid, ok
}

type mapOptions struct {
	nativeID bool
	exclude  map[string]bool
}

// MapOption configures ToMap.
type MapOption func(*mapOptions)

// WithNativeID keeps identities as primitive.ObjectID instead of hex strings.
func WithNativeID() MapOption {
	return func(o *mapOptions) { o.nativeID = true }
}

// Exclude drops the named keys from the map.
func Exclude(names ...string) MapOption {
	return func(o *mapOptions) {
		if o.exclude == nil {
			o.exclude = make(map[string]bool)
		}
		for _, name := range names {
			o.exclude[name] = true
		}
	}
}

// ToMap flattens the document to its wire form: enums as their values,
// embedded documents as maps, geo points in their configured form and
// identities as hex strings unless WithNativeID is given.
func (d *Document) ToMap(opts ...MapOption) map[string]interface{} {
	var o mapOptions
	for _, opt := range opts {
		opt(&o)
	}
	out := d.schema.export(d.values)
	if d.hasID {
		out[IDKey] = d.id
	}
	for name := range o.exclude {
		delete(out, name)
	}
	if o.nativeID {
		return out
	}
	return stringIDs(out).(map[string]interface{})
}

// ToJSON encodes ToMap as JSON. Times are written in RFC 3339 form.
func (d *Document) ToJSON() ([]byte, error) {
	return json.Marshal(d.ToMap())
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return d.ToJSON()
}

func (d *Document) String() string {
	if d.hasID {
		return fmt.Sprintf("%s(%s)", d.model.name, d.id.Hex())
	}
	return fmt.Sprintf("%s(new)", d.model.name)
}

// stringIDs replaces identities with their hex form, recursively.
func stringIDs(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = stringIDs(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = stringIDs(val)
		}
		return out
	}
	return v
}

// stored returns the document as written to the collection.
func (d *Document) stored() domain.Document {
	doc := domain.Document(d.schema.store(d.values, false))
	doc[TypeKey] = d.model.name
	if d.hasID {
		doc[IDKey] = d.id
	}
	return doc
}

// Save inserts a new document or replaces the persisted one by identity.
// created_at is stamped once; updated_at on every save.
func (d *Document) Save(ctx context.Context) error {
	if d.deleted {
		return ErrDeleted.New("%s was deleted", d)
	}
	m := d.model
	if d.IsNew() && m.Polymorphic() {
		return ErrPolymorphicWrite.New("cannot save a %s: it has submodels, save a concrete model instead", m.name)
	}
	if err := m.EnsureIndexes(ctx); err != nil {
		return err
	}
	db, err := m.registry.Database()
	if err != nil {
		return err
	}

	// Stamps land on a copy and are committed once the write succeeded.
	staged := *d
	staged.values = make(map[string]interface{}, len(d.values)+2)
	for k, v := range d.values {
		staged.values[k] = v
	}
	now := m.registry.stamp()
	for _, f := range d.schema.fields {
		if autoNow(f) {
			staged.values[f.Name()] = now
		}
	}
	if m.createdAt && staged.values[CreatedAtKey] == nil {
		staged.values[CreatedAtKey] = now
	}
	if m.updatedAt {
		if prev, ok := staged.values[UpdatedAtKey].(time.Time); ok && !now.After(prev) {
			now = prev.Add(time.Millisecond)
		}
		staged.values[UpdatedAtKey] = now
	}

	coll := db.Collection(m.collection)
	if d.IsNew() {
		id, err := coll.InsertOne(ctx, staged.stored())
		if err != nil {
			return ErrInsert.Wrap(fmt.Errorf("saving %s in %q: %w", m.name, m.collection, err))
		}
		oid, ok := id.(primitive.ObjectID)
		if !ok {
			return ErrInsert.New("saving %s in %q: unexpected identity %v", m.name, m.collection, id)
		}
		d.values = staged.values
		d.id, d.hasID = oid, true
		m.registry.logger.Debug("document inserted", zap.String("collection", m.collection), zap.String("id", oid.Hex()))
		return nil
	}

	replaced, err := coll.FindOneAndReplace(ctx, domain.Document{IDKey: d.id}, staged.stored(), domain.ReturnAfter)
	if err != nil {
		return ErrUpdate.Wrap(fmt.Errorf("saving %s in %q: %w", d, m.collection, err))
	}
	if replaced == nil {
		return ErrNotFound.New("saving %s: no document in %q", d, m.collection)
	}
	d.values = staged.values
	return nil
}

// Delete removes the document by identity. A deleted document cannot be
// saved or deleted again.
func (d *Document) Delete(ctx context.Context) error {
	if d.deleted {
		return ErrDeleted.New("%s was already deleted", d)
	}
	if d.IsNew() {
		return ErrDelete.New("%s has not been saved", d)
	}
	m := d.model
	if err := m.EnsureIndexes(ctx); err != nil {
		return err
	}
	db, err := m.registry.Database()
	if err != nil {
		return err
	}
	if _, err := db.Collection(m.collection).DeleteOne(ctx, domain.Document{IDKey: d.id}); err != nil {
		return ErrDelete.Wrap(fmt.Errorf("deleting %s from %q: %w", d, m.collection, err))
	}
	d.deleted = true
	return nil
}

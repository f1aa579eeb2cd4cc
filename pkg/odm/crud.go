package odm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/domain"
	"github.com/adfharrison1/go-odm/pkg/fields"
)

// New validates values into a new, unsaved document of m. Unknown keys and
// missing required fields are errors; defaults are applied.
func (m *Model) New(values map[string]interface{}) (*Document, error) {
	return m.build(values, m.registry.stamp())
}

func (m *Model) build(values map[string]interface{}, now time.Time) (*Document, error) {
	out, err := m.schema.build(values, modeCreate, now)
	if err != nil {
		return nil, err
	}
	doc := &Document{record: record{schema: m.schema, values: out}, model: m}
	if raw, ok := values[IDKey]; ok && raw != nil {
		oid, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		doc.id, doc.hasID = oid, true
	}
	return doc, nil
}

// FromMap rebuilds a document from stored data. Keys naming no field are
// dropped and required fields are not enforced. The discriminator selects
// the submodel to hydrate as.
func (m *Model) FromMap(values map[string]interface{}) (*Document, error) {
	return m.hydrate(m, values)
}

func (m *Model) hydrate(owner *Model, raw map[string]interface{}) (*Document, error) {
	target := m.resolve(owner, raw)
	out, err := target.schema.build(raw, modeHydrate, time.Time{})
	if err != nil {
		return nil, err
	}
	doc := &Document{record: record{schema: target.schema, values: out}, model: target}
	if oid, err := parseID(raw[IDKey]); err == nil {
		doc.id, doc.hasID = oid, true
	}
	return doc, nil
}

func parseID(v interface{}) (primitive.ObjectID, error) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, nil
	case string:
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return primitive.NilObjectID, ErrInvalidID.New("%q is not a valid ObjectId", id)
		}
		return oid, nil
	case fields.Identifiable:
		if id.HasID() {
			return id.ID(), nil
		}
	}
	return primitive.NilObjectID, ErrInvalidID.New("%v is not an ObjectId", v)
}

// stampCreate fills the timestamps of a document about to be inserted.
func (m *Model) stampCreate(doc *Document, now time.Time) {
	if m.createdAt && doc.values[CreatedAtKey] == nil {
		doc.values[CreatedAtKey] = now
	}
	if m.updatedAt && doc.values[UpdatedAtKey] == nil {
		doc.values[UpdatedAtKey] = now
	}
}

// begin returns the collection of target after synchronizing its indexes.
func (m *Model) begin(ctx context.Context, target *Model) (domain.Collection, error) {
	if err := target.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	db, err := m.registry.Database()
	if err != nil {
		return nil, err
	}
	return db.Collection(target.collection), nil
}

func (m *Model) concrete(op string) error {
	if m.Polymorphic() {
		return ErrPolymorphicWrite.New("%s on %s: it has submodels, use a concrete model", op, m.name)
	}
	return nil
}

// InsertOne validates values, persists them and returns the stored document.
func (m *Model) InsertOne(ctx context.Context, values map[string]interface{}) (*Document, error) {
	if err := m.concrete("insert"); err != nil {
		return nil, err
	}
	coll, err := m.begin(ctx, m)
	if err != nil {
		return nil, err
	}
	now := m.registry.stamp()
	doc, err := m.build(values, now)
	if err != nil {
		return nil, err
	}
	m.stampCreate(doc, now)

	id, err := coll.InsertOne(ctx, doc.stored())
	if err != nil {
		return nil, ErrInsert.Wrap(fmt.Errorf("collection %q: %w", m.collection, err))
	}
	stored, err := coll.FindOne(ctx, domain.Document{IDKey: id})
	if err != nil {
		return nil, ErrInsert.Wrap(fmt.Errorf("collection %q: reading back %v: %w", m.collection, id, err))
	}
	if stored == nil {
		return nil, ErrInsert.New("collection %q: inserted document %v not found", m.collection, id)
	}
	m.registry.logger.Debug("document inserted", zap.String("collection", m.collection), zap.Any("id", id))
	return m.hydrate(m, stored)
}

// InsertMany validates every mapping before writing any of them, then
// inserts the batch. It returns the documents with their identities.
func (m *Model) InsertMany(ctx context.Context, values []map[string]interface{}) ([]*Document, []primitive.ObjectID, error) {
	if err := m.concrete("insert"); err != nil {
		return nil, nil, err
	}
	coll, err := m.begin(ctx, m)
	if err != nil {
		return nil, nil, err
	}
	if len(values) == 0 {
		return nil, nil, nil
	}

	now := m.registry.stamp()
	docs := make([]*Document, len(values))
	batch := make([]domain.Document, len(values))
	for i, v := range values {
		doc, err := m.build(v, now)
		if err != nil {
			return nil, nil, err
		}
		m.stampCreate(doc, now)
		docs[i] = doc
		batch[i] = doc.stored()
	}

	ids, err := coll.InsertMany(ctx, batch)
	if err != nil {
		return nil, nil, ErrInsert.Wrap(fmt.Errorf("collection %q: inserting %d documents: %w", m.collection, len(batch), err))
	}
	oids := make([]primitive.ObjectID, 0, len(ids))
	for i, id := range ids {
		oid, ok := id.(primitive.ObjectID)
		if !ok {
			return nil, nil, ErrInsert.New("collection %q: unexpected identity %v", m.collection, id)
		}
		docs[i].id, docs[i].hasID = oid, true
		oids = append(oids, oid)
	}
	m.registry.logger.Debug("documents inserted", zap.String("collection", m.collection), zap.Int("count", len(oids)))
	return docs, oids, nil
}

// FindOne returns the first document matching filter, or nil. A model with
// submodels searches their collections in registration order.
func (m *Model) FindOne(ctx context.Context, filter map[string]interface{}) (*Document, error) {
	for _, t := range m.Targets() {
		coll, err := m.begin(ctx, t.Model)
		if err != nil {
			return nil, err
		}
		f, err := t.Model.normalizeFilter(filter, false)
		if err != nil {
			return nil, err
		}
		raw, err := coll.FindOne(ctx, f)
		if err != nil {
			return nil, ErrFind.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		if raw != nil {
			return m.hydrate(t.Model, raw)
		}
	}
	return nil, nil
}

type findOptions struct {
	opts domain.FindOptions
}

// FindOption bounds or orders a find.
type FindOption func(*findOptions)

// WithLimit caps the documents returned from each collection.
func WithLimit(n int64) FindOption {
	return func(o *findOptions) { o.opts.Limit = n }
}

// WithSkip skips the first n matches of each collection.
func WithSkip(n int64) FindOption {
	return func(o *findOptions) { o.opts.Skip = n }
}

// WithSort orders the matches of each collection.
func WithSort(sort domain.D) FindOption {
	return func(o *findOptions) { o.opts.Sort = sort }
}

// FindMany returns every document matching filter. Options apply to each
// collection on its own.
func (m *Model) FindMany(ctx context.Context, filter map[string]interface{}, opts ...FindOption) ([]*Document, error) {
	cursors, err := m.FindCursors(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var out []*Document
	for i, cur := range cursors {
		docs, err := cur.All(ctx)
		if err != nil {
			for _, rest := range cursors[i+1:] {
				_ = rest.Close(ctx)
			}
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

// FindCursors opens one lazy cursor per collection backing m.
func (m *Model) FindCursors(ctx context.Context, filter map[string]interface{}, opts ...FindOption) ([]*Cursor, error) {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.opts.Validate(); err != nil {
		return nil, ErrFind.Wrap(err)
	}

	var cursors []*Cursor
	closeAll := func() {
		for _, c := range cursors {
			_ = c.Close(ctx)
		}
	}
	for _, t := range m.Targets() {
		coll, err := m.begin(ctx, t.Model)
		if err != nil {
			closeAll()
			return nil, err
		}
		f, err := t.Model.normalizeFilter(filter, false)
		if err != nil {
			closeAll()
			return nil, err
		}
		cur, err := coll.Find(ctx, f, o.opts)
		if err != nil {
			closeAll()
			return nil, ErrFind.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		cursors = append(cursors, &Cursor{cur: cur, model: m, owner: t.Model, class: &ErrFind})
	}
	return cursors, nil
}

// updatePayload validates an update for target. Keys of the query and the
// reserved keys are never written.
func (m *Model) updatePayload(target *Model, query, update map[string]interface{}, now time.Time) (domain.Document, error) {
	payload := make(map[string]interface{}, len(update))
	for k, v := range update {
		if _, inQuery := query[k]; inQuery || k == IDKey || k == TypeKey {
			continue
		}
		payload[k] = v
	}
	values, err := target.schema.build(payload, modePartial, now)
	if err != nil {
		return nil, err
	}
	if target.updatedAt {
		values[UpdatedAtKey] = now
	}
	return domain.Document(target.schema.store(values, true)), nil
}

func isUnknownField(err error) bool {
	var unknown *fields.UnknownFieldError
	return errors.As(err, &unknown)
}

// UpdateOne sets the validated fields of update on the first document
// matching query and returns it after the update, or nil when nothing
// matched. Keys that appear in query are left untouched.
func (m *Model) UpdateOne(ctx context.Context, query, update map[string]interface{}) (*Document, error) {
	targets := m.Targets()
	var (
		rejected error
		applied  bool
	)
	for _, t := range targets {
		coll, err := m.begin(ctx, t.Model)
		if err != nil {
			return nil, err
		}
		payload, err := m.updatePayload(t.Model, query, update, m.registry.stamp())
		if err != nil {
			if len(targets) > 1 && isUnknownField(err) {
				rejected = err
				continue
			}
			return nil, err
		}
		applied = true
		f, err := t.Model.normalizeFilter(query, true)
		if err != nil {
			return nil, err
		}

		var raw domain.Document
		if len(payload) == 0 {
			raw, err = coll.FindOne(ctx, f)
		} else {
			raw, err = coll.FindOneAndUpdate(ctx, f, domain.Document{"$set": payload}, domain.ReturnAfter)
		}
		if err != nil {
			return nil, ErrUpdate.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		if raw != nil {
			return m.hydrate(t.Model, raw)
		}
	}
	if !applied && rejected != nil {
		return nil, rejected
	}
	return nil, nil
}

// UpdateMany sets the validated fields of update on every document matching
// query. It returns the matching documents read after the update and the
// number of documents modified.
func (m *Model) UpdateMany(ctx context.Context, query, update map[string]interface{}) ([]*Document, int64, error) {
	targets := m.Targets()
	var (
		out      []*Document
		modified int64
		rejected error
		applied  bool
	)
	for _, t := range targets {
		coll, err := m.begin(ctx, t.Model)
		if err != nil {
			return nil, 0, err
		}
		payload, err := m.updatePayload(t.Model, query, update, m.registry.stamp())
		if err != nil {
			if len(targets) > 1 && isUnknownField(err) {
				rejected = err
				continue
			}
			return nil, 0, err
		}
		applied = true
		f, err := t.Model.normalizeFilter(query, true)
		if err != nil {
			return nil, 0, err
		}
		if len(payload) == 0 {
			continue
		}
		n, err := coll.UpdateMany(ctx, f, domain.Document{"$set": payload})
		if err != nil {
			return nil, 0, ErrUpdate.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		modified += n
		if n == 0 {
			continue
		}
		cur, err := coll.Find(ctx, f, domain.FindOptions{})
		if err != nil {
			return nil, 0, ErrFind.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		docs, err := (&Cursor{cur: cur, model: m, owner: t.Model, class: &ErrUpdate}).All(ctx)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, docs...)
	}
	if !applied && rejected != nil {
		return nil, 0, rejected
	}
	return out, modified, nil
}

// DeleteOne removes the first document matching filter and reports whether
// one was removed.
func (m *Model) DeleteOne(ctx context.Context, filter map[string]interface{}) (bool, error) {
	for _, t := range m.Targets() {
		coll, err := m.begin(ctx, t.Model)
		if err != nil {
			return false, err
		}
		f, err := t.Model.normalizeFilter(filter, true)
		if err != nil {
			return false, err
		}
		n, err := coll.DeleteOne(ctx, f)
		if err != nil {
			return false, ErrDelete.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// DeleteMany removes every document matching filter and returns the count.
func (m *Model) DeleteMany(ctx context.Context, filter map[string]interface{}) (int64, error) {
	var total int64
	for _, t := range m.Targets() {
		coll, err := m.begin(ctx, t.Model)
		if err != nil {
			return total, err
		}
		f, err := t.Model.normalizeFilter(filter, true)
		if err != nil {
			return total, err
		}
		n, err := coll.DeleteMany(ctx, f)
		if err != nil {
			return total, ErrDelete.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		total += n
	}
	return total, nil
}

// FindOneOrCreate returns the document matching query, or inserts one built
// from the plain keys of query and defaults. created reports the insert.
func (m *Model) FindOneOrCreate(ctx context.Context, query, defaults map[string]interface{}) (doc *Document, created bool, err error) {
	if err := m.concrete("find or create"); err != nil {
		return nil, false, err
	}
	doc, err = m.FindOne(ctx, query)
	if err != nil || doc != nil {
		return doc, false, err
	}
	values := make(map[string]interface{}, len(query)+len(defaults))
	for k, v := range query {
		if len(k) > 0 && k[0] == '$' {
			continue
		}
		values[k] = v
	}
	for k, v := range defaults {
		values[k] = v
	}
	doc, err = m.InsertOne(ctx, values)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// keptOnReplace returns the fields whose stored value survives a replace:
// every auto_now_add field, and created_at unless the replacement sets it.
func (m *Model) keptOnReplace(doc *Document) []fields.Field {
	var keep []fields.Field
	for _, f := range m.schema.fields {
		switch {
		case autoNowAdd(f):
			keep = append(keep, f)
		case f.Name() == CreatedAtKey && m.createdAt && doc.values[CreatedAtKey] == nil:
			keep = append(keep, f)
		}
	}
	return keep
}

// FindOneAndReplace replaces the document matching query with a validated
// replacement and returns the new version. auto_now_add values and the
// creation time of the replaced document are kept, the latter unless the
// replacement sets one.
func (m *Model) FindOneAndReplace(ctx context.Context, query, replacement map[string]interface{}) (*Document, error) {
	if err := m.concrete("replace"); err != nil {
		return nil, err
	}
	coll, err := m.begin(ctx, m)
	if err != nil {
		return nil, err
	}
	f, err := m.normalizeFilter(query, true)
	if err != nil {
		return nil, err
	}
	now := m.registry.stamp()
	doc, err := m.build(replacement, now)
	if err != nil {
		return nil, err
	}

	if keep := m.keptOnReplace(doc); len(keep) > 0 {
		current, err := coll.FindOne(ctx, f)
		if err != nil {
			return nil, ErrFind.Wrap(fmt.Errorf("collection %q: %w", m.collection, err))
		}
		if current == nil {
			return nil, ErrNotFound.New("collection %q: no document matches %v", m.collection, query)
		}
		for _, field := range keep {
			if v, err := field.Validate(current[field.Name()]); err == nil && v != nil {
				doc.values[field.Name()] = v
			}
		}
	}
	m.stampCreate(doc, now)
	if m.updatedAt {
		doc.values[UpdatedAtKey] = now
	}

	raw, err := coll.FindOneAndReplace(ctx, f, doc.stored(), domain.ReturnAfter)
	if err != nil {
		return nil, ErrUpdate.Wrap(fmt.Errorf("collection %q: %w", m.collection, err))
	}
	if raw == nil {
		return nil, ErrNotFound.New("collection %q: no document matches %v", m.collection, query)
	}
	return m.hydrate(m, raw)
}

// FindOneAndUpdateEmptyFields fills the fields of the document matching
// query that are absent or empty with the values of update. Populated
// fields are never overwritten. It returns the document and whether it was
// modified.
func (m *Model) FindOneAndUpdateEmptyFields(ctx context.Context, query, update map[string]interface{}) (*Document, bool, error) {
	for _, t := range m.Targets() {
		coll, err := m.begin(ctx, t.Model)
		if err != nil {
			return nil, false, err
		}
		f, err := t.Model.normalizeFilter(query, false)
		if err != nil {
			return nil, false, err
		}
		current, err := coll.FindOne(ctx, f)
		if err != nil {
			return nil, false, ErrFind.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		if current == nil {
			continue
		}

		fill := make(map[string]interface{})
		for k, v := range update {
			if _, inQuery := query[k]; inQuery {
				continue
			}
			if existing, ok := current[k]; ok && !isEmpty(existing) {
				continue
			}
			fill[k] = v
		}
		if len(fill) == 0 {
			doc, err := m.hydrate(t.Model, current)
			return doc, false, err
		}

		payload, err := m.updatePayload(t.Model, nil, fill, m.registry.stamp())
		if err != nil {
			return nil, false, err
		}
		raw, err := coll.FindOneAndUpdate(ctx, domain.Document{IDKey: current[IDKey]}, domain.Document{"$set": payload}, domain.ReturnAfter)
		if err != nil {
			return nil, false, ErrUpdate.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		if raw == nil {
			return nil, false, ErrNotFound.New("collection %q: document %v disappeared", t.Collection, current[IDKey])
		}
		doc, err := m.hydrate(t.Model, raw)
		return doc, true, err
	}
	return nil, false, ErrNotFound.New("%s: no document matches %v", m.name, query)
}

// isEmpty reports whether a stored value counts as unset.
func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case bool:
		return !t
	}
	if n, ok := fields.ToFloat64(v); ok {
		return n == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// FindOneAndDelete removes the document matching filter and returns it.
func (m *Model) FindOneAndDelete(ctx context.Context, filter map[string]interface{}) (*Document, error) {
	for _, t := range m.Targets() {
		coll, err := m.begin(ctx, t.Model)
		if err != nil {
			return nil, err
		}
		f, err := t.Model.normalizeFilter(filter, true)
		if err != nil {
			return nil, err
		}
		raw, err := coll.FindOneAndDelete(ctx, f)
		if err != nil {
			return nil, ErrDelete.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		if raw != nil {
			doc, err := m.hydrate(t.Model, raw)
			if err != nil {
				return nil, err
			}
			doc.deleted = true
			return doc, nil
		}
	}
	return nil, ErrNotFound.New("%s: no document matches %v", m.name, filter)
}

// Aggregate runs pipeline on every collection backing m and hydrates the
// results as documents.
func (m *Model) Aggregate(ctx context.Context, pipeline domain.Pipeline) ([]*Document, error) {
	cursors, err := m.AggregateCursors(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var out []*Document
	for i, cur := range cursors {
		docs, err := cur.All(ctx)
		if err != nil {
			for _, rest := range cursors[i+1:] {
				_ = rest.Close(ctx)
			}
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

// AggregateCursors runs pipeline on every collection backing m and returns
// the lazy result cursors.
func (m *Model) AggregateCursors(ctx context.Context, pipeline domain.Pipeline) ([]*Cursor, error) {
	var cursors []*Cursor
	for _, t := range m.Targets() {
		coll, err := m.begin(ctx, t.Model)
		if err != nil {
			return nil, err
		}
		cur, err := coll.Aggregate(ctx, pipeline)
		if err != nil {
			for _, c := range cursors {
				_ = c.Close(ctx)
			}
			return nil, ErrAggregate.Wrap(fmt.Errorf("collection %q: %w", t.Collection, err))
		}
		cursors = append(cursors, &Cursor{cur: cur, model: m, owner: t.Model, class: &ErrAggregate})
	}
	return cursors, nil
}

// EnsureIndexes synchronizes the indexes of the collection backing m with
// the declared ones. It runs once per connection; a model with submodels
// synchronizes the collections of its submodels.
func (m *Model) EnsureIndexes(ctx context.Context) error {
	if m.Polymorphic() {
		for _, t := range m.Targets() {
			if err := t.Model.EnsureIndexes(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	if m.indexed.Load() {
		return nil
	}
	db, err := m.registry.Database()
	if err != nil {
		return err
	}
	unique, declared := m.registry.collectionSpecs(m.collection)
	res, err := m.registry.indexer.Sync(ctx, db.Collection(m.collection), unique, declared)
	if err != nil {
		return ErrIndex.Wrap(err)
	}
	m.indexed.Store(true)
	if len(res.Created)+len(res.Dropped)+len(res.Skipped) > 0 {
		m.registry.logger.Info("indexes synchronized",
			zap.String("collection", m.collection),
			zap.Strings("created", res.Created),
			zap.Strings("dropped", res.Dropped),
			zap.Strings("skipped", res.Skipped))
	}
	return nil
}

// FetchReference loads the document a reference field of doc points at. It
// returns nil when the field is unset or the target no longer exists.
func (m *Model) FetchReference(ctx context.Context, doc *Document, field string) (*Document, error) {
	f, ok := doc.schema.field(field)
	if !ok {
		return nil, fields.NewUnknownFieldError(doc.schema.name, field)
	}
	ref, ok := f.(*fields.ReferenceField)
	if !ok {
		return nil, ErrFind.New("%s.%s is not a reference", doc.model.name, field)
	}
	target, ok := ref.Target().(*Model)
	if !ok {
		return nil, ErrConfig.New("%s.%s references %s, which is not a registered model", doc.model.name, field, ref.Target().ModelName())
	}
	oid, ok := doc.Ref(field)
	if !ok {
		return nil, nil
	}
	return target.FindOne(ctx, map[string]interface{}{IDKey: oid})
}

// Fetch loads the document the named reference field points at.
func (d *Document) Fetch(ctx context.Context, field string) (*Document, error) {
	return d.model.FetchReference(ctx, d, field)
}

package odm

import (
	"sort"
	"time"

	"github.com/adfharrison1/go-odm/pkg/fields"
)

// Reserved keys of a stored document.
const (
	IDKey   = "_id"
	TypeKey = "_type"

	CreatedAtKey = "created_at"
	UpdatedAtKey = "updated_at"
)

// buildMode selects how a mapping is turned into field values.
type buildMode int

const (
	// modeCreate rejects unknown keys, applies defaults and auto
	// timestamps, and enforces required fields.
	modeCreate buildMode = iota
	// modeHydrate reads stored data: unknown keys are dropped, defaults
	// applied, required not enforced.
	modeHydrate
	// modePartial validates the keys of an update payload only. auto_now
	// fields are restamped and auto_now_add fields are never written.
	modePartial
)

// schema is the ordered field list shared by models and embedded models.
type schema struct {
	name   string
	fields []fields.Field
	byName map[string]fields.Field
}

func newSchema(name string, fs []fields.Field) (*schema, error) {
	s := &schema{name: name, byName: make(map[string]fields.Field, len(fs))}
	for _, f := range fs {
		if err := s.add(f, false); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// add appends f, or replaces the field of the same name when override is set.
func (s *schema) add(f fields.Field, override bool) error {
	if f == nil {
		return ErrConfig.New("%s declares a nil field", s.name)
	}
	if err := fields.Check(f); err != nil {
		return ErrConfig.Wrap(err)
	}
	name := f.Name()
	if name == IDKey || name == TypeKey {
		return ErrConfig.New("%s: field name %q is reserved", s.name, name)
	}
	if _, exists := s.byName[name]; exists {
		if !override {
			return ErrConfig.New("%s declares field %q twice", s.name, name)
		}
		for i, existing := range s.fields {
			if existing.Name() == name {
				s.fields[i] = f
			}
		}
	} else {
		s.fields = append(s.fields, f)
	}
	s.byName[name] = f
	return nil
}

func (s *schema) field(name string) (fields.Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// unknownKeys returns the keys of values that name no field, sorted.
func (s *schema) unknownKeys(values map[string]interface{}) []string {
	var unknown []string
	for key := range values {
		if key == IDKey || key == TypeKey {
			continue
		}
		if _, ok := s.byName[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// build converts values into canonical field values.
func (s *schema) build(values map[string]interface{}, mode buildMode, now time.Time) (map[string]interface{}, error) {
	if mode != modeHydrate {
		if unknown := s.unknownKeys(values); len(unknown) > 0 {
			return nil, fields.NewUnknownFieldError(s.name, unknown[0])
		}
	}

	out := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		name := f.Name()
		raw, provided := values[name]

		if mode == modePartial {
			if autoNow(f) {
				out[name] = now.UTC()
				continue
			}
			if !provided || autoNowAdd(f) {
				continue
			}
			v, err := f.Validate(raw)
			if err != nil {
				return nil, err
			}
			if v == nil && f.Required() {
				return nil, fields.NewRequiredFieldError(name)
			}
			out[name] = v
			continue
		}

		if raw == nil {
			if def, ok := f.Default(); ok {
				raw = def
			}
		}

		var (
			v   interface{}
			err error
		)
		switch {
		case mode == modeHydrate:
			v, err = f.Validate(hydrateValue(f, raw, now))
		default:
			if a, ok := f.(fields.Assigner); ok {
				v, err = a.Assign(nil, raw, now)
			} else {
				v, err = f.Validate(raw)
			}
		}
		if err != nil {
			return nil, err
		}
		if v == nil {
			if mode == modeCreate && f.Required() {
				return nil, fields.NewRequiredFieldError(name)
			}
			continue
		}
		out[name] = v
	}
	return out, nil
}

// autoNow reports whether f is restamped on every write.
func autoNow(f fields.Field) bool {
	dt, ok := f.(*fields.DateTimeField)
	return ok && dt.AutoNow()
}

// autoNowAdd reports whether f is stamped once and then kept.
func autoNowAdd(f fields.Field) bool {
	dt, ok := f.(*fields.DateTimeField)
	return ok && dt.AutoNowAdd()
}

// hydrateValue rebuilds stored embedded documents leniently before they are
// validated, so stored data never trips create-time checks.
func hydrateValue(f fields.Field, v interface{}, now time.Time) interface{} {
	switch t := f.(type) {
	case *fields.EmbeddedDocumentField:
		em, ok := t.Schema().(*EmbeddedModel)
		if !ok {
			return v
		}
		m, ok := fields.AsMap(v)
		if !ok {
			return v
		}
		doc, err := em.hydrate(m, now)
		if err != nil {
			return v
		}
		return doc
	case *fields.ListField:
		item := t.Item()
		list, ok := v.([]interface{})
		if item == nil || !ok {
			return v
		}
		out := make([]interface{}, len(list))
		for i, elem := range list {
			out[i] = hydrateValue(item, elem, now)
		}
		return out
	}
	return v
}

// store converts canonical values to the stored form. Nil values are
// omitted unless keepNil is set.
func (s *schema) store(values map[string]interface{}, keepNil bool) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for _, f := range s.fields {
		v, ok := values[f.Name()]
		if !ok {
			continue
		}
		if v == nil {
			if keepNil {
				out[f.Name()] = nil
			}
			continue
		}
		out[f.Name()] = f.Store(v)
	}
	return out
}

// export converts canonical values to their API boundary form.
func (s *schema) export(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for _, f := range s.fields {
		v, ok := values[f.Name()]
		if !ok || v == nil {
			continue
		}
		out[f.Name()] = f.Export(v)
	}
	return out
}

// record holds the canonical field values of a document or embedded document.
type record struct {
	schema *schema
	values map[string]interface{}
}

// Get returns the read form of a field value. Unknown names return an
// UnknownFieldError.
func (r *record) Get(name string) (interface{}, error) {
	f, ok := r.schema.field(name)
	if !ok {
		return nil, fields.NewUnknownFieldError(r.schema.name, name)
	}
	v := r.values[name]
	if v == nil {
		return nil, nil
	}
	if p, ok := f.(fields.Presenter); ok {
		return p.Present(v)
	}
	return v, nil
}

// Raw returns the canonical stored value of a field.
func (r *record) Raw(name string) interface{} {
	return r.values[name]
}

// Has reports whether the field holds a value.
func (r *record) Has(name string) bool {
	return r.values[name] != nil
}

// set validates v and assigns it to the field.
func (r *record) set(name string, v interface{}, now time.Time) error {
	f, ok := r.schema.field(name)
	if !ok {
		return fields.NewUnknownFieldError(r.schema.name, name)
	}
	var (
		out interface{}
		err error
	)
	if a, ok := f.(fields.Assigner); ok {
		out, err = a.Assign(r.values[name], v, now)
	} else {
		out, err = f.Validate(v)
	}
	if err != nil {
		return err
	}
	if out == nil {
		if f.Required() {
			return fields.NewRequiredFieldError(name)
		}
		delete(r.values, name)
		return nil
	}
	r.values[name] = out
	return nil
}

func (r *record) GetString(name string) string {
	s, _ := r.values[name].(string)
	return s
}

func (r *record) GetInt(name string) int64 {
	n, _ := r.values[name].(int64)
	return n
}

func (r *record) GetFloat(name string) float64 {
	n, _ := r.values[name].(float64)
	return n
}

func (r *record) GetBool(name string) bool {
	b, _ := r.values[name].(bool)
	return b
}

func (r *record) GetTime(name string) time.Time {
	t, _ := r.values[name].(time.Time)
	return t
}

package odm

import (
	"time"

	"github.com/adfharrison1/go-odm/pkg/fields"
)

// EmbeddedModel is the schema of a value object stored inline in a document.
type EmbeddedModel struct {
	registry *Registry
	schema   *schema
}

var _ fields.EmbeddedSchema = (*EmbeddedModel)(nil)

// ModelName implements fields.EmbeddedSchema.
func (em *EmbeddedModel) ModelName() string { return em.schema.name }

// Fields returns the fields of the embedded model.
func (em *EmbeddedModel) Fields() []fields.Field {
	return append([]fields.Field(nil), em.schema.fields...)
}

// IsInstance reports whether v is an embedded document of em.
func (em *EmbeddedModel) IsInstance(v interface{}) bool {
	doc, ok := v.(*EmbeddedDocument)
	return ok && doc != nil && doc.model == em
}

// Instantiate implements fields.EmbeddedSchema. Values are validated the
// way New validates them.
func (em *EmbeddedModel) Instantiate(values map[string]interface{}) (fields.EmbeddedValue, error) {
	return em.New(values)
}

// New validates values into an embedded document: defaults are applied,
// required fields enforced and unknown keys rejected.
func (em *EmbeddedModel) New(values map[string]interface{}) (*EmbeddedDocument, error) {
	out, err := em.schema.build(values, modeCreate, em.registry.stamp())
	if err != nil {
		return nil, err
	}
	return &EmbeddedDocument{record: record{schema: em.schema, values: out}, model: em}, nil
}

func (em *EmbeddedModel) hydrate(values map[string]interface{}, now time.Time) (*EmbeddedDocument, error) {
	out, err := em.schema.build(values, modeHydrate, now)
	if err != nil {
		return nil, err
	}
	return &EmbeddedDocument{record: record{schema: em.schema, values: out}, model: em}, nil
}

// EmbeddedDocument is an instance of an embedded model. It has no identity
// and is persisted only as part of its parent.
type EmbeddedDocument struct {
	record
	model *EmbeddedModel
}

var _ fields.EmbeddedValue = (*EmbeddedDocument)(nil)

func (e *EmbeddedDocument) Model() *EmbeddedModel { return e.model }

// Set validates v and assigns it to the named field.
func (e *EmbeddedDocument) Set(name string, v interface{}) error {
	return e.record.set(name, v, e.model.registry.stamp())
}

// StoreMap implements fields.EmbeddedValue.
func (e *EmbeddedDocument) StoreMap() map[string]interface{} {
	return e.schema.store(e.values, false)
}

// ExportMap implements fields.EmbeddedValue.
func (e *EmbeddedDocument) ExportMap() map[string]interface{} {
	return e.schema.export(e.values)
}

// ToMap returns the wire form with identities as hex strings.
func (e *EmbeddedDocument) ToMap() map[string]interface{} {
	return stringIDs(e.ExportMap()).(map[string]interface{})
}

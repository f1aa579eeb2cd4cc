package odm

import (
	"sync/atomic"

	"github.com/adfharrison1/go-odm/pkg/domain"
	"github.com/adfharrison1/go-odm/pkg/fields"
	"github.com/adfharrison1/go-odm/pkg/indexing"
)

// IndexSpec declares a secondary index of a model.
type IndexSpec = indexing.Spec

// Meta holds the per-model configuration.
type Meta struct {
	// Collection overrides the collection name derived from the model name.
	Collection string
	Indexes    []IndexSpec

	CreatedAtTimestamp bool
	UpdatedAtTimestamp bool
}

// ModelDef declares a document model.
type ModelDef struct {
	Name    string
	Extends *Model
	Fields  []fields.Field
	Meta    Meta
}

// Model is a registered document type bound to a collection.
type Model struct {
	registry *Registry
	name     string
	parent   *Model
	children []*Model

	schema     *schema
	collection string
	indexes    []IndexSpec
	createdAt  bool
	updatedAt  bool

	indexed atomic.Bool
}

var _ fields.ReferenceTarget = (*Model)(nil)

// Name returns the model name, which is also its discriminator.
func (m *Model) Name() string { return m.name }

// ModelName implements fields.ReferenceTarget.
func (m *Model) ModelName() string { return m.name }

// IsInstance reports whether v is a document of m or of a descendant of m.
func (m *Model) IsInstance(v interface{}) bool {
	doc, ok := v.(*Document)
	return ok && doc != nil && doc.model.isA(m)
}

// CollectionName returns the collection documents of m are stored in.
func (m *Model) CollectionName() string { return m.collection }

// Parent returns the model m extends, or nil.
func (m *Model) Parent() *Model { return m.parent }

// Children returns the models extending m directly.
func (m *Model) Children() []*Model {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()
	return append([]*Model(nil), m.children...)
}

// Fields returns the resolved field list, base fields first.
func (m *Model) Fields() []fields.Field {
	return append([]fields.Field(nil), m.schema.fields...)
}

// Field returns the named field.
func (m *Model) Field(name string) (fields.Field, bool) {
	return m.schema.field(name)
}

// Indexes returns the declared indexes, inherited ones first.
func (m *Model) Indexes() []IndexSpec {
	return append([]IndexSpec(nil), m.indexes...)
}

// UniqueFields returns the names of the fields declared unique.
func (m *Model) UniqueFields() []string {
	var out []string
	for _, f := range m.schema.fields {
		if f.Unique() {
			out = append(out, f.Name())
		}
	}
	return out
}

// Polymorphic reports whether m has submodels.
func (m *Model) Polymorphic() bool {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()
	return len(m.children) > 0
}

func (m *Model) isA(ancestor *Model) bool {
	for cur := m; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Target is one collection an operation on a model touches.
type Target struct {
	Model      *Model
	Collection string
}

// Targets returns the collections backing m. A model without submodels has
// one target; otherwise every leaf descendant contributes its collection,
// the first model claiming a collection owning it.
func (m *Model) Targets() []Target {
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()
	if len(m.children) == 0 {
		return []Target{{Model: m, Collection: m.collection}}
	}
	var out []Target
	seen := make(map[string]bool)
	var walk func(*Model)
	walk = func(cur *Model) {
		if len(cur.children) == 0 {
			if !seen[cur.collection] {
				seen[cur.collection] = true
				out = append(out, Target{Model: cur, Collection: cur.collection})
			}
			return
		}
		for _, child := range cur.children {
			walk(child)
		}
	}
	walk(m)
	return out
}

// resolve picks the model a stored document read through m hydrates as:
// the model named by its discriminator when that is m or a descendant of m,
// else owner, the model of the collection it was read from.
func (m *Model) resolve(owner *Model, doc domain.Document) *Model {
	name, ok := doc[TypeKey].(string)
	if !ok || name == owner.name {
		return owner
	}
	if found, ok := m.registry.Lookup(name); ok && found.isA(m) {
		return found
	}
	return owner
}

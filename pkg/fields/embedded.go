package fields

// EmbeddedValue is an instance of an embedded schema.
type EmbeddedValue interface {
	StoreMap() map[string]interface{}
	ExportMap() map[string]interface{}
}

// EmbeddedSchema builds embedded values from mappings.
type EmbeddedSchema interface {
	ModelName() string
	IsInstance(v interface{}) bool
	Instantiate(values map[string]interface{}) (EmbeddedValue, error)
}

// Exporter is implemented by external schema objects that can describe
// themselves as a field mapping.
type Exporter interface {
	FieldMap() map[string]interface{}
}

// EmbeddedDocumentField holds a value object composed inline in its parent.
type EmbeddedDocumentField struct {
	base
	schema EmbeddedSchema
}

func EmbeddedDocument(name string, schema EmbeddedSchema, opts ...Option) *EmbeddedDocumentField {
	f := &EmbeddedDocumentField{base: newBase(name, KindEmbedded, opts), schema: schema}
	if schema == nil && f.err == nil {
		f.err = &ConfigurationError{Message: "embedded document declared without a schema"}
	}
	return f
}

func (f *EmbeddedDocumentField) Schema() EmbeddedSchema { return f.schema }

func (f *EmbeddedDocumentField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	if f.schema.IsInstance(v) {
		return v, nil
	}
	if m, ok := AsMap(v); ok {
		return f.schema.Instantiate(m)
	}
	if e, ok := v.(Exporter); ok {
		return f.schema.Instantiate(e.FieldMap())
	}
	return nil, &EmbeddedDocumentTypeError{fieldError{f.name}, v, f.schema.ModelName()}
}

func (f *EmbeddedDocumentField) Store(v interface{}) interface{} {
	if e, ok := v.(EmbeddedValue); ok {
		return e.StoreMap()
	}
	return v
}

func (f *EmbeddedDocumentField) Export(v interface{}) interface{} {
	if e, ok := v.(EmbeddedValue); ok {
		return e.ExportMap()
	}
	return v
}

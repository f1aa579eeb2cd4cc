package fields

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferenceTarget is the document type a reference points at.
type ReferenceTarget interface {
	ModelName() string
	IsInstance(v interface{}) bool
}

// Identifiable is a persisted record carrying an identity.
type Identifiable interface {
	ID() primitive.ObjectID
	HasID() bool
}

// ReferenceField stores the identity of a document of another type. The
// referenced document is only loaded on an explicit fetch.
type ReferenceField struct {
	base
	target ReferenceTarget
}

func Reference(name string, target ReferenceTarget, opts ...Option) *ReferenceField {
	f := &ReferenceField{base: newBase(name, KindReference, opts), target: target}
	if target == nil && f.err == nil {
		f.err = &ConfigurationError{Message: "reference declared without a target"}
	}
	return f
}

// Target returns the referenced document type.
func (f *ReferenceField) Target() ReferenceTarget { return f.target }

func (f *ReferenceField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, nil
	case string:
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, &ReferenceConversionError{fieldError{f.name}, v}
		}
		return oid, nil
	}
	if f.target != nil && f.target.IsInstance(v) {
		if doc, ok := v.(Identifiable); ok {
			if !doc.HasID() {
				return nil, &ReferenceConversionError{fieldError{f.name}, "unsaved document"}
			}
			return doc.ID(), nil
		}
	}
	name := "document"
	if f.target != nil {
		name = f.target.ModelName()
	}
	return nil, &ReferenceTypeError{fieldError{f.name}, v, name}
}

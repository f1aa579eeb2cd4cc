package odm

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-odm/pkg/domain"
	"github.com/adfharrison1/go-odm/pkg/fields"
)

// normalizeFilter prepares a caller filter for the driver. Saved documents
// become their identity; hex strings under identity keys ("_id", "x._id"
// and reference fields) become ObjectIDs; enum members become their values.
// Conversion is best effort unless strict is set, in which case a malformed
// "_id" string is an ErrInvalidID.
func (m *Model) normalizeFilter(filter map[string]interface{}, strict bool) (domain.Document, error) {
	out := make(domain.Document, len(filter))
	for key, value := range filter {
		switch key {
		case "$and", "$or", "$nor":
			list, ok := value.([]interface{})
			if !ok {
				if dl, isDocs := value.([]domain.Document); isDocs {
					for _, d := range dl {
						list = append(list, d)
					}
				} else {
					out[key] = value
					continue
				}
			}
			subs := make([]interface{}, len(list))
			for i, item := range list {
				sub, ok := fields.AsMap(item)
				if !ok {
					subs[i] = item
					continue
				}
				norm, err := m.normalizeFilter(sub, strict)
				if err != nil {
					return nil, err
				}
				subs[i] = norm
			}
			out[key] = subs
			continue
		}

		conv, err := m.filterValue(key, value, strict)
		if err != nil {
			return nil, err
		}
		out[key] = conv
	}
	return out, nil
}

func (m *Model) filterValue(key string, value interface{}, strict bool) (interface{}, error) {
	identity := key == IDKey || strings.HasSuffix(key, "."+IDKey)
	var field fields.Field
	if f, ok := m.schema.field(key); ok {
		field = f
		if f.Kind() == fields.KindReference {
			identity = true
		}
	}

	var convert func(v interface{}) (interface{}, error)
	convert = func(v interface{}) (interface{}, error) {
		switch t := v.(type) {
		case *Document:
			if t == nil || !t.HasID() {
				return nil, ErrInvalidID.New("filter on %q uses a document that has not been saved", key)
			}
			return t.ID(), nil
		case fields.Identifiable:
			if !t.HasID() {
				return nil, ErrInvalidID.New("filter on %q uses a document that has not been saved", key)
			}
			return t.ID(), nil
		case string:
			if !identity {
				return t, nil
			}
			oid, err := primitive.ObjectIDFromHex(t)
			if err != nil {
				if strict && key == IDKey {
					return nil, ErrInvalidID.New("%q is not a valid ObjectId", t)
				}
				return t, nil
			}
			return oid, nil
		case []interface{}:
			out := make([]interface{}, len(t))
			for i, item := range t {
				c, err := convert(item)
				if err != nil {
					return nil, err
				}
				out[i] = c
			}
			return out, nil
		case []string:
			out := make([]interface{}, len(t))
			for i, item := range t {
				c, err := convert(item)
				if err != nil {
					return nil, err
				}
				out[i] = c
			}
			return out, nil
		}
		if ops, ok := fields.AsMap(v); ok && isOperatorMap(ops) {
			out := make(domain.Document, len(ops))
			for op, arg := range ops {
				if op == "$regex" || op == "$options" || op == "$exists" || op == "$size" {
					out[op] = arg
					continue
				}
				c, err := convert(arg)
				if err != nil {
					return nil, err
				}
				out[op] = c
			}
			return out, nil
		}
		if field != nil && field.Kind() == fields.KindEnum {
			return field.Store(v), nil
		}
		return v, nil
	}
	return convert(value)
}

func isOperatorMap(m map[string]interface{}) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

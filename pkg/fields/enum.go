package fields

import (
	"fmt"
	"reflect"
)

// EnumField holds one member of a fixed set of values of a single Go type.
// Members are usually typed string or integer constants.
type EnumField struct {
	base
	typ     reflect.Type
	members []interface{}
}

func Enum(name string, members []interface{}, opts ...Option) *EnumField {
	f := &EnumField{base: newBase(name, KindEnum, opts), members: members}
	if len(members) == 0 {
		f.setErr("enum declared without members")
		return f
	}
	f.typ = reflect.TypeOf(members[0])
	for _, m := range members {
		if reflect.TypeOf(m) != f.typ {
			f.setErr(fmt.Sprintf("enum members mix %s and %T", f.typ, m))
			return f
		}
		if _, ok := underlying(m); !ok {
			f.setErr(fmt.Sprintf("enum member %v must have a string or integer value", m))
			return f
		}
	}
	return f
}

func (f *EnumField) setErr(msg string) {
	if f.err == nil {
		f.err = &ConfigurationError{Message: msg}
	}
}

// TypeName is the Go type name of the members.
func (f *EnumField) TypeName() string {
	if f.typ == nil {
		return "enum"
	}
	return f.typ.String()
}

// Members returns the declared members in order.
func (f *EnumField) Members() []interface{} {
	return append([]interface{}(nil), f.members...)
}

func (f *EnumField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	if reflect.TypeOf(v) == f.typ {
		for _, m := range f.members {
			if m == v {
				return m, nil
			}
		}
		return nil, &InvalidEnumValueError{fieldError{f.name}, v, f.TypeName()}
	}
	raw, ok := underlying(v)
	if !ok {
		return nil, &InvalidEnumTypeError{fieldError{f.name}, v, f.TypeName()}
	}
	for _, m := range f.members {
		if mv, _ := underlying(m); mv == raw {
			return m, nil
		}
	}
	return nil, &InvalidEnumValueError{fieldError{f.name}, v, f.TypeName()}
}

// Store writes the member's underlying value.
func (f *EnumField) Store(v interface{}) interface{} {
	if raw, ok := underlying(v); ok {
		return raw
	}
	return v
}

func (f *EnumField) Export(v interface{}) interface{} {
	return f.Store(v)
}

// underlying returns the string or int64 value behind v.
func underlying(v interface{}) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	}
	return nil, false
}

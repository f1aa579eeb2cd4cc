package fields

import (
	"encoding/json"
	"math"
	"reflect"
	"unicode/utf8"
)

// StringField holds text, optionally bounded in length and matched against a
// pattern.
type StringField struct {
	base
}

func String(name string, opts ...Option) *StringField {
	return &StringField{base: newBase(name, KindString, opts)}
}

func (f *StringField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, &StringValueError{fieldError{f.name}, v}
	}
	n := utf8.RuneCountInString(s)
	if f.opts.minLength != nil && n < *f.opts.minLength {
		return nil, &StringLengthError{fieldError{f.name}, n, *f.opts.minLength, false}
	}
	if f.opts.maxLength != nil && n > *f.opts.maxLength {
		return nil, &StringLengthError{fieldError{f.name}, n, *f.opts.maxLength, true}
	}
	if f.opts.pattern != nil && !f.opts.pattern.MatchString(s) {
		return nil, &StringPatternError{fieldError{f.name}, s, f.opts.pattern.String()}
	}
	return s, nil
}

// IntegerField holds a whole number, stored as int64.
type IntegerField struct {
	base
}

func Integer(name string, opts ...Option) *IntegerField {
	return &IntegerField{base: newBase(name, KindInteger, opts)}
}

func (f *IntegerField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	n, ok := toInt64(v)
	if !ok {
		return nil, &IntegerValueError{fieldError{f.name}, v}
	}
	if f.opts.minValue != nil && float64(n) < *f.opts.minValue {
		return nil, &IntegerRangeError{fieldError{f.name}, n, *f.opts.minValue, false}
	}
	if f.opts.maxValue != nil && float64(n) > *f.opts.maxValue {
		return nil, &IntegerRangeError{fieldError{f.name}, n, *f.opts.maxValue, true}
	}
	return n, nil
}

// FloatField holds a number, stored as float64. Integers are accepted and
// upcast.
type FloatField struct {
	base
}

func Float(name string, opts ...Option) *FloatField {
	return &FloatField{base: newBase(name, KindFloat, opts)}
}

func (f *FloatField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	x, ok := ToFloat64(v)
	if !ok || math.IsNaN(x) {
		return nil, &FloatValueError{fieldError{f.name}, v}
	}
	if f.opts.minValue != nil && x < *f.opts.minValue {
		return nil, &FloatRangeError{fieldError{f.name}, x, *f.opts.minValue, false}
	}
	if f.opts.maxValue != nil && x > *f.opts.maxValue {
		return nil, &FloatRangeError{fieldError{f.name}, x, *f.opts.maxValue, true}
	}
	return x, nil
}

// BooleanField holds a bool. Truthy values of other types are rejected.
type BooleanField struct {
	base
}

func Boolean(name string, opts ...Option) *BooleanField {
	return &BooleanField{base: newBase(name, KindBoolean, opts)}
}

func (f *BooleanField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, &BooleanFieldError{fieldError{f.name}, v}
	}
	return b, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case bool:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

// ToFloat64 converts any Go integer or float, or a json.Number, to float64.
func ToFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		x, err := n.Float64()
		return x, err == nil
	case bool:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	}
	return 0, false
}

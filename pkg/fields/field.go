package fields

import (
	"fmt"
	"reflect"
	"regexp"
	"time"
)

// Kind names the semantic type of a field.
type Kind string

const (
	KindString    Kind = "string"
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindBoolean   Kind = "boolean"
	KindDateTime  Kind = "datetime"
	KindBinary    Kind = "binary"
	KindEnum      Kind = "enum"
	KindGeoPoint  Kind = "geopoint"
	KindList      Kind = "list"
	KindReference Kind = "reference"
	KindEmbedded  Kind = "embedded"
)

// Field is a typed, validated attribute of a document schema.
//
// Validate returns the canonical stored representation of a candidate value
// or a kind-specific validation error. A nil candidate is returned as nil.
// Store converts a canonical value to the form written to the database and
// Export converts it to the form returned at the API boundary.
type Field interface {
	Name() string
	Kind() Kind
	Required() bool
	Unique() bool
	Default() (interface{}, bool)
	Validate(v interface{}) (interface{}, error)
	Store(v interface{}) interface{}
	Export(v interface{}) interface{}
}

// Presenter is implemented by fields whose read form differs from the stored
// canonical value.
type Presenter interface {
	Present(v interface{}) (interface{}, error)
}

// Assigner is implemented by fields that compute their value at assignment
// time. current is the value already held by the owning record.
type Assigner interface {
	Assign(current, v interface{}, now time.Time) (interface{}, error)
}

// Check reports the configuration error of a field, if any.
func Check(f Field) error {
	if c, ok := f.(interface{ ConfigError() error }); ok {
		return c.ConfigError()
	}
	return nil
}

// Option configures a field.
type Option func(*options)

type options struct {
	required   bool
	unique     bool
	hasDefault bool
	def        interface{}

	minLength *int
	maxLength *int
	pattern   *regexp.Regexp

	minValue *float64
	maxValue *float64

	autoNow    bool
	autoNowAdd bool
	formats    []string

	hashFunction  interface{}
	encode        func(string) []byte
	decode        func([]byte) (string, error)
	returnDecoded bool

	returnAsList bool

	items Field

	err error
}

// Required marks the field as mandatory.
func Required() Option {
	return func(o *options) { o.required = true }
}

// Unique requests a unique index on the field.
func Unique() Option {
	return func(o *options) { o.unique = true }
}

// Default sets the value used when none is provided. A func() interface{}
// is called each time a default is needed.
func Default(v interface{}) Option {
	return func(o *options) {
		o.hasDefault = true
		o.def = v
	}
}

func MinLength(n int) Option {
	return func(o *options) { o.minLength = &n }
}

func MaxLength(n int) Option {
	return func(o *options) { o.maxLength = &n }
}

// Pattern constrains string values to those matching expr.
func Pattern(expr string) Option {
	return func(o *options) {
		re, err := regexp.Compile(expr)
		if err != nil {
			o.err = &ConfigurationError{Message: fmt.Sprintf("invalid pattern %q: %v", expr, err)}
			return
		}
		o.pattern = re
	}
}

// MinValue sets an inclusive lower bound for numeric fields.
func MinValue(x float64) Option {
	return func(o *options) { o.minValue = &x }
}

// MaxValue sets an inclusive upper bound for numeric fields.
func MaxValue(x float64) Option {
	return func(o *options) { o.maxValue = &x }
}

// AutoNow replaces the value with the current UTC time on every assignment.
func AutoNow() Option {
	return func(o *options) { o.autoNow = true }
}

// AutoNowAdd sets the value to the current UTC time when the field is empty.
func AutoNowAdd() Option {
	return func(o *options) { o.autoNowAdd = true }
}

// DateTimeFormats replaces the ordered list of layouts strings are parsed with.
func DateTimeFormats(layouts ...string) Option {
	return func(o *options) { o.formats = layouts }
}

// HashFunction sets the function applied to string input of a binary field.
// Accepted signatures are func(string) []byte, func(string) ([]byte, error),
// func([]byte) []byte and func([]byte) ([]byte, error).
func HashFunction(fn interface{}) Option {
	return func(o *options) { o.hashFunction = fn }
}

// Encode sets the string to bytes conversion of a binary field.
func Encode(fn func(string) []byte) Option {
	return func(o *options) { o.encode = fn }
}

// Decode sets the bytes to string conversion of a binary field.
func Decode(fn func([]byte) (string, error)) Option {
	return func(o *options) { o.decode = fn }
}

// ReturnDecoded makes a binary field read back as a decoded string.
func ReturnDecoded() Option {
	return func(o *options) { o.returnDecoded = true }
}

// ReturnAsList makes a geo point read back as its coordinate pair.
func ReturnAsList() Option {
	return func(o *options) { o.returnAsList = true }
}

// Items sets the field each list element is validated with.
func Items(f Field) Option {
	return func(o *options) { o.items = f }
}

// base carries the metadata shared by every field kind.
type base struct {
	name string
	kind Kind
	opts options
	err  error
}

func newBase(name string, kind Kind, opts []Option) base {
	b := base{name: name, kind: kind}
	for _, opt := range opts {
		opt(&b.opts)
	}
	b.err = b.opts.err
	if name == "" {
		b.err = &ConfigurationError{Message: fmt.Sprintf("%s field declared without a name", kind)}
	}
	return b
}

func (b *base) Name() string   { return b.name }
func (b *base) Kind() Kind     { return b.kind }
func (b *base) Required() bool { return b.opts.required }
func (b *base) Unique() bool   { return b.opts.unique }

func (b *base) Default() (interface{}, bool) {
	if !b.opts.hasDefault {
		return nil, false
	}
	if fn, ok := b.opts.def.(func() interface{}); ok {
		return fn(), true
	}
	return b.opts.def, true
}

func (b *base) Store(v interface{}) interface{}  { return v }
func (b *base) Export(v interface{}) interface{} { return v }

// ConfigError reports a problem found while declaring the field.
func (b *base) ConfigError() error {
	if b.err == nil {
		return nil
	}
	if ce, ok := b.err.(*ConfigurationError); ok && ce.Field == "" {
		ce.Field = b.name
	}
	return b.err
}

// isNil reports whether v is nil or a nil pointer, map, or slice.
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// AsMap returns v as a string-keyed map when it is one, including named map
// types such as driver documents.
func AsMap(v interface{}) (map[string]interface{}, bool) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

package fields

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BinaryField holds raw bytes. String input is hashed when a hash function
// is configured, otherwise encoded.
type BinaryField struct {
	base
	hash func(string) ([]byte, error)
}

func Binary(name string, opts ...Option) *BinaryField {
	f := &BinaryField{base: newBase(name, KindBinary, opts)}
	if f.opts.encode == nil {
		f.opts.encode = func(s string) []byte { return []byte(s) }
	}
	if f.opts.decode == nil {
		f.opts.decode = decodeUTF8
	}
	if f.opts.hashFunction != nil {
		hash, err := adaptHash(f.opts.hashFunction, f.opts.encode)
		if err != nil && f.err == nil {
			err.Field = name
			f.err = err
		}
		f.hash = hash
	}
	return f
}

// Hashed reports whether string input is passed through a hash function.
func (f *BinaryField) Hashed() bool { return f.hash != nil }

func (f *BinaryField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	switch b := v.(type) {
	case []byte:
		return append([]byte(nil), b...), nil
	case primitive.Binary:
		return append([]byte(nil), b.Data...), nil
	case string:
		if f.hash == nil {
			return f.opts.encode(b), nil
		}
		out, err := f.hash(b)
		if err != nil {
			return nil, &BinaryHashError{fieldError{f.name}, err}
		}
		return out, nil
	}
	return nil, &InvalidBinaryTypeError{fieldError{f.name}, v}
}

// Present decodes the stored bytes when the field was declared with
// ReturnDecoded and no hash function.
func (f *BinaryField) Present(v interface{}) (interface{}, error) {
	b, ok := v.([]byte)
	if !ok || !f.opts.returnDecoded || f.hash != nil {
		return v, nil
	}
	s, err := f.opts.decode(b)
	if err != nil {
		return nil, &BinaryDecodingError{fieldError{f.name}, err}
	}
	return s, nil
}

func (f *BinaryField) Export(v interface{}) interface{} {
	if out, err := f.Present(v); err == nil {
		return out
	}
	return v
}

func decodeUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errors.New("invalid utf-8")
	}
	return string(b), nil
}

// adaptHash normalizes the accepted hash function signatures. The parameter
// type decides whether the raw string or its encoded bytes are passed.
func adaptHash(fn interface{}, encode func(string) []byte) (func(string) ([]byte, error), *HashFunctionTypeError) {
	switch h := fn.(type) {
	case func(string) []byte:
		return func(s string) ([]byte, error) { return h(s), nil }, nil
	case func(string) ([]byte, error):
		return h, nil
	case func([]byte) []byte:
		return func(s string) ([]byte, error) { return h(encode(s)), nil }, nil
	case func([]byte) ([]byte, error):
		return func(s string) ([]byte, error) { return h(encode(s)) }, nil
	}
	return nil, &HashFunctionTypeError{Type: fmt.Sprintf("%T", fn)}
}

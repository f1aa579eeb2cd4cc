package fields

import (
	"errors"
	"fmt"
)

// ValidationError is implemented by every error a field reports for a
// rejected value.
type ValidationError interface {
	error
	FieldName() string
}

// IsValidationError reports whether err, or an error it wraps, is a field
// validation error.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type fieldError struct {
	Field string
}

func (e fieldError) FieldName() string { return e.Field }

// RequiredFieldError represents a missing value for a required field
type RequiredFieldError struct {
	fieldError
}

func NewRequiredFieldError(field string) *RequiredFieldError {
	return &RequiredFieldError{fieldError{field}}
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("field %s is required", e.Field)
}

// UnknownFieldError represents a value for a field the schema does not declare
type UnknownFieldError struct {
	fieldError
	Schema string
}

func NewUnknownFieldError(schema, field string) *UnknownFieldError {
	return &UnknownFieldError{fieldError: fieldError{field}, Schema: schema}
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s has no field %s", e.Schema, e.Field)
}

type StringValueError struct {
	fieldError
	Value interface{}
}

func (e *StringValueError) Error() string {
	return fmt.Sprintf("field %s: expected a string, got %T", e.Field, e.Value)
}

type StringLengthError struct {
	fieldError
	Length int
	Limit  int
	Max    bool
}

func (e *StringLengthError) Error() string {
	if e.Max {
		return fmt.Sprintf("field %s: length %d exceeds the maximum of %d", e.Field, e.Length, e.Limit)
	}
	return fmt.Sprintf("field %s: length %d is below the minimum of %d", e.Field, e.Length, e.Limit)
}

type StringPatternError struct {
	fieldError
	Value   string
	Pattern string
}

func (e *StringPatternError) Error() string {
	return fmt.Sprintf("field %s: %q does not match pattern %s", e.Field, e.Value, e.Pattern)
}

type IntegerValueError struct {
	fieldError
	Value interface{}
}

func (e *IntegerValueError) Error() string {
	return fmt.Sprintf("field %s: expected an integer, got %T", e.Field, e.Value)
}

type IntegerRangeError struct {
	fieldError
	Value int64
	Limit float64
	Max   bool
}

func (e *IntegerRangeError) Error() string {
	if e.Max {
		return fmt.Sprintf("field %s: %d is greater than the maximum of %v", e.Field, e.Value, e.Limit)
	}
	return fmt.Sprintf("field %s: %d is less than the minimum of %v", e.Field, e.Value, e.Limit)
}

type FloatValueError struct {
	fieldError
	Value interface{}
}

func (e *FloatValueError) Error() string {
	return fmt.Sprintf("field %s: expected a number, got %T", e.Field, e.Value)
}

type FloatRangeError struct {
	fieldError
	Value float64
	Limit float64
	Max   bool
}

func (e *FloatRangeError) Error() string {
	if e.Max {
		return fmt.Sprintf("field %s: %v is greater than the maximum of %v", e.Field, e.Value, e.Limit)
	}
	return fmt.Sprintf("field %s: %v is less than the minimum of %v", e.Field, e.Value, e.Limit)
}

type BooleanFieldError struct {
	fieldError
	Value interface{}
}

func (e *BooleanFieldError) Error() string {
	return fmt.Sprintf("field %s: expected a boolean, got %T", e.Field, e.Value)
}

type DateTimeValueError struct {
	fieldError
	Value interface{}
}

func (e *DateTimeValueError) Error() string {
	return fmt.Sprintf("field %s: expected a time or a date string, got %T", e.Field, e.Value)
}

type DateTimeFormatError struct {
	fieldError
	Value string
}

func (e *DateTimeFormatError) Error() string {
	return fmt.Sprintf("field %s: %q matches no accepted date format", e.Field, e.Value)
}

type InvalidBinaryTypeError struct {
	fieldError
	Value interface{}
}

func (e *InvalidBinaryTypeError) Error() string {
	return fmt.Sprintf("field %s: expected a string or bytes, got %T", e.Field, e.Value)
}

// BinaryHashError wraps a failure of a binary field's hash function
type BinaryHashError struct {
	fieldError
	Err error
}

func (e *BinaryHashError) Error() string {
	return fmt.Sprintf("field %s: hash function failed: %v", e.Field, e.Err)
}

func (e *BinaryHashError) Unwrap() error { return e.Err }

type BinaryDecodingError struct {
	fieldError
	Err error
}

func (e *BinaryDecodingError) Error() string {
	return fmt.Sprintf("field %s: cannot decode binary value: %v", e.Field, e.Err)
}

func (e *BinaryDecodingError) Unwrap() error { return e.Err }

type InvalidEnumTypeError struct {
	fieldError
	Value interface{}
	Enum  string
}

func (e *InvalidEnumTypeError) Error() string {
	return fmt.Sprintf("field %s: expected a %s or its value, got %T", e.Field, e.Enum, e.Value)
}

type InvalidEnumValueError struct {
	fieldError
	Value interface{}
	Enum  string
}

func (e *InvalidEnumValueError) Error() string {
	return fmt.Sprintf("field %s: %v is not a valid %s", e.Field, e.Value, e.Enum)
}

type GeoCoordinateError struct {
	fieldError
	Message string
}

func (e *GeoCoordinateError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Message)
}

type ListValueTypeError struct {
	fieldError
	Value interface{}
}

func (e *ListValueTypeError) Error() string {
	return fmt.Sprintf("field %s: expected a list, got %T", e.Field, e.Value)
}

type ListItemTypeError struct {
	fieldError
	Index int
	Err   error
}

func (e *ListItemTypeError) Error() string {
	return fmt.Sprintf("field %s: item %d: %v", e.Field, e.Index, e.Err)
}

func (e *ListItemTypeError) Unwrap() error { return e.Err }

type ReferenceTypeError struct {
	fieldError
	Value  interface{}
	Target string
}

func (e *ReferenceTypeError) Error() string {
	return fmt.Sprintf("field %s: expected a %s, an identity or an identity string, got %T", e.Field, e.Target, e.Value)
}

type ReferenceConversionError struct {
	fieldError
	Value interface{}
}

func (e *ReferenceConversionError) Error() string {
	return fmt.Sprintf("field %s: cannot convert %v to an identity", e.Field, e.Value)
}

type EmbeddedDocumentTypeError struct {
	fieldError
	Value  interface{}
	Schema string
}

func (e *EmbeddedDocumentTypeError) Error() string {
	return fmt.Sprintf("field %s: expected a %s or a mapping, got %T", e.Field, e.Schema, e.Value)
}

// ConfigurationError represents a field declared with inconsistent options
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("field %s: %s", e.Field, e.Message)
}

// HashFunctionTypeError represents a hash function whose signature does not
// say whether it takes the raw string or its encoded bytes
type HashFunctionTypeError struct {
	Field string
	Type  string
}

func (e *HashFunctionTypeError) Error() string {
	return fmt.Sprintf("field %s: hash function %s must take a string or []byte and return []byte", e.Field, e.Type)
}

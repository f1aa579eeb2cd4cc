package fields

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultDateTimeFormats is the ordered list of layouts date strings are
// parsed with. The first layout that parses wins.
var DefaultDateTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"20060102T150405",
	"20060102",
}

// DateTimeField holds a UTC instant.
type DateTimeField struct {
	base
}

func DateTime(name string, opts ...Option) *DateTimeField {
	f := &DateTimeField{base: newBase(name, KindDateTime, opts)}
	if f.opts.autoNow && f.opts.autoNowAdd && f.err == nil {
		f.err = &ConfigurationError{Message: "auto_now and auto_now_add are mutually exclusive"}
	}
	return f
}

// AutoNow reports whether the field is refreshed on every assignment.
func (f *DateTimeField) AutoNow() bool { return f.opts.autoNow }

// AutoNowAdd reports whether the field is stamped once on creation.
func (f *DateTimeField) AutoNowAdd() bool { return f.opts.autoNowAdd }

func (f *DateTimeField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		return t.UTC(), nil
	case primitive.DateTime:
		return t.Time().UTC(), nil
	case string:
		return f.parse(t)
	}
	return nil, &DateTimeValueError{fieldError{f.name}, v}
}

func (f *DateTimeField) parse(s string) (interface{}, error) {
	layouts := f.opts.formats
	if len(layouts) == 0 {
		layouts = DefaultDateTimeFormats
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, &DateTimeFormatError{fieldError{f.name}, s}
}

// Assign applies auto_now and auto_now_add. Without either option it
// validates v.
func (f *DateTimeField) Assign(current, v interface{}, now time.Time) (interface{}, error) {
	switch {
	case f.opts.autoNow:
		return now.UTC(), nil
	case f.opts.autoNowAdd && !isNil(current):
		return current, nil
	case f.opts.autoNowAdd:
		return now.UTC(), nil
	}
	return f.Validate(v)
}

package fields

import "reflect"

// ListField holds a sequence, each element optionally validated by an item
// field.
type ListField struct {
	base
}

func List(name string, opts ...Option) *ListField {
	return &ListField{base: newBase(name, KindList, opts)}
}

// Item returns the element field, or nil for an untyped list.
func (f *ListField) Item() Field { return f.opts.items }

func (f *ListField) ConfigError() error {
	if err := f.base.ConfigError(); err != nil {
		return err
	}
	if f.opts.items != nil {
		return Check(f.opts.items)
	}
	return nil
}

func (f *ListField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if _, isBytes := v.([]byte); isBytes || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, &ListValueTypeError{fieldError{f.name}, v}
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		item := rv.Index(i).Interface()
		if f.opts.items == nil {
			out[i] = item
			continue
		}
		valid, err := f.opts.items.Validate(item)
		if err != nil {
			return nil, &ListItemTypeError{fieldError{f.name}, i, err}
		}
		out[i] = valid
	}
	return out, nil
}

func (f *ListField) Store(v interface{}) interface{} {
	return f.each(v, func(item interface{}) interface{} { return f.opts.items.Store(item) })
}

func (f *ListField) Export(v interface{}) interface{} {
	return f.each(v, func(item interface{}) interface{} { return f.opts.items.Export(item) })
}

func (f *ListField) each(v interface{}, fn func(interface{}) interface{}) interface{} {
	items, ok := v.([]interface{})
	if !ok || f.opts.items == nil {
		return v
	}
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}

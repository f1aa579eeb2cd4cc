package fields

import (
	"fmt"
	"reflect"
)

// GeoPointField holds a GeoJSON point. Input is either a [longitude,
// latitude] pair or a {"type": "Point", "coordinates": [lon, lat]} mapping.
type GeoPointField struct {
	base
}

func GeoPoint(name string, opts ...Option) *GeoPointField {
	return &GeoPointField{base: newBase(name, KindGeoPoint, opts)}
}

func (f *GeoPointField) Validate(v interface{}) (interface{}, error) {
	if isNil(v) {
		return nil, nil
	}
	coords := v
	if m, ok := AsMap(v); ok {
		if t, _ := m["type"].(string); t != "Point" {
			return nil, f.fail("GeoJSON type must be Point, got %v", m["type"])
		}
		coords = m["coordinates"]
	}
	pair, err := f.pair(coords)
	if err != nil {
		return nil, err
	}
	return Point(pair[0], pair[1]), nil
}

func (f *GeoPointField) pair(v interface{}) ([]float64, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, f.fail("expected a [longitude, latitude] pair, got %T", v)
	}
	if rv.Len() != 2 {
		return nil, f.fail("expected 2 coordinates, got %d", rv.Len())
	}
	lon, ok := ToFloat64(rv.Index(0).Interface())
	if !ok {
		return nil, f.fail("longitude must be a number, got %T", rv.Index(0).Interface())
	}
	lat, ok := ToFloat64(rv.Index(1).Interface())
	if !ok {
		return nil, f.fail("latitude must be a number, got %T", rv.Index(1).Interface())
	}
	if lon < -180 || lon > 180 {
		return nil, f.fail("longitude %v out of range [-180, 180]", lon)
	}
	if lat < -90 || lat > 90 {
		return nil, f.fail("latitude %v out of range [-90, 90]", lat)
	}
	return []float64{lon, lat}, nil
}

func (f *GeoPointField) fail(format string, args ...interface{}) error {
	return &GeoCoordinateError{fieldError{f.name}, fmt.Sprintf(format, args...)}
}

// Present returns the coordinate pair when the field was declared with
// ReturnAsList, otherwise the mapping.
func (f *GeoPointField) Present(v interface{}) (interface{}, error) {
	if !f.opts.returnAsList {
		return v, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return v, nil
	}
	coords, ok := m["coordinates"].([]float64)
	if !ok {
		return v, nil
	}
	return append([]float64(nil), coords...), nil
}

func (f *GeoPointField) Export(v interface{}) interface{} {
	out, _ := f.Present(v)
	return out
}

// Point builds the canonical GeoJSON mapping.
func Point(lon, lat float64) map[string]interface{} {
	return map[string]interface{}{
		"type":        "Point",
		"coordinates": []float64{lon, lat},
	}
}

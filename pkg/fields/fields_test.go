package fields

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStringField(t *testing.T) {
	f := String("username", MinLength(3), MaxLength(5), Pattern(`^[a-z]+$`))
	require.NoError(t, Check(f))

	tests := []struct {
		name    string
		value   interface{}
		want    interface{}
		wantErr interface{}
	}{
		{name: "valid", value: "alice", want: "alice"},
		{name: "nil is unset", value: nil, want: nil},
		{name: "wrong type", value: 12, wantErr: &StringValueError{}},
		{name: "too short", value: "al", wantErr: &StringLengthError{}},
		{name: "too long", value: "alicia", wantErr: &StringLengthError{}},
		{name: "pattern mismatch", value: "Alice", wantErr: &StringPatternError{}},
		{name: "length counts runes", value: "ééé", wantErr: &StringPatternError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Validate(tt.value)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.IsType(t, tt.wantErr, err)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringField_LengthErrorBounds(t *testing.T) {
	_, err := String("s", MaxLength(2)).Validate("abc")
	var lengthErr *StringLengthError
	require.True(t, errors.As(err, &lengthErr))
	assert.True(t, lengthErr.Max)
	assert.Equal(t, 3, lengthErr.Length)
	assert.Equal(t, 2, lengthErr.Limit)
	assert.Equal(t, "s", lengthErr.FieldName())
}

func TestPattern_InvalidExpressionIsConfigurationError(t *testing.T) {
	f := String("email", Pattern(`(`))
	err := Check(f)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "email", cfgErr.Field)
}

func TestIntegerField_InclusiveBounds(t *testing.T) {
	f := Integer("age", MinValue(5), MaxValue(100))

	for _, ok := range []interface{}{5, 100, int32(50), uint8(7), json.Number("69")} {
		got, err := f.Validate(ok)
		require.NoError(t, err, "value %v", ok)
		assert.IsType(t, int64(0), got)
	}

	for _, bad := range []interface{}{4, 101} {
		_, err := f.Validate(bad)
		assert.IsType(t, &IntegerRangeError{}, err, "value %v", bad)
	}

	for _, bad := range []interface{}{5.5, "10", true, json.Number("6.5")} {
		_, err := f.Validate(bad)
		assert.IsType(t, &IntegerValueError{}, err, "value %v", bad)
	}
}

func TestFloatField(t *testing.T) {
	f := Float("net_worth", MinValue(5), MaxValue(10))

	got, err := f.Validate(7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)

	got, err = f.Validate(json.Number("9.5"))
	require.NoError(t, err)
	assert.Equal(t, 9.5, got)

	_, err = f.Validate(10.01)
	assert.IsType(t, &FloatRangeError{}, err)

	_, err = f.Validate(4.99)
	assert.IsType(t, &FloatRangeError{}, err)

	_, err = f.Validate("7")
	assert.IsType(t, &FloatValueError{}, err)
}

func TestBooleanField_NoTruthyCoercion(t *testing.T) {
	f := Boolean("alive", Default(true))

	got, err := f.Validate(false)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	for _, bad := range []interface{}{1, "true", 0} {
		_, err := f.Validate(bad)
		assert.IsType(t, &BooleanFieldError{}, err)
	}

	def, ok := f.Default()
	assert.True(t, ok)
	assert.Equal(t, true, def)
}

func TestDefaultProducerIsCalledEachTime(t *testing.T) {
	calls := 0
	f := String("token", Default(func() interface{} {
		calls++
		return "t"
	}))
	_, _ = f.Default()
	_, _ = f.Default()
	assert.Equal(t, 2, calls)
}

func TestDateTimeField(t *testing.T) {
	f := DateTime("dob")
	want := time.Date(1990, time.March, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		want  time.Time
	}{
		{"iso date", "1990-03-04", want},
		{"iso datetime", "1990-03-04T10:30:00", want.Add(10*time.Hour + 30*time.Minute)},
		{"rfc3339 with offset", "1990-03-04T01:00:00+01:00", want},
		{"day first", "04/03/1990", want},
		{"month name", "March 4, 1990", want},
		{"compact", "19900304", want},
		{"time value", want.In(time.FixedZone("X", 3600)), want},
		{"driver datetime", primitive.NewDateTimeFromTime(want), want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Validate(tt.value)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.(time.Time)), "got %v", got)
			assert.Equal(t, time.UTC, got.(time.Time).Location())
		})
	}

	_, err := f.Validate("not a date")
	assert.IsType(t, &DateTimeFormatError{}, err)

	_, err = f.Validate(42)
	assert.IsType(t, &DateTimeValueError{}, err)
}

func TestDateTimeField_CustomFormats(t *testing.T) {
	f := DateTime("at", DateTimeFormats("2006/01/02"))
	_, err := f.Validate("1990-03-04")
	assert.IsType(t, &DateTimeFormatError{}, err)

	got, err := f.Validate("1990/03/04")
	require.NoError(t, err)
	assert.Equal(t, 1990, got.(time.Time).Year())
}

func TestDateTimeField_Assign(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	got, err := DateTime("last_login", AutoNow()).Assign(earlier, earlier, now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	addOnce := DateTime("joined", AutoNowAdd())
	got, err = addOnce.Assign(nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = addOnce.Assign(earlier, now.Add(time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, earlier, got)

	assert.Error(t, Check(DateTime("x", AutoNow(), AutoNowAdd())))
}

func TestBinaryField_EncodeAndDecode(t *testing.T) {
	f := Binary("secret", ReturnDecoded())
	stored, err := f.Validate("hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), stored)

	shown, err := f.Present(stored)
	require.NoError(t, err)
	assert.Equal(t, "hello", shown)

	_, err = f.Present([]byte{0xff, 0xfe})
	assert.IsType(t, &BinaryDecodingError{}, err)

	got, err := f.Validate(primitive.Binary{Data: []byte("raw")})
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), got)

	_, err = f.Validate(3.14)
	assert.IsType(t, &InvalidBinaryTypeError{}, err)
}

func TestBinaryField_CustomCodec(t *testing.T) {
	reverse := func(s string) string {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r)
	}
	f := Binary("data",
		Encode(func(s string) []byte { return []byte(reverse(s)) }),
		Decode(func(b []byte) (string, error) { return reverse(string(b)), nil }),
		ReturnDecoded(),
	)

	stored, err := f.Validate("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("cba"), stored)

	shown, err := f.Present(stored)
	require.NoError(t, err)
	assert.Equal(t, "abc", shown)
}

func TestBinaryField_HashFunctionSignatures(t *testing.T) {
	var seen interface{}
	tests := []struct {
		name string
		fn   interface{}
		want interface{}
	}{
		{"string input", func(s string) []byte { seen = s; return []byte("h") }, "pw"},
		{"string input with error", func(s string) ([]byte, error) { seen = s; return []byte("h"), nil }, "pw"},
		{"bytes input", func(b []byte) []byte { seen = b; return []byte("h") }, []byte("pw")},
		{"bytes input with error", func(b []byte) ([]byte, error) { seen = b; return []byte("h"), nil }, []byte("pw")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Binary("password", HashFunction(tt.fn), ReturnDecoded())
			require.NoError(t, Check(f))
			got, err := f.Validate("pw")
			require.NoError(t, err)
			assert.Equal(t, []byte("h"), got)
			assert.Equal(t, tt.want, seen)

			shown, err := f.Present(got)
			require.NoError(t, err)
			assert.Equal(t, []byte("h"), shown, "hashed values are never decoded")
		})
	}
}

func TestBinaryField_HashFunctionErrors(t *testing.T) {
	f := Binary("password", HashFunction(func(s string) int { return len(s) }))
	var typeErr *HashFunctionTypeError
	require.True(t, errors.As(Check(f), &typeErr))
	assert.Equal(t, "password", typeErr.Field)

	failing := Binary("password", HashFunction(func(string) ([]byte, error) { return nil, errors.New("boom") }))
	_, err := failing.Validate("pw")
	assert.IsType(t, &BinaryHashError{}, err)
}

type color string

const (
	red  color = "red"
	blue color = "blue"
)

type level int

func TestEnumField(t *testing.T) {
	f := Enum("color", []interface{}{red, blue})
	require.NoError(t, Check(f))

	got, err := f.Validate(blue)
	require.NoError(t, err)
	assert.Equal(t, blue, got)

	got, err = f.Validate("red")
	require.NoError(t, err)
	assert.Equal(t, red, got)
	assert.Equal(t, "red", f.Store(got))

	_, err = f.Validate("green")
	assert.IsType(t, &InvalidEnumValueError{}, err)

	_, err = f.Validate(color("green"))
	assert.IsType(t, &InvalidEnumValueError{}, err)

	_, err = f.Validate(1.5)
	assert.IsType(t, &InvalidEnumTypeError{}, err)
}

func TestEnumField_IntegerMembers(t *testing.T) {
	f := Enum("level", []interface{}{level(1), level(2)})
	got, err := f.Validate(int32(2))
	require.NoError(t, err)
	assert.Equal(t, level(2), got)
	assert.Equal(t, int64(2), f.Store(got))
}

func TestEnumField_Configuration(t *testing.T) {
	assert.Error(t, Check(Enum("e", nil)))
	assert.Error(t, Check(Enum("e", []interface{}{red, level(1)})))
	assert.Error(t, Check(Enum("e", []interface{}{1.5})))
}

func TestGeoPointField(t *testing.T) {
	f := GeoPoint("location", ReturnAsList())

	_, err := f.Validate([]float64{200, 10})
	assert.IsType(t, &GeoCoordinateError{}, err)

	_, err = f.Validate([]interface{}{10.0, -91})
	assert.IsType(t, &GeoCoordinateError{}, err)

	stored, err := f.Validate([]float64{40.73, -73.93})
	require.NoError(t, err)
	assert.Equal(t, Point(40.73, -73.93), stored)

	shown, err := f.Present(stored)
	require.NoError(t, err)
	assert.Equal(t, []float64{40.73, -73.93}, shown)

	fromMap, err := f.Validate(map[string]interface{}{"type": "Point", "coordinates": []interface{}{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, Point(1, 2), fromMap)

	_, err = f.Validate(map[string]interface{}{"type": "LineString", "coordinates": []float64{1, 2}})
	assert.IsType(t, &GeoCoordinateError{}, err)

	_, err = f.Validate([]float64{1, 2, 3})
	assert.IsType(t, &GeoCoordinateError{}, err)

	_, err = f.Validate("1,2")
	assert.IsType(t, &GeoCoordinateError{}, err)
}

func TestGeoPointField_MappingForm(t *testing.T) {
	f := GeoPoint("location")
	stored, err := f.Validate([2]float64{1, 2})
	require.NoError(t, err)
	shown, err := f.Present(stored)
	require.NoError(t, err)
	assert.Equal(t, Point(1, 2), shown)
}

func TestListField(t *testing.T) {
	f := List("favorite_colors", Items(String("color", MaxLength(5))))

	got, err := f.Validate([]string{"red", "blue"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"red", "blue"}, got)

	_, err = f.Validate("red")
	assert.IsType(t, &ListValueTypeError{}, err)

	_, err = f.Validate([]byte("red"))
	assert.IsType(t, &ListValueTypeError{}, err)

	_, err = f.Validate([]interface{}{"red", 5})
	var itemErr *ListItemTypeError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	var inner *StringValueError
	assert.True(t, errors.As(err, &inner))

	untyped, err := List("anything").Validate([]interface{}{1, "a"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, "a"}, untyped)
}

func TestListField_StoresEnumValues(t *testing.T) {
	f := List("colors", Items(Enum("color", []interface{}{red, blue})))
	got, err := f.Validate([]interface{}{"red", blue})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{red, blue}, got)
	assert.Equal(t, []interface{}{"red", "blue"}, f.Store(got))
	assert.Equal(t, []interface{}{"red", "blue"}, f.Export(got))
}

type fakeTarget struct{}

func (fakeTarget) ModelName() string { return "User" }
func (fakeTarget) IsInstance(v interface{}) bool {
	_, ok := v.(*fakeDoc)
	return ok
}

type fakeDoc struct{ id primitive.ObjectID }

func (d *fakeDoc) ID() primitive.ObjectID { return d.id }
func (d *fakeDoc) HasID() bool            { return !d.id.IsZero() }

func TestReferenceField(t *testing.T) {
	f := Reference("user", fakeTarget{})
	id := primitive.NewObjectID()

	got, err := f.Validate(id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = f.Validate(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = f.Validate(&fakeDoc{id: id})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = f.Validate("not-an-id")
	assert.IsType(t, &ReferenceConversionError{}, err)

	_, err = f.Validate(&fakeDoc{})
	assert.IsType(t, &ReferenceConversionError{}, err)

	_, err = f.Validate(42)
	assert.IsType(t, &ReferenceTypeError{}, err)

	assert.Error(t, Check(Reference("user", nil)))
}

type fakeEmbedded struct{ values map[string]interface{} }

func (e *fakeEmbedded) StoreMap() map[string]interface{}  { return e.values }
func (e *fakeEmbedded) ExportMap() map[string]interface{} { return e.values }

type fakeSchema struct{}

func (fakeSchema) ModelName() string { return "Profile" }
func (fakeSchema) IsInstance(v interface{}) bool {
	_, ok := v.(*fakeEmbedded)
	return ok
}
func (fakeSchema) Instantiate(values map[string]interface{}) (EmbeddedValue, error) {
	return &fakeEmbedded{values: values}, nil
}

type externalProfile struct{ Bio string }

func (p externalProfile) FieldMap() map[string]interface{} {
	return map[string]interface{}{"bio": p.Bio}
}

type namedMap map[string]interface{}

func TestEmbeddedDocumentField(t *testing.T) {
	f := EmbeddedDocument("profile", fakeSchema{})

	instance := &fakeEmbedded{values: map[string]interface{}{"bio": "a"}}
	got, err := f.Validate(instance)
	require.NoError(t, err)
	assert.Same(t, instance, got)

	got, err = f.Validate(map[string]interface{}{"bio": "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"bio": "b"}, f.Store(got))

	got, err = f.Validate(namedMap{"bio": "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"bio": "c"}, f.Export(got))

	got, err = f.Validate(externalProfile{Bio: "d"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"bio": "d"}, f.Store(got))

	_, err = f.Validate("bio")
	assert.IsType(t, &EmbeddedDocumentTypeError{}, err)
}

func TestNameIsRequired(t *testing.T) {
	assert.Error(t, Check(String("")))
}

package odm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-odm/pkg/domain"
	"github.com/adfharrison1/go-odm/pkg/fields"
	"github.com/adfharrison1/go-odm/pkg/storage"
)

func TestModel_BasicCRUD(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	// Insert test data
	user, err := tm.User.InsertOne(ctx, map[string]interface{}{
		"username": "johndoe",
		"email":    "johndoe@hotmail.com",
		"age":      30,
	})
	require.NoError(t, err)
	require.True(t, user.HasID())
	assert.Equal(t, "johndoe", user.GetString("username"))
	assert.Equal(t, int64(30), user.GetInt("age"))
	assert.Equal(t, false, user.Raw("is_admin"), "default applied")
	assert.Equal(t, statusActive, user.Raw("status"))
	assert.False(t, user.GetTime(CreatedAtKey).IsZero())
	assert.Equal(t, user.GetTime(CreatedAtKey), user.GetTime(UpdatedAtKey))

	// Find
	found, err := tm.User.FindOne(ctx, map[string]interface{}{"username": "johndoe"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID(), found.ID())
	assert.Equal(t, "johndoe@hotmail.com", found.GetString("email"))

	byHex, err := tm.User.FindOne(ctx, map[string]interface{}{"_id": user.ID().Hex()})
	require.NoError(t, err)
	require.NotNil(t, byHex)
	assert.Equal(t, user.ID(), byHex.ID())

	// Update
	updated, err := tm.User.UpdateOne(ctx,
		map[string]interface{}{"_id": user.ID()},
		map[string]interface{}{"age": 31})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, int64(31), updated.GetInt("age"))
	assert.True(t, updated.GetTime(UpdatedAtKey).After(user.GetTime(UpdatedAtKey)))
	assert.Equal(t, user.GetTime(CreatedAtKey), updated.GetTime(CreatedAtKey))

	// Delete
	deleted, err := tm.User.DeleteOne(ctx, map[string]interface{}{"username": "johndoe"})
	require.NoError(t, err)
	assert.True(t, deleted)

	gone, err := tm.User.FindOne(ctx, map[string]interface{}{"username": "johndoe"})
	require.NoError(t, err)
	assert.Nil(t, gone)

	deleted, err = tm.User.DeleteOne(ctx, map[string]interface{}{"username": "johndoe"})
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestModel_InsertValidation(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	tests := []struct {
		name   string
		values map[string]interface{}
		check  func(t *testing.T, err error)
	}{
		{
			name:   "missing required field",
			values: map[string]interface{}{"email": "a@b.c"},
			check: func(t *testing.T, err error) {
				var target *fields.RequiredFieldError
				require.True(t, errors.As(err, &target))
				assert.Equal(t, "username", target.FieldName())
			},
		},
		{
			name:   "unknown field",
			values: map[string]interface{}{"username": "alice", "nickname": "al"},
			check: func(t *testing.T, err error) {
				var target *fields.UnknownFieldError
				require.True(t, errors.As(err, &target))
				assert.Equal(t, "nickname", target.FieldName())
			},
		},
		{
			name:   "integer below range",
			values: map[string]interface{}{"username": "alice", "age": 4},
			check: func(t *testing.T, err error) {
				var target *fields.IntegerRangeError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name:   "integer above range",
			values: map[string]interface{}{"username": "alice", "age": 101},
			check: func(t *testing.T, err error) {
				var target *fields.IntegerRangeError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name:   "string too short",
			values: map[string]interface{}{"username": "al"},
			check: func(t *testing.T, err error) {
				var target *fields.StringLengthError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name:   "enum value outside members",
			values: map[string]interface{}{"username": "alice", "status": "banned"},
			check: func(t *testing.T, err error) {
				var target *fields.InvalidEnumValueError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name: "embedded document without required field",
			values: map[string]interface{}{
				"username": "alice",
				"address":  map[string]interface{}{"street": "1 Main St"},
			},
			check: func(t *testing.T, err error) {
				var target *fields.RequiredFieldError
				require.True(t, errors.As(err, &target))
				assert.Equal(t, "city", target.FieldName())
			},
		},
		{
			name: "invalid geo point",
			values: map[string]interface{}{
				"username": "alice",
				"address": map[string]interface{}{
					"city":     "Dublin",
					"location": []interface{}{-200.0, 53.3},
				},
			},
			check: func(t *testing.T, err error) {
				var target *fields.GeoCoordinateError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name:   "malformed identity",
			values: map[string]interface{}{"_id": "not-an-id", "username": "alice"},
			check: func(t *testing.T, err error) {
				assert.True(t, ErrInvalidID.Has(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := tm.User.InsertOne(ctx, tt.values)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.False(t, ErrInsert.Has(err), "validation errors are returned unwrapped")
			tt.check(t, err)
		})
	}

	count, err := tm.User.DeleteMany(ctx, map[string]interface{}{})
	require.NoError(t, err)
	assert.Zero(t, count, "nothing was written")
}

func TestModel_IntegerRangeBoundsAreInclusive(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	for i, age := range []int{5, 100} {
		_, err := tm.User.InsertOne(ctx, map[string]interface{}{
			"username": []string{"lowest", "highest"}[i],
			"age":      age,
		})
		assert.NoError(t, err, "age %d", age)
	}
}

func TestModel_DuplicateUniqueField(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	_, err := tm.User.InsertOne(ctx, map[string]interface{}{"username": "johndoe"})
	require.NoError(t, err)

	_, err = tm.User.InsertOne(ctx, map[string]interface{}{"username": "johndoe"})
	require.Error(t, err)
	assert.True(t, ErrInsert.Has(err))
	assert.Contains(t, err.Error(), "username_unique")
}

func TestModel_InsertMany(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	docs, ids, err := tm.User.InsertMany(ctx, []map[string]interface{}{
		{"username": "alice", "age": 30},
		{"username": "bob", "age": 40},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], docs[0].ID())
	assert.Equal(t, ids[1], docs[1].ID())

	// One invalid document rejects the batch
	_, _, err = tm.User.InsertMany(ctx, []map[string]interface{}{
		{"username": "carol"},
		{"username": "dave", "age": "old"},
	})
	var target *fields.IntegerValueError
	require.True(t, errors.As(err, &target))

	all, err := tm.User.FindMany(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestModel_FindMany(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	// Insert test data
	for i, name := range []string{"alice", "bob", "carol", "dave"} {
		_, err := tm.User.InsertOne(ctx, map[string]interface{}{"username": name, "age": 20 + i*10})
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		filter   map[string]interface{}
		opts     []FindOption
		expected []string
	}{
		{
			name:     "all",
			expected: []string{"alice", "bob", "carol", "dave"},
		},
		{
			name:     "range",
			filter:   map[string]interface{}{"age": map[string]interface{}{"$gte": 30, "$lt": 50}},
			expected: []string{"bob", "carol"},
		},
		{
			name:     "limit",
			opts:     []FindOption{WithLimit(2)},
			expected: []string{"alice", "bob"},
		},
		{
			name:     "sort and skip",
			opts:     []FindOption{WithSort(domain.D{{Key: "age", Value: -1}}), WithSkip(1)},
			expected: []string{"carol", "bob", "alice"},
		},
		{
			name:     "enum member in filter",
			filter:   map[string]interface{}{"status": statusActive},
			expected: []string{"alice", "bob", "carol", "dave"},
		},
		{
			name:   "no match",
			filter: map[string]interface{}{"username": "zed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := tm.User.FindMany(ctx, tt.filter, tt.opts...)
			require.NoError(t, err)
			var names []string
			for _, doc := range docs {
				names = append(names, doc.GetString("username"))
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestModel_FindCursors(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	_, _, err := tm.User.InsertMany(ctx, []map[string]interface{}{
		{"username": "alice"},
		{"username": "bob"},
	})
	require.NoError(t, err)

	cursors, err := tm.User.FindCursors(ctx, nil)
	require.NoError(t, err)
	require.Len(t, cursors, 1)

	cur := cursors[0]
	defer cur.Close(ctx)
	var names []string
	for cur.Next(ctx) {
		doc, err := cur.Document()
		require.NoError(t, err)
		names = append(names, doc.GetString("username"))
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestModel_UpdateOneKeepsQueryKeys(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	_, err := tm.User.InsertOne(ctx, map[string]interface{}{"username": "alice", "age": 20})
	require.NoError(t, err)

	updated, err := tm.User.UpdateOne(ctx,
		map[string]interface{}{"username": "alice"},
		map[string]interface{}{"username": "mallory", "age": 21, "_id": primitive.NewObjectID()})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "alice", updated.GetString("username"))
	assert.Equal(t, int64(21), updated.GetInt("age"))

	// No match
	missing, err := tm.User.UpdateOne(ctx,
		map[string]interface{}{"username": "nobody"},
		map[string]interface{}{"age": 22})
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Invalid payload
	_, err = tm.User.UpdateOne(ctx,
		map[string]interface{}{"username": "alice"},
		map[string]interface{}{"age": 1000})
	var target *fields.IntegerRangeError
	assert.True(t, errors.As(err, &target))

	// Required fields cannot be cleared
	_, err = tm.User.UpdateOne(ctx,
		map[string]interface{}{"_id": updated.ID()},
		map[string]interface{}{"username": nil})
	var required *fields.RequiredFieldError
	assert.True(t, errors.As(err, &required))
}

func TestModel_UpdateMany(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	_, _, err := tm.User.InsertMany(ctx, []map[string]interface{}{
		{"username": "alice", "age": 20},
		{"username": "bob", "age": 20},
		{"username": "carol", "age": 50},
	})
	require.NoError(t, err)

	docs, modified, err := tm.User.UpdateMany(ctx,
		map[string]interface{}{"age": 20},
		map[string]interface{}{"email": "team@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), modified)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Equal(t, "team@example.com", doc.GetString("email"))
	}

	_, modified, err = tm.User.UpdateMany(ctx,
		map[string]interface{}{"age": 99},
		map[string]interface{}{"email": "x@example.com"})
	require.NoError(t, err)
	assert.Zero(t, modified)
}

func TestModel_InvalidIdentityInWrites(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	bad := map[string]interface{}{"_id": "not-an-id"}

	_, err := tm.User.DeleteOne(ctx, bad)
	assert.True(t, ErrInvalidID.Has(err))
	_, err = tm.User.DeleteMany(ctx, bad)
	assert.True(t, ErrInvalidID.Has(err))
	_, err = tm.User.UpdateOne(ctx, bad, map[string]interface{}{"age": 30})
	assert.True(t, ErrInvalidID.Has(err))
	_, err = tm.User.FindOneAndDelete(ctx, bad)
	assert.True(t, ErrInvalidID.Has(err))
	_, err = tm.User.FindOneAndReplace(ctx, bad, map[string]interface{}{"username": "alice"})
	assert.True(t, ErrInvalidID.Has(err))

	// Reads are best effort
	doc, err := tm.User.FindOne(ctx, bad)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestModel_FindOneOrCreate(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	doc, created, err := tm.User.FindOneOrCreate(ctx,
		map[string]interface{}{"username": "alice"},
		map[string]interface{}{"age": 25})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", doc.GetString("username"))
	assert.Equal(t, int64(25), doc.GetInt("age"))

	again, created, err := tm.User.FindOneOrCreate(ctx,
		map[string]interface{}{"username": "alice"},
		map[string]interface{}{"age": 99})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, doc.ID(), again.ID())
	assert.Equal(t, int64(25), again.GetInt("age"))
}

func TestModel_FindOneAndReplace(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	original, err := tm.User.InsertOne(ctx, map[string]interface{}{"username": "alice", "age": 20, "email": "a@example.com"})
	require.NoError(t, err)

	replaced, err := tm.User.FindOneAndReplace(ctx,
		map[string]interface{}{"_id": original.ID().Hex()},
		map[string]interface{}{"username": "alice2", "age": 21})
	require.NoError(t, err)
	assert.Equal(t, original.ID(), replaced.ID())
	assert.Equal(t, "alice2", replaced.GetString("username"))
	assert.False(t, replaced.Has("email"), "replacement drops fields it does not set")
	assert.Equal(t, original.GetTime(CreatedAtKey), replaced.GetTime(CreatedAtKey))
	assert.True(t, replaced.GetTime(UpdatedAtKey).After(original.GetTime(UpdatedAtKey)))

	_, err = tm.User.FindOneAndReplace(ctx,
		map[string]interface{}{"username": "nobody"},
		map[string]interface{}{"username": "bob"})
	assert.True(t, ErrNotFound.Has(err))

	// The replacement is validated like an insert
	_, err = tm.User.FindOneAndReplace(ctx,
		map[string]interface{}{"_id": original.ID()},
		map[string]interface{}{"age": 30})
	var required *fields.RequiredFieldError
	assert.True(t, errors.As(err, &required))
}

func TestModel_FindOneAndUpdateEmptyFields(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	_, err := tm.User.InsertOne(ctx, map[string]interface{}{"username": "johndoe", "email": ""})
	require.NoError(t, err)

	doc, modified, err := tm.User.FindOneAndUpdateEmptyFields(ctx,
		map[string]interface{}{"username": "johndoe"},
		map[string]interface{}{"username": "other", "email": "john@example.com", "age": 40, "is_admin": true})
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Equal(t, "johndoe", doc.GetString("username"))
	assert.Equal(t, "john@example.com", doc.GetString("email"))
	assert.Equal(t, int64(40), doc.GetInt("age"))
	assert.True(t, doc.GetBool("is_admin"), "false counts as empty")

	// Populated fields are kept
	doc, modified, err = tm.User.FindOneAndUpdateEmptyFields(ctx,
		map[string]interface{}{"username": "johndoe"},
		map[string]interface{}{"email": "other@example.com", "age": 41})
	require.NoError(t, err)
	assert.False(t, modified)
	assert.Equal(t, "john@example.com", doc.GetString("email"))
	assert.Equal(t, int64(40), doc.GetInt("age"))

	_, _, err = tm.User.FindOneAndUpdateEmptyFields(ctx,
		map[string]interface{}{"username": "nobody"},
		map[string]interface{}{"age": 41})
	assert.True(t, ErrNotFound.Has(err))
}

func TestModel_FindOneAndDelete(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	doc, err := tm.User.InsertOne(ctx, map[string]interface{}{"username": "alice"})
	require.NoError(t, err)

	removed, err := tm.User.FindOneAndDelete(ctx, map[string]interface{}{"_id": doc.ID()})
	require.NoError(t, err)
	assert.Equal(t, doc.ID(), removed.ID())
	assert.True(t, removed.IsDeleted())

	_, err = tm.User.FindOneAndDelete(ctx, map[string]interface{}{"_id": doc.ID()})
	assert.True(t, ErrNotFound.Has(err))
}

func TestModel_Aggregate(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	_, _, err := tm.User.InsertMany(ctx, []map[string]interface{}{
		{"username": "alice", "age": 20},
		{"username": "bob", "age": 40},
		{"username": "carol", "age": 60},
	})
	require.NoError(t, err)

	docs, err := tm.User.Aggregate(ctx, domain.Pipeline{
		{"$match": domain.Document{"age": domain.Document{"$gte": 40}}},
		{"$sort": domain.Document{"age": -1}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "carol", docs[0].GetString("username"))
	assert.Equal(t, "bob", docs[1].GetString("username"))

	cursors, err := tm.User.AggregateCursors(ctx, domain.Pipeline{{"$limit": 1}})
	require.NoError(t, err)
	require.Len(t, cursors, 1)
	all, err := cursors[0].All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestModel_References(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	user, err := tm.User.InsertOne(ctx, map[string]interface{}{"username": "alice"})
	require.NoError(t, err)

	profile, err := tm.Profile.InsertOne(ctx, map[string]interface{}{"user": user, "bio": "hello"})
	require.NoError(t, err)
	ref, ok := profile.Ref("user")
	require.True(t, ok)
	assert.Equal(t, user.ID(), ref)

	// Filters accept documents and hex strings for reference fields
	for _, value := range []interface{}{user, user.ID().Hex(), user.ID()} {
		found, err := tm.Profile.FindOne(ctx, map[string]interface{}{"user": value})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, profile.ID(), found.ID())
	}

	fetched, err := profile.Fetch(ctx, "user")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, tm.User, fetched.Model())
	assert.Equal(t, "alice", fetched.GetString("username"))

	_, err = profile.Fetch(ctx, "bio")
	assert.Error(t, err)

	// Unsaved documents cannot be referenced
	unsaved, err := tm.User.New(map[string]interface{}{"username": "bob"})
	require.NoError(t, err)
	_, err = tm.Profile.InsertOne(ctx, map[string]interface{}{"user": unsaved})
	var conv *fields.ReferenceConversionError
	assert.True(t, errors.As(err, &conv))
}

func TestModel_EmbeddedDocuments(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	user, err := tm.User.InsertOne(ctx, map[string]interface{}{
		"username": "alice",
		"address": map[string]interface{}{
			"street":   "1 Main St",
			"city":     "Dublin",
			"location": []interface{}{-6.26, 53.35},
		},
	})
	require.NoError(t, err)

	v, err := user.Get("address")
	require.NoError(t, err)
	address, ok := v.(*EmbeddedDocument)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, tm.Address, address.Model())
	assert.Equal(t, "Dublin", address.GetString("city"))

	// Stored as a plain mapping
	raw, err := tm.engine.Collection("user").FindOne(ctx, domain.Document{"_id": user.ID()})
	require.NoError(t, err)
	stored, ok := raw["address"].(map[string]interface{})
	require.True(t, ok, "got %T", raw["address"])
	assert.Equal(t, "Dublin", stored["city"])
	assert.Equal(t, fields.Point(-6.26, 53.35), stored["location"])

	// Dotted filters reach into embedded documents
	found, err := tm.User.FindOne(ctx, map[string]interface{}{"address.city": "Dublin"})
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, map[string]interface{}{
		"street":   "1 Main St",
		"city":     "Dublin",
		"location": fields.Point(-6.26, 53.35),
	}, found.ToMap()["address"])
}

func TestModel_PolymorphicQueries(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	// Insert test data
	book, err := tm.Book.InsertOne(ctx, map[string]interface{}{"name": "The Go Programming Language", "price": 35, "author": "Donovan"})
	require.NoError(t, err)
	tv, err := tm.Electronics.InsertOne(ctx, map[string]interface{}{"name": "Television", "price": 499.99, "warranty_months": 24})
	require.NoError(t, err)

	assert.Equal(t, "book", tm.Book.CollectionName())
	assert.Equal(t, "electronics", tm.Electronics.CollectionName())

	items, err := tm.Item.FindMany(ctx, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, tm.Book, items[0].Model())
	assert.Equal(t, tm.Electronics, items[1].Model())
	assert.True(t, tm.Item.IsInstance(items[0]))
	assert.Equal(t, "Donovan", items[0].GetString("author"))

	found, err := tm.Item.FindOne(ctx, map[string]interface{}{"name": "Television"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tv.ID(), found.ID())
	assert.Equal(t, tm.Electronics, found.Model())

	// Fields only one submodel declares update only that submodel
	updated, err := tm.Item.UpdateOne(ctx,
		map[string]interface{}{"_id": book.ID()},
		map[string]interface{}{"author": "Kernighan"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Kernighan", updated.GetString("author"))

	_, modified, err := tm.Item.UpdateMany(ctx, nil, map[string]interface{}{"price": 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), modified)

	// Writes that create documents need a concrete model
	_, err = tm.Item.InsertOne(ctx, map[string]interface{}{"name": "Widget"})
	assert.True(t, ErrPolymorphicWrite.Has(err))
	_, err = tm.Item.FindOneAndReplace(ctx, map[string]interface{}{"name": "Widget"}, map[string]interface{}{"name": "Gadget"})
	assert.True(t, ErrPolymorphicWrite.Has(err))

	n, err := tm.Item.DeleteMany(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestModel_NotConnected(t *testing.T) {
	r := NewRegistry()
	users := r.MustDefine(ModelDef{Name: "User", Fields: []fields.Field{fields.String("username")}})

	_, err := users.InsertOne(context.Background(), map[string]interface{}{"username": "alice"})
	assert.True(t, ErrNotConnected.Has(err))
	_, err = users.FindOne(context.Background(), nil)
	assert.True(t, ErrNotConnected.Has(err))
}

func TestModel_FromMapResolvesSubmodel(t *testing.T) {
	tm := newTestModels(t)
	id := primitive.NewObjectID()

	doc, err := tm.Item.FromMap(map[string]interface{}{
		"_id":     id.Hex(),
		"_type":   "Book",
		"name":    "Dune",
		"author":  "Herbert",
		"removed": "dropped on read",
	})
	require.NoError(t, err)
	assert.Equal(t, tm.Book, doc.Model())
	assert.Equal(t, id, doc.ID())
	assert.Equal(t, "Herbert", doc.GetString("author"))

	// A discriminator outside the hierarchy falls back to the model read
	doc, err = tm.Book.FromMap(map[string]interface{}{"_type": "User", "name": "Dune"})
	require.NoError(t, err)
	assert.Equal(t, tm.Book, doc.Model())
	assert.True(t, doc.IsNew())
}

func TestModel_TimestampsUseRegistryClock(t *testing.T) {
	ctx := context.Background()
	tm := newTestModels(t)

	user, err := tm.User.InsertOne(ctx, map[string]interface{}{"username": "alice"})
	require.NoError(t, err)
	created := user.GetTime(CreatedAtKey)
	assert.Equal(t, time.UTC, created.Location())
	assert.False(t, created.Before(testEpoch))
	assert.Equal(t, created, created.Truncate(time.Millisecond))
}

func TestModel_AutoNowAddIsNeverOverwritten(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(WithClock(func() time.Time { return testEpoch }))
	member := r.MustDefine(ModelDef{
		Name: "Member",
		Fields: []fields.Field{
			fields.String("name", fields.Required()),
			fields.DateTime("joined", fields.AutoNowAdd()),
			fields.DateTime("seen", fields.AutoNow()),
		},
	})
	require.NoError(t, r.Connect(ctx, storage.NewStorageEngine()))

	doc, err := member.InsertOne(ctx, map[string]interface{}{"name": "alice", "joined": "2001-01-01"})
	require.NoError(t, err)
	joined := doc.GetTime("joined")
	require.False(t, joined.Before(testEpoch), "insert stamps joined regardless of input")

	byID := map[string]interface{}{"_id": doc.ID()}
	updated, err := member.UpdateOne(ctx, byID, map[string]interface{}{"name": "alice2", "joined": "2001-01-01"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "alice2", updated.GetString("name"))
	assert.Equal(t, joined, updated.GetTime("joined"))
	assert.True(t, updated.GetTime("seen").After(doc.GetTime("seen")))

	_, _, err = member.UpdateMany(ctx, nil, map[string]interface{}{"joined": "2001-01-01"})
	require.NoError(t, err)

	for _, replacement := range []map[string]interface{}{
		{"name": "bob"},
		{"name": "bob", "joined": "2001-01-01"},
	} {
		replaced, err := member.FindOneAndReplace(ctx, byID, replacement)
		require.NoError(t, err)
		assert.Equal(t, joined, replaced.GetTime("joined"))
	}

	found, err := member.FindOne(ctx, byID)
	require.NoError(t, err)
	assert.Equal(t, joined, found.GetTime("joined"))
}

package models

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/adfharrison1/go-odm/pkg/fields"
	"github.com/adfharrison1/go-odm/pkg/odm"
	"github.com/adfharrison1/go-odm/pkg/storage"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	r := odm.NewRegistry()
	c, err := Register(r, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	require.NoError(t, r.Connect(context.Background(), storage.NewStorageEngine()))
	return c
}

func TestRegister_Twice(t *testing.T) {
	r := odm.NewRegistry()
	_, err := Register(r)
	require.NoError(t, err)
	_, err = Register(r)
	assert.True(t, odm.ErrConfig.Has(err))
}

func TestUser_PasswordIsHashed(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	user, err := c.User.InsertOne(ctx, map[string]interface{}{
		"username": "johndoe",
		"email":    "johndoe@hotmail.com",
		"password": "password123",
	})
	require.NoError(t, err)

	hash, ok := user.Raw("password").([]byte)
	require.True(t, ok)
	assert.NotEqual(t, []byte("password123"), hash)

	assert.NoError(t, VerifyPassword(user, "password123"))
	assert.ErrorIs(t, VerifyPassword(user, "wrong"), ErrPasswordMismatch)

	// Reading the user back does not hash the stored hash again
	found, err := c.User.FindOne(ctx, map[string]interface{}{"username": "johndoe"})
	require.NoError(t, err)
	assert.NoError(t, VerifyPassword(found, "password123"))

	noPassword, err := c.User.InsertOne(ctx, map[string]interface{}{"username": "nopass"})
	require.NoError(t, err)
	assert.Error(t, VerifyPassword(noPassword, "anything"))
}

func TestUser_Validation(t *testing.T) {
	c := newCatalog(t)

	tests := []struct {
		name   string
		values map[string]interface{}
		target interface{}
	}{
		{name: "bad email", values: map[string]interface{}{"username": "johndoe", "email": "not-an-email"}, target: new(*fields.StringPatternError)},
		{name: "short username", values: map[string]interface{}{"username": "jd"}, target: new(*fields.StringLengthError)},
		{name: "long username", values: map[string]interface{}{"username": string(make([]byte, 51))}, target: new(*fields.StringLengthError)},
		{name: "address without city", values: map[string]interface{}{"username": "johndoe", "address": map[string]interface{}{}}, target: new(*fields.RequiredFieldError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.User.New(tt.values)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "got %T: %v", err, err)
		})
	}
}

func TestUserDetails_Reference(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	user, err := c.User.InsertOne(ctx, map[string]interface{}{"username": "johndoe"})
	require.NoError(t, err)

	details, err := c.UserDetails.InsertOne(ctx, map[string]interface{}{
		"user":   user.ID().Hex(),
		"gender": "female",
		"dob":    "1990-04-12",
	})
	require.NoError(t, err)
	assert.Equal(t, true, details.Raw("active"))
	assert.Equal(t, GenderFemale, details.Raw("gender"))
	assert.Equal(t, 1990, details.GetTime("dob").Year())

	owner, err := details.Fetch(ctx, "user")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, user.ID(), owner.ID())

	_, err = c.UserDetails.InsertOne(ctx, map[string]interface{}{"user": user.ID().Hex(), "gender": "unknown"})
	var enumErr *fields.InvalidEnumValueError
	assert.True(t, errors.As(err, &enumErr))
}

func TestCatalog_Items(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	book, ok := c.ItemModel("book")
	require.True(t, ok)
	assert.Equal(t, c.Book, book)
	_, ok = c.ItemModel("furniture")
	assert.False(t, ok)

	_, err := c.Book.InsertOne(ctx, map[string]interface{}{"name": "Dune", "author": "Herbert", "isbn": "978-0441013593", "price": 9.99})
	require.NoError(t, err)
	_, err = c.Electronics.InsertOne(ctx, map[string]interface{}{"name": "Radio", "brand": "Roberts", "warranty_months": 12})
	require.NoError(t, err)

	items, err := c.Item.FindMany(ctx, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Book", items[0].Model().Name())
	assert.Equal(t, "Electronics", items[1].Model().Name())

	_, err = c.Book.InsertOne(ctx, map[string]interface{}{"name": "Dune II", "author": "Herbert", "isbn": "unknown"})
	var patternErr *fields.StringPatternError
	assert.True(t, errors.As(err, &patternErr))

	_, err = c.Item.InsertOne(ctx, map[string]interface{}{"name": "Generic"})
	assert.True(t, odm.ErrPolymorphicWrite.Has(err))
}

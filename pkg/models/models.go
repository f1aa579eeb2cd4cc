// Package models declares the document models served by the demo service.
package models

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/adfharrison1/go-odm/pkg/fields"
	"github.com/adfharrison1/go-odm/pkg/odm"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// EmailPattern is the loose address check applied to user emails.
const EmailPattern = `^\S+@\S+\.\S+$`

// Catalog holds the registered demo models.
type Catalog struct {
	Registry *odm.Registry

	Address     *odm.EmbeddedModel
	User        *odm.Model
	UserDetails *odm.Model

	Item        *odm.Model
	Book        *odm.Model
	Electronics *odm.Model
}

type options struct {
	bcryptCost int
}

type Option func(*options)

// WithBcryptCost sets the cost of password hashes. Tests use
// bcrypt.MinCost to stay fast.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

// Register declares the demo models on r.
func Register(r *odm.Registry, opts ...Option) (*Catalog, error) {
	o := options{bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(&o)
	}
	hash := func(password string) ([]byte, error) {
		return bcrypt.GenerateFromPassword([]byte(password), o.bcryptCost)
	}

	c := &Catalog{Registry: r}
	var err error

	c.Address, err = r.DefineEmbedded("Address",
		fields.String("street"),
		fields.String("city", fields.Required()),
		fields.String("postcode", fields.MaxLength(10)),
		fields.GeoPoint("location", fields.ReturnAsList()),
	)
	if err != nil {
		return nil, err
	}

	c.User, err = r.Define(odm.ModelDef{
		Name: "User",
		Fields: []fields.Field{
			fields.String("username", fields.Required(), fields.Unique(), fields.MinLength(3), fields.MaxLength(50)),
			fields.String("email", fields.Pattern(EmailPattern)),
			fields.Binary("password", fields.HashFunction(hash)),
			fields.Integer("age", fields.MinValue(0), fields.MaxValue(150)),
			fields.Boolean("is_admin", fields.Default(false)),
			fields.EmbeddedDocument("address", c.Address),
			fields.List("tags", fields.Items(fields.String("tag"))),
		},
		Meta: odm.Meta{
			Collection:         "users",
			Indexes:            []odm.IndexSpec{{Fields: []string{"email"}}},
			CreatedAtTimestamp: true,
			UpdatedAtTimestamp: true,
		},
	})
	if err != nil {
		return nil, err
	}

	c.UserDetails, err = r.Define(odm.ModelDef{
		Name: "UserDetails",
		Fields: []fields.Field{
			fields.Reference("user", c.User, fields.Required()),
			fields.Boolean("active", fields.Default(true)),
			fields.Enum("gender", []interface{}{GenderMale, GenderFemale, GenderOther}),
			fields.DateTime("dob", fields.DateTimeFormats("2006-01-02")),
		},
		Meta: odm.Meta{CreatedAtTimestamp: true},
	})
	if err != nil {
		return nil, err
	}

	c.Item, err = r.Define(odm.ModelDef{
		Name: "Item",
		Fields: []fields.Field{
			fields.String("name", fields.Required()),
			fields.Float("price", fields.MinValue(0)),
		},
		Meta: odm.Meta{
			Indexes:            []odm.IndexSpec{{Fields: []string{"name"}}},
			CreatedAtTimestamp: true,
			UpdatedAtTimestamp: true,
		},
	})
	if err != nil {
		return nil, err
	}
	c.Book, err = r.Define(odm.ModelDef{
		Name:    "Book",
		Extends: c.Item,
		Fields: []fields.Field{
			fields.String("author", fields.Required()),
			fields.String("isbn", fields.Pattern(`^[0-9-]{10,17}$`)),
		},
	})
	if err != nil {
		return nil, err
	}
	c.Electronics, err = r.Define(odm.ModelDef{
		Name:    "Electronics",
		Extends: c.Item,
		Fields: []fields.Field{
			fields.String("brand"),
			fields.Integer("warranty_months", fields.MinValue(0)),
		},
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ErrPasswordMismatch is returned by VerifyPassword for a wrong password.
var ErrPasswordMismatch = errors.New("password does not match")

// VerifyPassword checks password against the stored hash of user.
func VerifyPassword(user *odm.Document, password string) error {
	hash, ok := user.Raw("password").([]byte)
	if !ok {
		return fmt.Errorf("%s has no password", user)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}

// ItemModel returns the concrete item model for kind, such as "book".
func (c *Catalog) ItemModel(kind string) (*odm.Model, bool) {
	for _, m := range c.Item.Children() {
		if m.CollectionName() == kind {
			return m, true
		}
	}
	return nil, false
}

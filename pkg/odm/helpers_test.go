package odm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-odm/pkg/fields"
	"github.com/adfharrison1/go-odm/pkg/storage"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testModels struct {
	registry *Registry
	engine   *storage.StorageEngine

	Address *EmbeddedModel
	User    *Model
	Profile *Model

	Item        *Model
	Book        *Model
	Electronics *Model
}

type testStatus string

const (
	statusActive   testStatus = "active"
	statusInactive testStatus = "inactive"
)

// newTestModels returns a set of models connected to a fresh in-memory
// database. The registry clock is frozen so timestamps only move through
// the monotonic stamp.
func newTestModels(t *testing.T, options ...RegistryOption) *testModels {
	t.Helper()

	options = append([]RegistryOption{WithClock(func() time.Time { return testEpoch })}, options...)
	r := NewRegistry(options...)
	tm := &testModels{registry: r, engine: storage.NewStorageEngine()}

	tm.Address = r.MustDefineEmbedded("Address",
		fields.String("street"),
		fields.String("city", fields.Required()),
		fields.GeoPoint("location"),
	)
	tm.User = r.MustDefine(ModelDef{
		Name: "User",
		Fields: []fields.Field{
			fields.String("username", fields.Required(), fields.Unique(), fields.MinLength(3)),
			fields.String("email"),
			fields.Integer("age", fields.MinValue(5), fields.MaxValue(100)),
			fields.Boolean("is_admin", fields.Default(false)),
			fields.Enum("status", []interface{}{statusActive, statusInactive}, fields.Default(statusActive)),
			fields.EmbeddedDocument("address", tm.Address),
			fields.List("tags", fields.Items(fields.String("tag"))),
		},
		Meta: Meta{
			Indexes:            []IndexSpec{{Fields: []string{"email"}}},
			CreatedAtTimestamp: true,
			UpdatedAtTimestamp: true,
		},
	})
	tm.Profile = r.MustDefine(ModelDef{
		Name: "UserProfile",
		Fields: []fields.Field{
			fields.Reference("user", tm.User, fields.Required()),
			fields.String("bio"),
		},
	})

	tm.Item = r.MustDefine(ModelDef{
		Name: "Item",
		Fields: []fields.Field{
			fields.String("name", fields.Required()),
			fields.Float("price", fields.MinValue(0)),
		},
		Meta: Meta{UpdatedAtTimestamp: true},
	})
	tm.Book = r.MustDefine(ModelDef{
		Name:    "Book",
		Extends: tm.Item,
		Fields:  []fields.Field{fields.String("author")},
	})
	tm.Electronics = r.MustDefine(ModelDef{
		Name:    "Electronics",
		Extends: tm.Item,
		Fields:  []fields.Field{fields.Integer("warranty_months")},
	})

	require.NoError(t, r.Connect(context.Background(), tm.engine))
	return tm
}

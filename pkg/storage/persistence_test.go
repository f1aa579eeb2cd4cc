package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

func TestStorageEngine_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	file := filepath.Join(dir, "shop"+FileExtension)

	oid := primitive.NewObjectID()
	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	engine := NewStorageEngine(WithName("shop"))
	users := engine.Collection("users")
	_, err := users.CreateIndex(ctx, domain.IndexModel{Name: "username_unique", Keys: []domain.IndexKey{{Field: "username"}}, Unique: true})
	require.NoError(t, err)
	_, err = users.InsertOne(ctx, domain.Document{
		"_id":        oid,
		"username":   "alice",
		"age":        30,
		"score":      float32(1.5),
		"created_at": created,
		"friend":     primitive.NewObjectID(),
		"address":    domain.Document{"city": "Paris"},
		"location":   []float64{2.35, 48.85},
		"avatar":     []byte{1, 2, 3},
		"files":      []interface{}{[]byte("a"), []byte{0xff}},
		"label":      "plain string",
	})
	require.NoError(t, err)

	require.NoError(t, engine.SaveToFile(file))

	_, err = os.Stat(file)
	require.NoError(t, err)

	loaded := NewStorageEngine()
	require.NoError(t, loaded.LoadFromFile(file))
	assert.Equal(t, "shop", loaded.Name())

	doc, err := loaded.Collection("users").FindOne(ctx, domain.Document{"_id": oid})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "alice", doc["username"])
	assert.Equal(t, int64(30), doc["age"])
	assert.Equal(t, 1.5, doc["score"])
	assert.True(t, created.Equal(doc["created_at"].(time.Time)))
	assert.Equal(t, time.UTC, doc["created_at"].(time.Time).Location())
	_, isOID := doc["friend"].(primitive.ObjectID)
	assert.True(t, isOID)
	assert.Equal(t, map[string]interface{}{"city": "Paris"}, doc["address"])
	assert.Equal(t, []byte{1, 2, 3}, doc["avatar"])
	assert.Equal(t, []interface{}{[]byte("a"), []byte{0xff}}, doc["files"])
	assert.Equal(t, "plain string", doc["label"])

	// Indexes survive the round trip
	infos, err := loaded.Collection("users").ListIndexes(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "username_unique", infos[1].Name)
	_, err = loaded.Collection("users").InsertOne(ctx, domain.Document{"username": "alice"})
	assert.Error(t, err)
}

func TestStorageEngine_LoadMissingFile(t *testing.T) {
	engine := NewStorageEngine()
	err := engine.LoadFromFile(filepath.Join(t.TempDir(), "missing"+FileExtension))
	require.NoError(t, err)
	assert.Empty(t, engine.CollectionNames())
}

func TestStorageEngine_LoadCorruptFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "corrupt"+FileExtension)
	require.NoError(t, os.WriteFile(file, []byte("not a snapshot at all"), 0o644))

	err := NewStorageEngine().LoadFromFile(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file header")
}

func TestStorageEngine_CloseWritesSnapshot(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "close"+FileExtension)

	engine := NewStorageEngine(WithDataFile(file))
	_, err := engine.Collection("items").InsertOne(ctx, domain.Document{"_id": "a"})
	require.NoError(t, err)
	require.NoError(t, engine.Close(ctx))
	// Close is idempotent
	require.NoError(t, engine.Close(ctx))

	loaded := NewStorageEngine()
	require.NoError(t, loaded.LoadFromFile(file))
	doc, err := loaded.Collection("items").FindOne(ctx, domain.Document{"_id": "a"})
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestStorageEngine_BackgroundSave(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "background"+FileExtension)

	engine := NewStorageEngine(WithDataFile(file), WithBackgroundSave(10*time.Millisecond))
	engine.StartBackgroundWorkers()
	defer engine.StopBackgroundWorkers()

	_, err := engine.Collection("items").InsertOne(ctx, domain.Document{"_id": 1})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(file)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

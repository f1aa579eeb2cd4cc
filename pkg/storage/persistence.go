package storage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// SaveToFile writes a snapshot of every collection and index
func (se *StorageEngine) SaveToFile(filename string) error {
	storageData := se.export()

	msgpackData, err := msgpack.Marshal(storageData)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	flags := FlagCompressed
	payload := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, payload, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	if n == 0 {
		// incompressible input
		flags = 0
		payload = msgpackData
	} else {
		payload = payload[:n]
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteHeader(tmp, flags, len(msgpackData)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write compressed data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}

	se.logger.Debug("snapshot saved", zap.String("file", filename), zap.Int("bytes", len(payload)))
	return nil
}

// LoadFromFile replaces the engine state with a snapshot. A missing file
// leaves the engine empty.
func (se *StorageEngine) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	header, err := ReadHeader(file)
	if err != nil {
		return fmt.Errorf("invalid file header: %w", err)
	}
	payload, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read compressed data: %w", err)
	}
	if header.Flags&FlagCompressed != 0 {
		raw := make([]byte, header.RawSize)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return fmt.Errorf("failed to decompress data: %w", err)
		}
		payload = raw[:n]
	}

	var storageData StorageData
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&storageData); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	if err := se.restore(&storageData); err != nil {
		return err
	}
	se.logger.Info("snapshot loaded", zap.String("file", filename), zap.Int("collections", len(storageData.Collections)))
	return nil
}

func (se *StorageEngine) export() *StorageData {
	se.mu.RLock()
	colls := make([]*collectionData, 0, len(se.collections))
	for _, coll := range se.collections {
		colls = append(colls, coll)
	}
	se.mu.RUnlock()

	data := NewStorageData(se.name)
	for _, coll := range colls {
		coll.mu.RLock()
		docs := make([]map[string]interface{}, 0, len(coll.order))
		for _, key := range coll.order {
			docs = append(docs, encodeValue(coll.docs[key]).(map[string]interface{}))
		}
		data.Collections[coll.name] = docs
		for _, idx := range coll.indexes {
			snap := IndexSnapshot{Name: idx.Name, Unique: idx.Unique}
			for _, k := range idx.Keys {
				snap.Fields = append(snap.Fields, k.Field)
				snap.Orders = append(snap.Orders, orderOf(k))
			}
			if len(idx.Options) > 0 {
				snap.Options = encodeValue(idx.Options).(map[string]interface{})
			}
			data.Indexes[coll.name] = append(data.Indexes[coll.name], snap)
		}
		coll.mu.RUnlock()
	}
	return data
}

func (se *StorageEngine) restore(data *StorageData) error {
	collections := make(map[string]*collectionData)
	get := func(name string) *collectionData {
		coll, ok := collections[name]
		if !ok {
			coll = newCollectionData(name)
			collections[name] = coll
		}
		return coll
	}

	for name, snaps := range data.Indexes {
		coll := get(name)
		for _, snap := range snaps {
			model := domain.IndexModel{Name: snap.Name, Unique: snap.Unique}
			for i, field := range snap.Fields {
				var order interface{} = 1
				if i < len(snap.Orders) {
					order = decodeValue(snap.Orders[i])
				}
				model.Keys = append(model.Keys, domain.IndexKey{Field: field, Order: order})
			}
			if len(snap.Options) > 0 {
				model.Options = domain.Document(decodeValue(snap.Options).(map[string]interface{}))
			}
			coll.indexes = append(coll.indexes, newIndex(model))
		}
	}
	for name, docs := range data.Collections {
		coll := get(name)
		for _, raw := range docs {
			doc := domain.Document(decodeValue(raw).(map[string]interface{}))
			if err := coll.put(docKey(doc["_id"]), doc); err != nil {
				return fmt.Errorf("failed to restore collection %s: %w", name, err)
			}
		}
		coll.dirty = false
	}

	se.mu.Lock()
	defer se.mu.Unlock()
	if data.Name != "" {
		se.name = data.Name
	}
	se.collections = collections
	return nil
}

// encodeValue prepares a stored value for MessagePack. ObjectIDs are written
// as {"$oid": hex} and byte slices as {"$bin": base64}, since loose decoding
// cannot tell bin payloads from strings.
func encodeValue(v interface{}) interface{} {
	if m, ok := asMap(v); ok {
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[k] = encodeValue(val)
		}
		return out
	}
	switch t := v.(type) {
	case primitive.ObjectID:
		return map[string]interface{}{"$oid": t.Hex()}
	case time.Time:
		return t.UTC()
	case []byte:
		return map[string]interface{}{"$bin": base64.StdEncoding.EncodeToString(t)}
	case []float64:
		return t
	}
	if list := asList(v); list != nil {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = encodeValue(item)
		}
		return out
	}
	return v
}

// decodeValue reverses encodeValue and normalizes decoded numbers to int64
// and float64.
func decodeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if hex, ok := t["$oid"].(string); ok && len(t) == 1 {
			if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
				return oid
			}
		}
		if b64, ok := t["$bin"].(string); ok && len(t) == 1 {
			if b, err := base64.StdEncoding.DecodeString(b64); err == nil {
				return b
			}
		}
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = decodeValue(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = val
		}
		return decodeValue(out)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = decodeValue(item)
		}
		return out
	case time.Time:
		return t.UTC()
	case float32:
		return float64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	}
	return v
}

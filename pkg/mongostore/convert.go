package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// toBSON converts ODM values to the forms the driver encodes. Ordered
// documents become bson.D; maps and lists are converted recursively.
func toBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case domain.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: toBSON(e.Value)}
		}
		return out
	case domain.Document:
		return toBSONMap(t)
	case map[string]interface{}:
		return toBSONMap(t)
	case []domain.Document:
		out := make(bson.A, len(t))
		for i, d := range t {
			out[i] = toBSONMap(d)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = toBSON(item)
		}
		return out
	case time.Time:
		return t.UTC()
	}
	return v
}

func toBSONMap(m map[string]interface{}) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = toBSON(v)
	}
	return out
}

func toPipeline(p domain.Pipeline) bson.A {
	out := make(bson.A, len(p))
	for i, stage := range p {
		out[i] = toBSONMap(stage)
	}
	return out
}

// fromBSON normalizes decoded driver values into plain Go values: documents
// become maps, arrays []interface{}, dates UTC time.Time, generic binary
// []byte and int32 int64.
func fromBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.M:
		return fromBSONMap(t)
	case map[string]interface{}:
		return fromBSONMap(t)
	case primitive.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = fromBSON(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = fromBSON(item)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case primitive.Binary:
		if t.Subtype == bson.TypeBinaryGeneric || t.Subtype == bson.TypeBinaryBinaryOld {
			return t.Data
		}
		return t
	case int32:
		return int64(t)
	}
	return v
}

func fromBSONMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = fromBSON(v)
	}
	return out
}

func toDocument(m bson.M) domain.Document {
	if m == nil {
		return nil
	}
	return domain.Document(fromBSONMap(m))
}

// indexKeys converts index keys to the ordered key specification.
func indexKeys(keys []domain.IndexKey) bson.D {
	out := make(bson.D, len(keys))
	for i, k := range keys {
		var order interface{} = 1
		if k.Order != nil {
			order = k.Order
		}
		out[i] = bson.E{Key: k.Field, Value: order}
	}
	return out
}

package domain

// IndexKey is one component of an index. Order is 1 or -1 for ordered keys,
// or a string such as "2dsphere" or "text" for special index types. A nil
// Order means ascending.
type IndexKey struct {
	Field string      `json:"field"`
	Order interface{} `json:"order"`
}

// IndexModel describes an index to create.
type IndexModel struct {
	Keys    []IndexKey
	Name    string
	Unique  bool
	Options Document // passed to the backing store unchanged
}

// IndexInfo describes an existing index.
type IndexInfo struct {
	Name   string     `json:"name"`
	Keys   []IndexKey `json:"keys"`
	Unique bool       `json:"unique"`
}

// DefaultIndexName is the name of the primary identity index every
// collection carries.
const DefaultIndexName = "_id_"

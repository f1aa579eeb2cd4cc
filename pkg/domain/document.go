package domain

// Document is a raw record as exchanged with a backing collection.
type Document map[string]interface{}

// E is a single key/value pair of an ordered document.
type E struct {
	Key   string
	Value interface{}
}

// D is an ordered document. It is used wherever key order matters, such as
// sort specifications.
type D []E

// Pipeline is an aggregation pipeline: an ordered list of stages.
type Pipeline []Document

// Merge returns a new document holding the keys of every source, later
// sources overriding earlier ones.
func Merge(sources ...Document) Document {
	out := Document{}
	for _, src := range sources {
		for k, v := range src {
			out[k] = v
		}
	}
	return out
}

package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// runPipeline applies aggregation stages in order. Supported stages are
// $match, $project, $addFields/$set, $unset, $sort, $skip, $limit and $count.
func runPipeline(docs []domain.Document, pipeline domain.Pipeline) ([]domain.Document, error) {
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("pipeline stage %d must have exactly one operator, got %d", i, len(stage))
		}
		for op, arg := range stage {
			var err error
			docs, err = runStage(docs, op, arg)
			if err != nil {
				return nil, fmt.Errorf("pipeline stage %d (%s): %w", i, op, err)
			}
		}
	}
	return docs, nil
}

func runStage(docs []domain.Document, op string, arg interface{}) ([]domain.Document, error) {
	switch op {
	case "$match":
		filter, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("expects a document")
		}
		var out []domain.Document
		for _, doc := range docs {
			if MatchesFilter(doc, filter) {
				out = append(out, doc)
			}
		}
		return out, nil
	case "$project":
		spec, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("expects a document")
		}
		return project(docs, spec)
	case "$addFields", "$set":
		spec, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("expects a document")
		}
		for _, doc := range docs {
			for path, expr := range spec {
				v, found := evaluate(doc, expr)
				if found {
					setPath(doc, path, v)
				}
			}
		}
		return docs, nil
	case "$unset":
		var paths []string
		if s, ok := arg.(string); ok {
			paths = []string{s}
		} else {
			for _, item := range asList(arg) {
				if s, ok := item.(string); ok {
					paths = append(paths, s)
				}
			}
		}
		for _, doc := range docs {
			for _, path := range paths {
				unsetPath(doc, path)
			}
		}
		return docs, nil
	case "$sort":
		spec, err := sortSpec(arg)
		if err != nil {
			return nil, err
		}
		sortDocuments(docs, spec)
		return docs, nil
	case "$skip":
		n, ok := ToFloat64(arg)
		if !ok || n < 0 {
			return nil, fmt.Errorf("expects a non-negative number")
		}
		return window(docs, int64(n), 0), nil
	case "$limit":
		n, ok := ToFloat64(arg)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("expects a positive number")
		}
		return window(docs, 0, int64(n)), nil
	case "$count":
		name, ok := arg.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("expects a field name")
		}
		if len(docs) == 0 {
			return nil, nil
		}
		return []domain.Document{{name: int64(len(docs))}}, nil
	}
	return nil, fmt.Errorf("unsupported stage")
}

// sortSpec accepts an ordered domain.D or a document. Keys of a document
// have no order, so they are applied alphabetically.
func sortSpec(arg interface{}) (domain.D, error) {
	if d, ok := arg.(domain.D); ok {
		return d, nil
	}
	m, ok := asMap(arg)
	if !ok {
		return nil, fmt.Errorf("expects a document")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	spec := make(domain.D, 0, len(keys))
	for _, k := range keys {
		spec = append(spec, domain.E{Key: k, Value: m[k]})
	}
	return spec, nil
}

// evaluate resolves "$path" references and returns literals unchanged.
func evaluate(doc domain.Document, expr interface{}) (interface{}, bool) {
	if s, ok := expr.(string); ok && strings.HasPrefix(s, "$") {
		return getPath(doc, s[1:])
	}
	return deepCopy(expr), true
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	}
	if n, ok := ToFloat64(v); ok {
		return n != 0
	}
	return true
}

func project(docs []domain.Document, spec domain.Document) ([]domain.Document, error) {
	includeID := true
	inclusion := false
	exclusion := false
	for key, v := range spec {
		if key == "_id" {
			if _, isNum := ToFloat64(v); isNum || isBool(v) {
				includeID = truthy(v)
				continue
			}
		}
		if _, isNum := ToFloat64(v); isNum || isBool(v) {
			if truthy(v) {
				inclusion = true
			} else {
				exclusion = true
			}
		} else {
			inclusion = true
		}
	}
	if inclusion && exclusion {
		return nil, fmt.Errorf("cannot mix inclusion and exclusion")
	}

	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		var next domain.Document
		if exclusion || !inclusion {
			next = deepCopyDocument(doc)
			for key := range spec {
				unsetPath(next, key)
			}
		} else {
			next = domain.Document{}
			for key, v := range spec {
				if key == "_id" && !includeID {
					continue
				}
				if _, isNum := ToFloat64(v); isNum || isBool(v) {
					if val, found := getPath(doc, key); found {
						setPath(next, key, deepCopy(val))
					}
					continue
				}
				if val, found := evaluate(doc, v); found {
					setPath(next, key, val)
				}
			}
		}
		if includeID {
			if id, ok := doc["_id"]; ok {
				if _, set := next["_id"]; !set {
					next["_id"] = id
				}
			}
		} else {
			delete(next, "_id")
		}
		out = append(out, next)
	}
	return out, nil
}

func isBool(v interface{}) bool {
	_, ok := v.(bool)
	return ok
}

// sliceCursor iterates over materialized documents
type sliceCursor struct {
	docs []domain.Document
	pos  int
	err  error
}

func newSliceCursor(docs []domain.Document) *sliceCursor {
	return &sliceCursor{docs: docs, pos: -1}
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Document() (domain.Document, error) {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil, fmt.Errorf("cursor is not positioned on a document")
	}
	return c.docs[c.pos], nil
}

func (c *sliceCursor) Err() error {
	return c.err
}

func (c *sliceCursor) Close(ctx context.Context) error {
	c.docs = nil
	return nil
}

package storage

import (
	"fmt"
	"strings"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// applyUpdate returns a copy of doc with update applied. An update without
// operators is a replacement that keeps the _id of doc.
func applyUpdate(doc, update domain.Document) (domain.Document, error) {
	if !hasOperators(update) {
		next := deepCopyDocument(update)
		if next == nil {
			next = domain.Document{}
		}
		if id, ok := next["_id"]; ok && !ValuesMatch(id, doc["_id"]) {
			return nil, fmt.Errorf("the _id field cannot be changed by a replacement")
		}
		next["_id"] = doc["_id"]
		return next, nil
	}

	next := deepCopyDocument(doc)
	for op, arg := range update {
		fieldsArg, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("%s expects a document, got %T", op, arg)
		}
		for path, value := range fieldsArg {
			if path == "_id" || strings.HasPrefix(path, "_id.") {
				if op == "$set" && ValuesMatch(value, doc["_id"]) {
					continue
				}
				return nil, fmt.Errorf("performing an update on the path '_id' would modify the immutable field '_id'")
			}
			switch op {
			case "$set":
				setPath(next, path, deepCopy(value))
			case "$unset":
				unsetPath(next, path)
			case "$inc":
				delta, ok := ToFloat64(value)
				if !ok {
					return nil, fmt.Errorf("cannot increment with non-numeric argument %v", value)
				}
				current, found := getPath(next, path)
				if !found {
					setPath(next, path, value)
					continue
				}
				n, ok := ToFloat64(current)
				if !ok {
					return nil, fmt.Errorf("cannot apply $inc to non-numeric field %s", path)
				}
				setPath(next, path, addNumbers(current, n+delta, value))
			case "$setOnInsert":
				// only meaningful for upserts, which are not supported
			default:
				return nil, fmt.Errorf("unknown update operator %s", op)
			}
		}
	}
	return next, nil
}

// addNumbers keeps integer fields integral when the increment is integral.
func addNumbers(current interface{}, sum float64, delta interface{}) interface{} {
	_, curFloat := current.(float64)
	_, deltaFloat := delta.(float64)
	if curFloat || deltaFloat {
		return sum
	}
	return int64(sum)
}

func hasOperators(update domain.Document) bool {
	for key := range update {
		if strings.HasPrefix(key, "$") {
			return true
		}
	}
	return false
}

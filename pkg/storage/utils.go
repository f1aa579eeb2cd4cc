package storage

import (
	"bytes"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// MatchesFilter checks if a document matches the given filter criteria.
// Top-level $and, $or and $nor are supported; every other key is a dotted
// field path compared by equality or with query operators.
func MatchesFilter(doc domain.Document, filter domain.Document) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			for _, sub := range subFilters(cond) {
				if !MatchesFilter(doc, sub) {
					return false
				}
			}
		case "$or":
			matched := false
			for _, sub := range subFilters(cond) {
				if MatchesFilter(doc, sub) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$nor":
			for _, sub := range subFilters(cond) {
				if MatchesFilter(doc, sub) {
					return false
				}
			}
		default:
			if !matchCondition(doc, key, cond) {
				return false
			}
		}
	}
	return true
}

func subFilters(v interface{}) []domain.Document {
	var out []domain.Document
	for _, item := range asList(v) {
		if m, ok := asMap(item); ok {
			out = append(out, m)
		}
	}
	return out
}

func matchCondition(doc domain.Document, path string, cond interface{}) bool {
	value, found := getPath(doc, path)
	if ops, ok := asMap(cond); ok && isOperatorMap(cond) {
		for op, arg := range ops {
			if op == "$options" {
				continue
			}
			if !applyOperator(op, arg, value, found, ops) {
				return false
			}
		}
		return true
	}
	return matchesEquality(value, found, cond)
}

// candidates expands an array value into its elements, keeping the array
// itself so whole-array equality still works.
func candidates(value interface{}) []interface{} {
	if list, ok := value.([]interface{}); ok {
		return append([]interface{}{value}, list...)
	}
	return []interface{}{value}
}

func matchesEquality(value interface{}, found bool, expected interface{}) bool {
	if expected == nil && !found {
		return true
	}
	if !found {
		return false
	}
	for _, c := range candidates(value) {
		if ValuesMatch(c, expected) {
			return true
		}
	}
	return false
}

func applyOperator(op string, arg, value interface{}, found bool, ops domain.Document) bool {
	switch op {
	case "$eq":
		return matchesEquality(value, found, arg)
	case "$ne":
		return !matchesEquality(value, found, arg)
	case "$gt", "$gte", "$lt", "$lte":
		if !found {
			return false
		}
		for _, c := range candidates(value) {
			cmp, ok := compareValues(c, arg)
			if !ok {
				continue
			}
			switch {
			case op == "$gt" && cmp > 0, op == "$gte" && cmp >= 0, op == "$lt" && cmp < 0, op == "$lte" && cmp <= 0:
				return true
			}
		}
		return false
	case "$in":
		for _, expected := range asList(arg) {
			if matchesEquality(value, found, expected) {
				return true
			}
		}
		return false
	case "$nin":
		return !applyOperator("$in", arg, value, found, ops)
	case "$exists":
		want, _ := arg.(bool)
		return found == want
	case "$size":
		list, ok := value.([]interface{})
		n, isNum := ToFloat64(arg)
		return ok && isNum && float64(len(list)) == n
	case "$regex":
		return matchRegex(arg, ops["$options"], value, found)
	case "$not":
		sub, ok := asMap(arg)
		if !ok {
			return false
		}
		for subOp, subArg := range sub {
			if !applyOperator(subOp, subArg, value, found, sub) {
				return true
			}
		}
		return false
	}
	return false
}

func matchRegex(pattern, options, value interface{}, found bool) bool {
	if !found {
		return false
	}
	var re *regexp.Regexp
	switch p := pattern.(type) {
	case *regexp.Regexp:
		re = p
	case primitive.Regex:
		return matchRegex(p.Pattern, p.Options, value, found)
	case string:
		flags, _ := options.(string)
		if strings.Contains(flags, "i") {
			p = "(?i)" + p
		}
		var err error
		if re, err = regexp.Compile(p); err != nil {
			return false
		}
	default:
		return false
	}
	for _, c := range candidates(value) {
		if s, ok := c.(string); ok && re.MatchString(s) {
			return true
		}
	}
	return false
}

func isOperatorMap(v interface{}) bool {
	m, ok := asMap(v)
	if !ok || len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// ValuesMatch compares two values for equality. Numbers compare across
// types, strings compare exactly.
func ValuesMatch(actual, expected interface{}) bool {
	// Handle nil values
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	// Handle numeric comparison
	if actualNum, ok1 := ToFloat64(actual); ok1 {
		if expectedNum, ok2 := ToFloat64(expected); ok2 {
			return actualNum == expectedNum
		}
		return false
	}

	switch a := actual.(type) {
	case time.Time:
		e, ok := expected.(time.Time)
		return ok && a.Equal(e)
	case []byte:
		e, ok := expected.([]byte)
		return ok && bytes.Equal(a, e)
	case []interface{}:
		e := asList(expected)
		if e == nil || len(a) != len(e) {
			return false
		}
		for i := range a {
			if !ValuesMatch(a[i], e[i]) {
				return false
			}
		}
		return true
	}

	if am, ok := asMap(actual); ok {
		em, ok := asMap(expected)
		if !ok || len(am) != len(em) {
			return false
		}
		for k, v := range am {
			ev, exists := em[k]
			if !exists || !ValuesMatch(v, ev) {
				return false
			}
		}
		return true
	}

	// Default to direct comparison
	return reflect.DeepEqual(actual, expected)
}

// compareValues orders two values of the same family. It reports false when
// they cannot be compared.
func compareValues(a, b interface{}) (int, bool) {
	if an, ok := ToFloat64(a); ok {
		bn, ok := ToFloat64(b)
		if !ok {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case primitive.ObjectID:
		bv, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(av[:], bv[:]), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// ToFloat64 converts various numeric types to float64 for comparison
func ToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func asMap(v interface{}) (domain.Document, bool) {
	switch m := v.(type) {
	case domain.Document:
		return m, true
	case map[string]interface{}:
		return domain.Document(m), true
	case primitive.M:
		return domain.Document(m), true
	case domain.D:
		out := make(domain.Document, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

func asList(v interface{}) []interface{} {
	switch l := v.(type) {
	case []interface{}:
		return l
	case primitive.A:
		return l
	}
	// arrays are scalars here: ObjectID is a [12]byte
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// getPath resolves a dotted path. Numeric segments index into arrays; other
// segments applied to an array collect the values of its elements.
func getPath(doc domain.Document, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, part := range strings.Split(path, ".") {
		if m, ok := asMap(current); ok {
			v, exists := m[part]
			if !exists {
				return nil, false
			}
			current = v
			continue
		}
		list, ok := current.([]interface{})
		if !ok {
			return nil, false
		}
		if i, err := strconv.Atoi(part); err == nil {
			if i < 0 || i >= len(list) {
				return nil, false
			}
			current = list[i]
			continue
		}
		var collected []interface{}
		for _, item := range list {
			if m, ok := asMap(item); ok {
				if v, exists := m[part]; exists {
					collected = append(collected, v)
				}
			}
		}
		if len(collected) == 0 {
			return nil, false
		}
		current = collected
	}
	return current, true
}

// setPath assigns a dotted path, creating intermediate documents.
func setPath(doc domain.Document, path string, value interface{}) {
	parts := strings.Split(path, ".")
	current := map[string]interface{}(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(current[part])
		if !ok {
			next = domain.Document{}
		}
		plain := map[string]interface{}(next)
		current[part] = plain
		current = plain
	}
	current[parts[len(parts)-1]] = value
}

func unsetPath(doc domain.Document, path string) {
	parts := strings.Split(path, ".")
	current := map[string]interface{}(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(current[part])
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}

func deepCopyDocument(doc domain.Document) domain.Document {
	if doc == nil {
		return nil
	}
	out := make(domain.Document, len(doc))
	for k, v := range doc {
		out[k] = deepCopy(v)
	}
	return out
}

// deepCopy copies maps and slices so stored documents never alias caller
// values. Nested documents are stored as map[string]interface{}.
func deepCopy(v interface{}) interface{} {
	if m, ok := asMap(v); ok {
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[k] = deepCopy(val)
		}
		return out
	}
	switch t := v.(type) {
	case []byte:
		return append([]byte(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	if list := asList(v); list != nil {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = deepCopy(item)
		}
		return out
	}
	return v
}

// sortDocuments orders documents by the given keys. Missing values sort first.
func sortDocuments(docs []domain.Document, spec domain.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range spec {
			dir := 1
			if n, ok := ToFloat64(key.Value); ok && n < 0 {
				dir = -1
			}
			a, aok := getPath(docs[i], key.Key)
			b, bok := getPath(docs[j], key.Key)
			var cmp int
			switch {
			case !aok && !bok:
				cmp = 0
			case !aok:
				cmp = -1
			case !bok:
				cmp = 1
			default:
				cmp, _ = compareValues(a, b)
			}
			if cmp != 0 {
				return cmp*dir < 0
			}
		}
		return false
	})
}

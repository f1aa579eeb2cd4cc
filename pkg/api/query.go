package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/adfharrison1/go-odm/pkg/domain"
	"github.com/adfharrison1/go-odm/pkg/fields"
	"github.com/adfharrison1/go-odm/pkg/odm"
)

// Reserved query parameters of list endpoints. Every other parameter is an
// equality filter on the field of the same name.
const (
	paramLimit = "limit"
	paramSkip  = "skip"
	paramSort  = "sort"
)

// parseListQuery turns query parameters into a filter and find options.
// sort takes a comma separated list of fields, each optionally prefixed
// with '-' for descending order.
func parseListQuery(model *odm.Model, query url.Values) (map[string]interface{}, []odm.FindOption, error) {
	var opts []odm.FindOption
	filter := make(map[string]interface{})

	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		raw := values[0]
		switch key {
		case paramLimit, paramSkip:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n < 0 {
				return nil, nil, fmt.Errorf("%s must be a non-negative integer", key)
			}
			if key == paramLimit {
				opts = append(opts, odm.WithLimit(n))
			} else {
				opts = append(opts, odm.WithSkip(n))
			}
		case paramSort:
			var sort domain.D
			for _, name := range strings.Split(raw, ",") {
				name = strings.TrimSpace(name)
				order := 1
				if strings.HasPrefix(name, "-") {
					order = -1
					name = name[1:]
				}
				if name == "" {
					continue
				}
				sort = append(sort, domain.E{Key: name, Value: order})
			}
			if len(sort) > 0 {
				opts = append(opts, odm.WithSort(sort))
			}
		default:
			v, err := filterValue(model, key, raw)
			if err != nil {
				return nil, nil, err
			}
			filter[key] = v
		}
	}
	return filter, opts, nil
}

// filterValue parses a query parameter by the kind of the field it names.
func filterValue(model *odm.Model, key, raw string) (interface{}, error) {
	field, ok := model.Field(key)
	if !ok {
		return raw, nil
	}
	switch field.Kind() {
	case fields.KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		return n, nil
	case fields.KindFloat:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", key)
		}
		return x, nil
	case fields.KindBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean", key)
		}
		return b, nil
	}
	return raw, nil
}

package mongostore

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// redact hides the password of a connection string for logs and errors.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<unparseable uri>"
	}
	return u.Redacted()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// defaultIndexName derives the name the server gives an unnamed index.
func defaultIndexName(keys []domain.IndexKey) string {
	parts := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		order := k.Order
		if order == nil {
			order = 1
		}
		parts = append(parts, k.Field, fmt.Sprint(order))
	}
	return strings.Join(parts, "_")
}

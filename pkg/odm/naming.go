package odm

import (
	"regexp"
	"strings"
)

var (
	wordBoundary  = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerToUpper  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	hasUpperCases = regexp.MustCompile(`[A-Z]`)
)

// CollectionName converts a model name to its default collection name:
// UserDetails becomes user_details and HTTPServer becomes http_server.
// Names without capitals are only lowercased.
func CollectionName(model string) string {
	if !hasUpperCases.MatchString(model) {
		return strings.ToLower(model)
	}
	name := wordBoundary.ReplaceAllString(model, "${1}_${2}")
	return strings.ToLower(lowerToUpper.ReplaceAllString(name, "${1}_${2}"))
}

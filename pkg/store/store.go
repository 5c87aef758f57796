package store

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("document not found")

// likePatterns turns lowercase terms into LIKE patterns, escaping the
// pattern metacharacters so terms always match literally.
func likePatterns(terms []string) []string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	patterns := make([]string, 0, len(terms))
	for _, t := range terms {
		patterns = append(patterns, "%"+escaper.Replace(strings.ToLower(t))+"%")
	}
	return patterns
}

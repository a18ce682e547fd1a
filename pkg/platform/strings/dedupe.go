// Package strings holds small string helpers shared by config and handlers.
package strings

import (
	"strings"
)

// SplitList splits v on sep, trims each element and drops empties and
// repeats. First occurrence wins. An empty input yields nil.
//
//	SplitList(" k1:9092, k2:9092,k1:9092 ,", ",") // []string{"k1:9092", "k2:9092"}
func SplitList(v, sep string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return Dedupe(strings.Split(v, sep))
}

// Dedupe trims values and removes blanks and duplicates, preserving order.
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

package fileutil

import "sort"

// MapKeysSorted returns the keys of a string set in sorted order.
func MapKeysSorted(values map[string]bool) []string {
	out := make([]string, 0, len(values))
	for key := range values {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

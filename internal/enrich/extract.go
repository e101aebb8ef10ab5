package enrich

import (
	"strconv"
	"strings"
)

// stringAt walks a dot-separated path into a decoded JSON document. Path
// segments that parse as integers index into arrays.
func stringAt(doc map[string]any, path string) string {
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		switch typed := current.(type) {
		case map[string]any:
			current = typed[segment]
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(typed) {
				return ""
			}
			current = typed[index]
		default:
			return ""
		}
	}
	value, _ := current.(string)
	return value
}

// firstString tries each path in order and returns the first non-empty
// string. Providers move fields between schema versions; the ordered
// fallback keeps extraction working across them.
func firstString(doc map[string]any, paths ...string) string {
	for _, path := range paths {
		if value := strings.TrimSpace(stringAt(doc, path)); value != "" {
			return value
		}
	}
	return ""
}

// listAt resolves a path to a JSON array, or nil.
func listAt(doc map[string]any, path string) []any {
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		typed, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = typed[segment]
	}
	list, _ := current.([]any)
	return list
}

// firstList tries each path in order and returns the first non-empty array.
func firstList(doc map[string]any, paths ...string) []any {
	for _, path := range paths {
		if list := listAt(doc, path); len(list) > 0 {
			return list
		}
	}
	return nil
}

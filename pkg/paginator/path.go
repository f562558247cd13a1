package paginator

import "strings"

// Lookup follows a dotted path through nested JSON objects.
// An empty path returns v itself; a missing key returns nil.
func Lookup(v any, path string) any {
	if path == "" {
		return v
	}
	for _, key := range strings.Split(path, ".") {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		if v, ok = obj[key]; !ok {
			return nil
		}
	}
	return v
}

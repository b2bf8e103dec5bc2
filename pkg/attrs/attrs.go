// Package attrs inspects slog-style alternating key/value attribute lists.
package attrs

// ExtractString returns the string value paired with key in an alternating
// [key, value, key, value] list. Missing keys and non-string values yield "".
func ExtractString(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok || name != key {
			continue
		}
		if v, ok := kv[i+1].(string); ok {
			return v
		}
	}
	return ""
}

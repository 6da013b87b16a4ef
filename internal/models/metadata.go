package models

import "strconv"

// Metadata holds a document's decoded frontmatter mapping.
type Metadata map[string]interface{}

// String returns the value under key when it is a string.
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the value under key coerced to an int. YAML decoding
// produces int for integer scalars, but quoted numbers arrive as
// strings, so those are parsed too.
func (m Metadata) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

// StringList returns the value under key as a string slice, accepting
// both a YAML sequence and a single scalar.
func (m Metadata) StringList(key string) []string {
	switch v := m[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

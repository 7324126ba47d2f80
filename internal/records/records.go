// Package records defines the generic row representation shared between the
// parser and the staging loader.
package records

// Record is one parsed row, keyed by canonical column name. Values are raw
// strings as read from the source, or nil when the source field was empty.
type Record map[string]any

// String returns the value for key as a string. Nil and non-string values
// yield the empty string.
func (r Record) String(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

package job

import "strings"

// FieldMap is the extracted application data supplied by the ingestion
// pipeline, keyed by dotted "section.field_name" paths. Absent or empty
// values mean "skip this field", never an error.
type FieldMap map[string]string

// Get returns the value for a dotted key. Empty string means absent.
func (m FieldMap) Get(key string) string { return m[key] }

// Has reports whether the key is present with a non-empty value.
func (m FieldMap) Has(key string) bool { return m[key] != "" }

// Section returns all entries under the given section prefix, keyed by
// the bare field name.
func (m FieldMap) Section(section string) map[string]string {
	prefix := section + "."
	out := make(map[string]string)
	for k, v := range m {
		if rest, ok := strings.CutPrefix(k, prefix); ok && v != "" {
			out[rest] = v
		}
	}
	return out
}

// Clone returns a shallow copy. A nil map clones to nil.
func (m FieldMap) Clone() FieldMap {
	if m == nil {
		return nil
	}
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package store

import (
	"fmt"
	"sort"
	"strings"
)

// ExtractionResult maps field names to scalar values, to one level of nested
// field maps, or to lists such as line items. A nested value is addressed by
// the path "parent.child"; list entries are read-only.
type ExtractionResult map[string]any

// Clone returns a deep copy of r. Nested maps and lists are copied at every
// level. A nil result clones to nil.
func (r ExtractionResult) Clone() ExtractionResult {
	if r == nil {
		return nil
	}
	out := make(ExtractionResult, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, cv := range t {
			m[k] = cloneValue(cv)
		}
		return m
	case ExtractionResult:
		return map[string]any(t.Clone())
	case []any:
		l := make([]any, len(t))
		for i, cv := range t {
			l[i] = cloneValue(cv)
		}
		return l
	}
	return v
}

// Get returns the value at path.
func (r ExtractionResult) Get(path string) (any, bool) {
	parent, child, nested, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	v, ok := r[parent]
	if !nested || !ok {
		return v, ok
	}
	m, isMap := asMap(v)
	if !isMap {
		return nil, false
	}
	v, ok = m[child]
	return v, ok
}

// With returns a copy of r with path set to v. Fields not named by path are
// carried over untouched. A missing parent map is created.
func (r ExtractionResult) With(path string, v any) (ExtractionResult, error) {
	if !isScalar(v) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, path)
	}
	parent, child, nested, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	out := r.Clone()
	if out == nil {
		out = ExtractionResult{}
	}
	if !nested {
		if _, isMap := asMap(out[parent]); isMap {
			return nil, fmt.Errorf("%w: %s is a group of fields", ErrInvalidPath, path)
		}
		out[parent] = v
		return out, nil
	}
	cur, exists := out[parent]
	if !exists || cur == nil {
		out[parent] = map[string]any{child: v}
		return out, nil
	}
	m, isMap := asMap(cur)
	if !isMap {
		return nil, fmt.Errorf("%w: %s is not a group of fields", ErrInvalidPath, parent)
	}
	m[child] = v
	out[parent] = m
	return out, nil
}

// Without returns a copy of r with path removed. An emptied parent map is kept.
func (r ExtractionResult) Without(path string) ExtractionResult {
	parent, child, nested, err := splitPath(path)
	out := r.Clone()
	if err != nil || out == nil {
		return out
	}
	if !nested {
		delete(out, parent)
		return out
	}
	if m, ok := asMap(out[parent]); ok {
		delete(m, child)
		out[parent] = m
	}
	return out
}

// Field is one flattened path/value pair.
type Field struct {
	Path  string
	Value any
}

// Flatten lists every leaf sorted by path. List entries appear as
// "items[0]" or, for entries that are field maps, "items[0].child".
func (r ExtractionResult) Flatten() []Field {
	out := make([]Field, 0, len(r))
	for k, v := range r {
		out = flattenValue(out, k, v, 1)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func flattenValue(out []Field, path string, v any, depth int) []Field {
	if m, ok := asMap(v); ok && depth > 0 {
		for k, cv := range m {
			out = flattenValue(out, path+"."+k, cv, depth-1)
		}
		return out
	}
	if l, ok := v.([]any); ok {
		for i, cv := range l {
			out = flattenValue(out, fmt.Sprintf("%s[%d]", path, i), cv, 1)
		}
		return out
	}
	return append(out, Field{Path: path, Value: v})
}

func splitPath(path string) (parent, child string, nested bool, err error) {
	if strings.ContainsAny(path, "[]") {
		return "", "", false, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	parts := strings.Split(path, ".")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return parts[0], "", false, nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], true, nil
	default:
		return "", "", false, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case ExtractionResult:
		return map[string]any(m), true
	}
	return nil, false
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

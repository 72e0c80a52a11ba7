// Package tree reads and writes nested value trees built from map[string]any
// and []any, addressed by path segments. Numeric segments index into slices.
package tree

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

var errNilRoot = errors.New("tree: root map is nil")

// Get resolves segments inside root.
func Get(root map[string]any, segments []string) (any, bool) {
	if root == nil || len(segments) == 0 {
		return nil, false
	}
	current := any(root)
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, ok := index(segment)
			if !ok || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set writes value at segments, creating intermediate maps and slices as
// needed. Intermediate leaves that stand in the way are replaced.
func Set(root map[string]any, segments []string, value any) error {
	if root == nil {
		return errNilRoot
	}
	if len(segments) == 0 {
		return errors.New("tree: path is empty")
	}
	if _, ok := index(segments[0]); ok {
		return fmt.Errorf("tree: root segment %q cannot be an index", segments[0])
	}
	_, err := setIn(root, segments, value)
	return err
}

func setIn(node any, segments []string, value any) (any, error) {
	head := segments[0]
	last := len(segments) == 1

	if idx, ok := index(head); ok {
		list, _ := node.([]any)
		if len(list) <= idx {
			list = append(list, make([]any, idx+1-len(list))...)
		}
		if last {
			list[idx] = value
			return list, nil
		}
		child, err := setIn(list[idx], segments[1:], value)
		if err != nil {
			return nil, err
		}
		list[idx] = child
		return list, nil
	}

	m, ok := node.(map[string]any)
	if !ok || m == nil {
		m = make(map[string]any)
	}
	if last {
		m[head] = value
		return m, nil
	}
	child, err := setIn(m[head], segments[1:], value)
	if err != nil {
		return nil, err
	}
	m[head] = child
	return m, nil
}

// Delete removes the key addressed by segments. Slice elements cannot be
// deleted individually; callers replace the whole slice instead.
func Delete(root map[string]any, segments []string) bool {
	if root == nil || len(segments) == 0 {
		return false
	}
	parent := any(root)
	if len(segments) > 1 {
		var ok bool
		parent, ok = Get(root, segments[:len(segments)-1])
		if !ok {
			return false
		}
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return false
	}
	key := segments[len(segments)-1]
	if _, exists := m[key]; !exists {
		return false
	}
	delete(m, key)
	return true
}

// Clone deep copies value, normalising any string-keyed map into
// map[string]any and any slice or array into []any so the result can be
// traversed with Get and Set.
func Clone(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = Clone(v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = Clone(v)
		}
		return out
	case string, bool, int, int64, float64:
		return typed
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Clone(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return value
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Clone(rv.Index(i).Interface())
		}
		return out
	default:
		return value
	}
}

// CloneMap deep copies a map tree. A nil input yields an empty map.
func CloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return make(map[string]any)
	}
	out, _ := Clone(src).(map[string]any)
	return out
}

// Leaf is a flattened tree entry.
type Leaf struct {
	Segments []string
	Value    any
}

// Leaves flattens value into its leaf entries, sorted by path. Containers
// are traversed; every other value is a leaf. A scalar value yields a single
// leaf with no segments.
func Leaves(value any) []Leaf {
	var out []Leaf
	collect(Clone(value), nil, &out)
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i].Segments, out[j].Segments)
	})
	return out
}

func collect(value any, prefix []string, out *[]Leaf) {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			collect(child, appendSegment(prefix, key), out)
		}
	case []any:
		for i, child := range typed {
			collect(child, appendSegment(prefix, strconv.Itoa(i)), out)
		}
	default:
		*out = append(*out, Leaf{Segments: prefix, Value: typed})
	}
}

func appendSegment(prefix []string, segment string) []string {
	out := make([]string, 0, len(prefix)+1)
	out = append(out, prefix...)
	return append(out, segment)
}

func less(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		ai, aok := index(a[i])
		bi, bok := index(b[i])
		if aok && bok {
			return ai < bi
		}
		return a[i] < b[i]
	}
	return len(a) < len(b)
}

func index(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	return idx, true
}

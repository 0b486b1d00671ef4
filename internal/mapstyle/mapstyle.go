// Package mapstyle reads and writes the textual map format used by the diff
// history files:
//
//	map:{
//	    ; diffDate = 2026/10/18 12:00:00
//	    ; tableCount = map:{
//	        ; next = 3
//	        ; previous = 2
//	    }
//	    ; addedTableList = list:{
//	        ; MEMBER
//	    }
//	}
//
// Keys keep their insertion order on read. Values are strings, nested maps
// or lists.
package mapstyle

import "fmt"

const (
	mapPrefix  = "map:{"
	listPrefix = "list:{"
)

// Map is an insertion-ordered string-keyed map. Values are string, *Map or
// []any.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Put stores value under key. An existing key keeps its position.
func (m *Map) Put(key string, value any) {
	switch value.(type) {
	case string, *Map, []any:
	default:
		panic(fmt.Sprintf("mapstyle: unsupported value type %T for key %q", value, key))
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the raw value under key.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// String returns the string value under key, or "" when absent or not a
// string.
func (m *Map) String(key string) string {
	s, _ := m.values[key].(string)
	return s
}

// Map returns the nested map under key, or nil.
func (m *Map) Map(key string) *Map {
	sub, _ := m.values[key].(*Map)
	return sub
}

// List returns the list under key, or nil.
func (m *Map) List(key string) []any {
	l, _ := m.values[key].([]any)
	return l
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Delete removes key.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

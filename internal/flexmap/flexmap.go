// Package flexmap provides insertion-ordered maps whose keys are compared
// through a normalization function. Database identifiers arrive in whatever
// case (and sometimes underscore style) the vendor prefers, so every lookup
// of a table, column or classification goes through one of these maps.
package flexmap

import (
	"iter"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// KeyFunc normalizes a key before it is stored or looked up.
type KeyFunc func(string) string

// CaseInsensitive folds the key so that "Member" and "MEMBER" collide.
func CaseInsensitive(key string) string {
	// cases.Caser keeps state and is not safe for concurrent use.
	return cases.Fold().String(key)
}

// Flexible ignores case and underscores: MEMBER_ID, memberId and MemberID
// are the same key.
func Flexible(key string) string {
	return strings.ReplaceAll(CaseInsensitive(key), "_", "")
}

type entry[V any] struct {
	key   string
	value V
}

// Map is an insertion-ordered map. Replacing an existing key keeps its
// position and its first-registered spelling.
type Map[V any] struct {
	norm    KeyFunc
	entries []entry[V]
	index   map[string]int
}

// New returns an empty map normalizing keys with norm. A nil norm compares
// keys exactly.
func New[V any](norm KeyFunc) *Map[V] {
	if norm == nil {
		norm = func(s string) string { return s }
	}
	return &Map[V]{norm: norm, index: make(map[string]int)}
}

// NewCaseInsensitive returns a map using CaseInsensitive keys.
func NewCaseInsensitive[V any]() *Map[V] { return New[V](CaseInsensitive) }

// NewFlexible returns a map using Flexible keys.
func NewFlexible[V any]() *Map[V] { return New[V](Flexible) }

// Put stores value under key, replacing any existing value.
func (m *Map[V]) Put(key string, value V) {
	nk := m.norm(key)
	if i, ok := m.index[nk]; ok {
		m.entries[i].value = value
		return
	}
	m.index[nk] = len(m.entries)
	m.entries = append(m.entries, entry[V]{key: key, value: value})
}

// PutIfAbsent stores value only when key is not present yet and reports
// whether it did.
func (m *Map[V]) PutIfAbsent(key string, value V) bool {
	if _, ok := m.index[m.norm(key)]; ok {
		return false
	}
	m.Put(key, value)
	return true
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key string) (V, bool) {
	if i, ok := m.index[m.norm(key)]; ok {
		return m.entries[i].value, true
	}
	var zero V
	return zero, false
}

// Has reports whether key is present.
func (m *Map[V]) Has(key string) bool {
	_, ok := m.index[m.norm(key)]
	return ok
}

// Delete removes key, keeping the order of the remaining entries.
func (m *Map[V]) Delete(key string) bool {
	nk := m.norm(key)
	i, ok := m.index[nk]
	if !ok {
		return false
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	delete(m.index, nk)
	for j := i; j < len(m.entries); j++ {
		m.index[m.norm(m.entries[j].key)] = j
	}
	return true
}

// Len returns the number of entries.
func (m *Map[V]) Len() int { return len(m.entries) }

// Keys returns the keys in insertion order, spelled as first registered.
func (m *Map[V]) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

// Values returns the values in insertion order.
func (m *Map[V]) Values() []V {
	values := make([]V, len(m.entries))
	for i, e := range m.entries {
		values[i] = e.value
	}
	return values
}

// All iterates over the entries in insertion order.
func (m *Map[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, e := range m.entries {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// SyncMap is a Map guarded by a read-write lock. Lookups may run from many
// goroutines while registration happens rarely.
type SyncMap[V any] struct {
	mu sync.RWMutex
	m  *Map[V]
}

// NewSync returns an empty concurrent map normalizing keys with norm.
func NewSync[V any](norm KeyFunc) *SyncMap[V] {
	return &SyncMap[V]{m: New[V](norm)}
}

func (s *SyncMap[V]) Put(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Put(key, value)
}

func (s *SyncMap[V]) PutIfAbsent(key string, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.PutIfAbsent(key, value)
}

// Compute returns the value under key, creating it with create when absent.
// The whole operation holds the write lock.
func (s *SyncMap[V]) Compute(key string, create func() V) V {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m.Get(key); ok {
		return v
	}
	v := create()
	s.m.Put(key, v)
	return v
}

func (s *SyncMap[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.Get(key)
}

func (s *SyncMap[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.Len()
}

func (s *SyncMap[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.Keys()
}

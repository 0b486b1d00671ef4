package schemadiff

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"

	"schemaflow/internal/mapstyle"
)

// History is a list of diffs, newest first.
type History struct {
	Diffs []*SchemaDiff
}

// NewHistory reads a history map keyed by diff date. Entries are sorted
// descending by key whatever their order in m, and only the first one is
// marked Latest.
func NewHistory(m *mapstyle.Map) (*History, error) {
	keys := m.Keys()
	slices.SortFunc(keys, func(a, b string) int { return cmp.Compare(b, a) })
	h := &History{}
	for _, key := range keys {
		d, err := decodeEntry(m, key)
		if err != nil {
			return nil, err
		}
		h.Diffs = append(h.Diffs, d)
	}
	if len(h.Diffs) > 0 {
		h.Diffs[0].Latest = true
	}
	return h, nil
}

func decodeEntry(m *mapstyle.Map, key string) (*SchemaDiff, error) {
	dm := m.Map(key)
	if dm == nil {
		return nil, fmt.Errorf("history entry %s is not a map", key)
	}
	d, err := Deserialize(dm)
	if err != nil {
		return nil, fmt.Errorf("history entry %s: %w", key, err)
	}
	return d, nil
}

// checkEntries decodes every entry of the diff map read from path so that a
// broken entry is reported against its own file.
func checkEntries(path string, m *mapstyle.Map) error {
	for _, key := range m.Keys() {
		if _, err := decodeEntry(m, key); err != nil {
			return &HistoryReadError{Path: path, Err: err}
		}
	}
	return nil
}

// Latest returns the newest diff, or nil for an empty history.
func (h *History) Latest() *SchemaDiff {
	if len(h.Diffs) == 0 {
		return nil
	}
	return h.Diffs[0]
}

// Len returns the number of diffs.
func (h *History) Len() int { return len(h.Diffs) }

// sortDescending returns a copy of m with its keys in descending order.
func sortDescending(m *mapstyle.Map) *mapstyle.Map {
	keys := m.Keys()
	slices.SortStableFunc(keys, func(a, b string) int { return cmp.Compare(b, a) })
	sorted := mapstyle.NewMap()
	for _, k := range keys {
		v, _ := m.Get(k)
		sorted.Put(k, v)
	}
	return sorted
}

// HistoryFile is the monolithic history file holding every diff of a
// project in one map. It assumes a single writer.
type HistoryFile struct {
	FS   afero.Fs
	Path string
	// Limit is the maximum number of diffs kept, 0 for unlimited.
	Limit int
}

// Read returns the history map. A missing file is an empty history.
func (f *HistoryFile) Read() (*mapstyle.Map, error) {
	return readDiffMap(f.FS, f.Path)
}

// Append puts d in front of the existing history, drops the oldest entries
// beyond Limit and rewrites the file.
func (f *HistoryFile) Append(d *SchemaDiff) error {
	existing, err := f.Read()
	if err != nil {
		return err
	}
	existing = sortDescending(existing)
	merged := mapstyle.NewMap()
	merged.Put(d.DiffDate, Serialize(d))
	for _, key := range existing.Keys() {
		if f.Limit > 0 && merged.Len() >= f.Limit {
			break
		}
		if key == d.DiffDate {
			continue
		}
		v, _ := existing.Get(key)
		merged.Put(key, v)
	}
	return writeDiffMap(f.FS, f.Path, merged)
}

// Load reads the file as a History.
func (f *HistoryFile) Load() (*History, error) {
	m, err := f.Read()
	if err != nil {
		return nil, err
	}
	h, err := NewHistory(m)
	if err != nil {
		return nil, &HistoryReadError{Path: f.Path, Err: err}
	}
	return h, nil
}

func readDiffMap(fsys afero.Fs, path string) (*mapstyle.Map, error) {
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return mapstyle.NewMap(), nil
	}
	if err != nil {
		return nil, &HistoryReadError{Path: path, Err: err}
	}
	m, err := mapstyle.Unmarshal(string(data))
	if err != nil {
		return nil, &HistoryReadError{Path: path, Err: err}
	}
	return m, nil
}

func writeDiffMap(fsys afero.Fs, path string, m *mapstyle.Map) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(fsys, path, []byte(mapstyle.Marshal(m)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

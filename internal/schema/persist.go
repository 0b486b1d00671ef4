package schema

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// SaveSnapshot writes s as YAML to path, creating parent directories.
func SaveSnapshot(fs afero.Fs, path string, s *Snapshot) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot. A missing file
// returns an error matching fs.ErrNotExist.
func LoadSnapshot(fs afero.Fs, path string) (*Snapshot, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	var raw Snapshot
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	meta := Meta{ProductName: raw.ProductName, SchemaName: raw.SchemaName, ExtractedAt: raw.ExtractedAt}
	return NewSnapshot(meta, raw.Tables, raw.Sequences, raw.Procedures), nil
}

// Fingerprint hashes the structure of s, ignoring when and where it was
// extracted. Equal fingerprints mean there is nothing to diff.
func (s *Snapshot) Fingerprint() string {
	body := struct {
		Tables     []*Table     `yaml:"tables"`
		Sequences  []*Sequence  `yaml:"sequences,omitempty"`
		Procedures []*Procedure `yaml:"procedures,omitempty"`
	}{s.Tables, s.Sequences, s.Procedures}
	data, err := yaml.Marshal(body)
	if err != nil {
		// plain structs of strings, ints and bools always encode
		panic(err)
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

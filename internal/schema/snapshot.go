package schema

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"schemaflow/internal/flexmap"
)

// Snapshot is the structure of one database at one instant. It is built once
// by NewSnapshot and only read afterwards; a later extraction always yields a
// fresh Snapshot.
type Snapshot struct {
	ProductName string       `yaml:"productName,omitempty"`
	SchemaName  string       `yaml:"schemaName,omitempty"`
	ExtractedAt time.Time    `yaml:"extractedAt"`
	Tables      []*Table     `yaml:"tables"`
	Sequences   []*Sequence  `yaml:"sequences,omitempty"`
	Procedures  []*Procedure `yaml:"procedures,omitempty"`

	tableIndex *flexmap.Map[*Table]
}

// Meta describes where a snapshot came from.
type Meta struct {
	ProductName string
	SchemaName  string
	ExtractedAt time.Time
}

// NewSnapshot takes ownership of the given objects and normalizes them:
// unique keys duplicating the primary key are dropped, foreign keys are put in
// their immobilized order and tables, unique keys and sequences are sorted by
// name.
func NewSnapshot(meta Meta, tables []*Table, sequences []*Sequence, procedures []*Procedure) *Snapshot {
	s := &Snapshot{
		ProductName: meta.ProductName,
		SchemaName:  meta.SchemaName,
		ExtractedAt: meta.ExtractedAt,
		Tables:      slices.Clone(tables),
		Sequences:   slices.Clone(sequences),
		Procedures:  slices.Clone(procedures),
	}

	for _, t := range s.Tables {
		t.UniqueKeys = RemoveRedundantUniqueKeys(t.PrimaryKeyColumns, t.UniqueKeys)
		slices.SortStableFunc(t.UniqueKeys, func(a, b *UniqueKey) int {
			return compareName(a.Name, b.Name)
		})
		t.ForeignKeys = ImmobilizeForeignKeys(t.ForeignKeys)
		t.buildIndex()
	}
	slices.SortStableFunc(s.Tables, func(a, b *Table) int { return compareName(a.DBName, b.DBName) })
	slices.SortStableFunc(s.Sequences, func(a, b *Sequence) int { return compareName(a.Name, b.Name) })
	slices.SortStableFunc(s.Procedures, func(a, b *Procedure) int { return compareName(a.Name, b.Name) })

	s.tableIndex = flexmap.NewCaseInsensitive[*Table]()
	for _, t := range s.Tables {
		s.tableIndex.PutIfAbsent(t.DBName, t)
	}
	return s
}

// Empty returns a snapshot without any object, the previous side of a first
// diff.
func Empty() *Snapshot {
	return NewSnapshot(Meta{}, nil, nil, nil)
}

// Table looks up a table by name, case-insensitively.
func (s *Snapshot) Table(name string) (*Table, bool) {
	if s.tableIndex == nil {
		for _, t := range s.Tables {
			if strings.EqualFold(t.DBName, name) {
				return t, true
			}
		}
		return nil, false
	}
	return s.tableIndex.Get(name)
}

// TableNames returns the table names in snapshot order.
func (s *Snapshot) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.DBName
	}
	return names
}

// Sequence looks up a sequence by name, case-insensitively.
func (s *Snapshot) Sequence(name string) (*Sequence, bool) {
	for _, seq := range s.Sequences {
		if strings.EqualFold(seq.Name, name) {
			return seq, true
		}
	}
	return nil, false
}

// compareName orders identifiers case-insensitively, falling back to the
// exact spelling for a total order.
func compareName(a, b string) int {
	if c := cmp.Compare(strings.ToUpper(a), strings.ToUpper(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

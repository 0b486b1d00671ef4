// Package schemadiff computes the structural difference between two schema
// snapshots and keeps the history of those differences in map style files.
package schemadiff

import (
	"strconv"
	"strings"
	"time"

	"schemaflow/internal/schema"
)

// DateLayout is the fixed width diff date format. Lexical order of formatted
// dates equals chronological order.
const DateLayout = "2006/01/02 15:04:05"

type DiffType string

const (
	DiffAdd    DiffType = "ADD"
	DiffChange DiffType = "CHANGE"
	DiffDelete DiffType = "DELETE"
)

// NextPrevious holds both sides of one changed attribute.
type NextPrevious struct {
	Next     string
	Previous string
}

// SchemaDiff is the difference between two snapshots. Once written to
// history it is never modified.
type SchemaDiff struct {
	DiffDate      string
	TableCount    *NextPrevious
	TableDiffs    []*TableDiff
	SequenceDiffs []*SequenceDiff

	// Latest marks the newest entry of a loaded history. It is not persisted.
	Latest bool
}

// Time parses DiffDate.
func (d *SchemaDiff) Time() (time.Time, error) {
	return time.ParseInLocation(DateLayout, d.DiffDate, time.Local)
}

// IsEmpty reports whether no table or sequence changed.
func (d *SchemaDiff) IsEmpty() bool {
	return len(d.TableDiffs) == 0 && len(d.SequenceDiffs) == 0
}

// TableDiffsOf returns the table diffs of the given type in diff order.
func (d *SchemaDiff) TableDiffsOf(t DiffType) []*TableDiff {
	var out []*TableDiff
	for _, td := range d.TableDiffs {
		if td.DiffType == t {
			out = append(out, td)
		}
	}
	return out
}

type TableDiff struct {
	TableName       string
	DiffType        DiffType
	ObjectType      *NextPrevious
	Comment         *NextPrevious
	ColumnDiffs     []*ColumnDiff
	PrimaryKeyDiff  *KeyDiff
	UniqueKeyDiffs  []*KeyDiff
	ForeignKeyDiffs []*KeyDiff
}

func (td *TableDiff) hasDiff() bool {
	return td.ObjectType != nil || td.Comment != nil || len(td.ColumnDiffs) > 0 ||
		td.PrimaryKeyDiff != nil || len(td.UniqueKeyDiffs) > 0 || len(td.ForeignKeyDiffs) > 0
}

// ColumnDiff stores only the attributes that differ.
type ColumnDiff struct {
	ColumnName     string
	DiffType       DiffType
	DBType         *NextPrevious
	Size           *NextPrevious
	Nullable       *NextPrevious
	DefaultValue   *NextPrevious
	Comment        *NextPrevious
	AutoIncrement  *NextPrevious
	Classification *NextPrevious
}

// KeyDiff is a primary, unique or foreign key difference.
type KeyDiff struct {
	ConstraintName string
	DiffType       DiffType
	Name           *NextPrevious
	Columns        *NextPrevious
	ForeignTable   *NextPrevious
	ForeignColumns *NextPrevious
}

type SequenceDiff struct {
	SequenceName  string
	DiffType      DiffType
	MinimumValue  *NextPrevious
	MaximumValue  *NextPrevious
	IncrementSize *NextPrevious
}

// attribute binds one compared attribute to its persisted key and to the
// diff field holding it.
type attribute[S, D any] struct {
	key   string
	value func(S) string
	field func(D) **NextPrevious
}

var tableAttributes = []attribute[*schema.Table, *TableDiff]{
	{"objectType", objectType, func(d *TableDiff) **NextPrevious { return &d.ObjectType }},
	{"comment", func(t *schema.Table) string { return t.Comment }, func(d *TableDiff) **NextPrevious { return &d.Comment }},
}

var columnAttributes = []attribute[*schema.Column, *ColumnDiff]{
	{"dbType", func(c *schema.Column) string { return c.DBType }, func(d *ColumnDiff) **NextPrevious { return &d.DBType }},
	{"columnSize", columnSize, func(d *ColumnDiff) **NextPrevious { return &d.Size }},
	{"notNull", func(c *schema.Column) string { return strconv.FormatBool(!c.Nullable) }, func(d *ColumnDiff) **NextPrevious { return &d.Nullable }},
	{"defaultValue", func(c *schema.Column) string { return c.DefaultValue }, func(d *ColumnDiff) **NextPrevious { return &d.DefaultValue }},
	{"comment", func(c *schema.Column) string { return c.Comment }, func(d *ColumnDiff) **NextPrevious { return &d.Comment }},
	{"autoIncrement", func(c *schema.Column) string { return strconv.FormatBool(c.AutoIncrement) }, func(d *ColumnDiff) **NextPrevious { return &d.AutoIncrement }},
	{"classification", func(c *schema.Column) string { return c.ClassificationName }, func(d *ColumnDiff) **NextPrevious { return &d.Classification }},
}

var keyAttributes = []attribute[*keyInfo, *KeyDiff]{
	{"name", func(k *keyInfo) string { return k.name }, func(d *KeyDiff) **NextPrevious { return &d.Name }},
	{"columns", func(k *keyInfo) string { return k.columns }, func(d *KeyDiff) **NextPrevious { return &d.Columns }},
	{"foreignTable", func(k *keyInfo) string { return k.foreignTable }, func(d *KeyDiff) **NextPrevious { return &d.ForeignTable }},
	{"foreignColumns", func(k *keyInfo) string { return k.foreignColumns }, func(d *KeyDiff) **NextPrevious { return &d.ForeignColumns }},
}

var sequenceAttributes = []attribute[*schema.Sequence, *SequenceDiff]{
	{"minimumValue", func(s *schema.Sequence) string { return s.MinimumValue }, func(d *SequenceDiff) **NextPrevious { return &d.MinimumValue }},
	{"maximumValue", func(s *schema.Sequence) string { return s.MaximumValue }, func(d *SequenceDiff) **NextPrevious { return &d.MaximumValue }},
	{"incrementSize", func(s *schema.Sequence) string { return s.IncrementSize }, func(d *SequenceDiff) **NextPrevious { return &d.IncrementSize }},
}

// compareAttributes fills every attribute of d whose value differs between
// next and previous. A nil side contributes empty values. It reports whether
// anything was set.
func compareAttributes[T, D any](attrs []attribute[*T, D], d D, next, previous *T) bool {
	changed := false
	for _, a := range attrs {
		var n, p string
		if next != nil {
			n = a.value(next)
		}
		if previous != nil {
			p = a.value(previous)
		}
		if n != p {
			*a.field(d) = &NextPrevious{Next: n, Previous: p}
			changed = true
		}
	}
	return changed
}

func objectType(t *schema.Table) string {
	if t.IsView {
		return "VIEW"
	}
	return "TABLE"
}

func columnSize(c *schema.Column) string {
	switch {
	case c.Size == 0 && c.DecimalDigits == 0:
		return ""
	case c.DecimalDigits == 0:
		return strconv.Itoa(c.Size)
	default:
		return strconv.Itoa(c.Size) + ", " + strconv.Itoa(c.DecimalDigits)
	}
}

// keyInfo is the comparable form of a primary, unique or foreign key.
type keyInfo struct {
	name           string
	columns        string
	foreignTable   string
	foreignColumns string
}

// signature identifies a key by its columns, for matching constraints whose
// names are generated by the database.
func (k *keyInfo) signature() string {
	return strings.ToUpper(k.columns + "|" + k.foreignTable + "|" + k.foreignColumns)
}

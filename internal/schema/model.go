package schema

import (
	"strings"

	"schemaflow/internal/flexmap"
)

type Table struct {
	DBName            string        `yaml:"dbName"`
	SQLName           string        `yaml:"sqlName,omitempty"`
	Schema            string        `yaml:"schema,omitempty"`
	Comment           string        `yaml:"comment,omitempty"`
	IsView            bool          `yaml:"isView,omitempty"`
	Columns           []*Column     `yaml:"columns"`
	PrimaryKeyName    string        `yaml:"primaryKeyName,omitempty"`
	PrimaryKeyColumns []string      `yaml:"primaryKeyColumns,omitempty"`
	UniqueKeys        []*UniqueKey  `yaml:"uniqueKeys,omitempty"`
	ForeignKeys       []*ForeignKey `yaml:"foreignKeys,omitempty"`

	columnIndex *flexmap.Map[*Column]
}

type Column struct {
	Name               string `yaml:"name"`
	DBType             string `yaml:"dbType"`
	LogicalType        string `yaml:"logicalType,omitempty"`
	Size               int    `yaml:"size,omitempty"`
	DecimalDigits      int    `yaml:"decimalDigits,omitempty"`
	Nullable           bool   `yaml:"nullable"`
	DefaultValue       string `yaml:"defaultValue,omitempty"`
	Comment            string `yaml:"comment,omitempty"`
	AutoIncrement      bool   `yaml:"autoIncrement,omitempty"`
	ClassificationName string `yaml:"classification,omitempty"`
}

type UniqueKey struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

type ForeignKey struct {
	Name           string   `yaml:"name"`
	LocalColumns   []string `yaml:"localColumns"`
	ForeignColumns []string `yaml:"foreignColumns"`
	ForeignTable   string   `yaml:"foreignTable"`
}

// IsSimple reports whether the key has exactly one column pair.
func (fk *ForeignKey) IsSimple() bool {
	return len(fk.LocalColumns) == 1 && len(fk.ForeignColumns) == 1
}

type Sequence struct {
	Name          string `yaml:"name"`
	MinimumValue  string `yaml:"minimumValue,omitempty"`
	MaximumValue  string `yaml:"maximumValue,omitempty"`
	IncrementSize string `yaml:"incrementSize,omitempty"`
}

type Procedure struct {
	Name string `yaml:"name"`
	Type string `yaml:"type,omitempty"`
}

// Column returns the column with the given name, compared case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	if t.columnIndex == nil {
		t.buildIndex()
	}
	return t.columnIndex.Get(name)
}

func (t *Table) buildIndex() {
	idx := flexmap.NewCaseInsensitive[*Column]()
	for _, c := range t.Columns {
		idx.PutIfAbsent(c.Name, c)
	}
	t.columnIndex = idx
}

// IsPrimaryKey reports whether column is part of the primary key.
func (t *Table) IsPrimaryKey(column string) bool {
	return containsFold(t.PrimaryKeyColumns, column)
}

// HasSinglePrimaryKey reports a non-compound primary key.
func (t *Table) HasSinglePrimaryKey() bool {
	return len(t.PrimaryKeyColumns) == 1
}

// IsUniqueColumn reports whether column alone forms a unique or primary key.
func (t *Table) IsUniqueColumn(column string) bool {
	if t.HasSinglePrimaryKey() && strings.EqualFold(t.PrimaryKeyColumns[0], column) {
		return true
	}
	for _, uk := range t.UniqueKeys {
		if len(uk.Columns) == 1 && strings.EqualFold(uk.Columns[0], column) {
			return true
		}
	}
	return false
}

// HasAutoIncrement reports whether any column is generated by the database.
func (t *Table) HasAutoIncrement() bool {
	for _, c := range t.Columns {
		if c.AutoIncrement {
			return true
		}
	}
	return false
}

// ReferencedTables returns the distinct foreign tables of t, excluding
// self references, in key order.
func (t *Table) ReferencedTables() []string {
	var refs []string
	for _, fk := range t.ForeignKeys {
		if strings.EqualFold(fk.ForeignTable, t.DBName) || containsFold(refs, fk.ForeignTable) {
			continue
		}
		refs = append(refs, fk.ForeignTable)
	}
	return refs
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

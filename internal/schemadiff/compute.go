package schemadiff

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"schemaflow/internal/flexmap"
	"schemaflow/internal/schema"
)

type options struct {
	clock func() time.Time
}

// Option configures Compute.
type Option func(*options)

// WithClock replaces time.Now as the source of the diff date.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// Compute returns the difference from previous to next. Tables and columns are
// matched by name case-insensitively. Added tables come first, then changed
// ones, then deleted ones; a table without any difference has no entry.
func Compute(previous, next *schema.Snapshot, opts ...Option) *SchemaDiff {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if previous == nil {
		previous = schema.Empty()
	}
	if next == nil {
		next = schema.Empty()
	}

	d := &SchemaDiff{
		DiffDate: o.clock().Truncate(time.Second).Format(DateLayout),
		TableCount: &NextPrevious{
			Next:     strconv.Itoa(len(next.Tables)),
			Previous: strconv.Itoa(len(previous.Tables)),
		},
	}

	var changed, deleted []*TableDiff
	for _, nt := range next.Tables {
		pt, ok := previous.Table(nt.DBName)
		if !ok {
			d.TableDiffs = append(d.TableDiffs, diffTable(DiffAdd, nt, nil))
			continue
		}
		if td := diffTable(DiffChange, nt, pt); td.hasDiff() {
			changed = append(changed, td)
		}
	}
	for _, pt := range previous.Tables {
		if _, ok := next.Table(pt.DBName); !ok {
			deleted = append(deleted, diffTable(DiffDelete, nil, pt))
		}
	}
	d.TableDiffs = append(append(d.TableDiffs, changed...), deleted...)
	d.SequenceDiffs = diffSequences(next.Sequences, previous.Sequences)
	return d
}

func diffTable(t DiffType, next, previous *schema.Table) *TableDiff {
	td := &TableDiff{DiffType: t}
	if next != nil {
		td.TableName = next.DBName
	} else {
		td.TableName = previous.DBName
	}
	if t == DiffDelete {
		// a deleted table only records what it was
		compareAttributes(tableAttributes[:1], td, next, previous)
		return td
	}
	compareAttributes(tableAttributes, td, next, previous)
	td.ColumnDiffs = diffColumns(next, previous)
	td.PrimaryKeyDiff = diffPrimaryKey(next, previous)
	td.UniqueKeyDiffs = diffKeys(uniqueKeyInfos(next), uniqueKeyInfos(previous))
	td.ForeignKeyDiffs = diffKeys(foreignKeyInfos(next), foreignKeyInfos(previous))
	return td
}

func diffColumns(next, previous *schema.Table) []*ColumnDiff {
	var added, changed, deleted []*ColumnDiff
	var nextColumns []*schema.Column
	if next != nil {
		nextColumns = next.Columns
	}
	for _, nc := range nextColumns {
		var pc *schema.Column
		if previous != nil {
			pc, _ = previous.Column(nc.Name)
		}
		if pc == nil {
			cd := &ColumnDiff{ColumnName: nc.Name, DiffType: DiffAdd}
			compareAttributes(columnAttributes, cd, nc, nil)
			added = append(added, cd)
			continue
		}
		cd := &ColumnDiff{ColumnName: nc.Name, DiffType: DiffChange}
		if compareAttributes(columnAttributes, cd, nc, pc) {
			changed = append(changed, cd)
		}
	}
	if previous != nil {
		for _, pc := range previous.Columns {
			if next != nil {
				if _, ok := next.Column(pc.Name); ok {
					continue
				}
			}
			deleted = append(deleted, &ColumnDiff{ColumnName: pc.Name, DiffType: DiffDelete,
				DBType: &NextPrevious{Previous: pc.DBType}})
		}
	}
	return append(append(added, changed...), deleted...)
}

func diffPrimaryKey(next, previous *schema.Table) *KeyDiff {
	n, p := primaryKeyInfo(next), primaryKeyInfo(previous)
	switch {
	case n == nil && p == nil:
		return nil
	case p == nil:
		kd := &KeyDiff{ConstraintName: n.name, DiffType: DiffAdd}
		compareAttributes(keyAttributes, kd, n, nil)
		return kd
	case n == nil:
		kd := &KeyDiff{ConstraintName: p.name, DiffType: DiffDelete}
		compareAttributes(keyAttributes, kd, nil, p)
		return kd
	}
	kd := &KeyDiff{ConstraintName: n.name, DiffType: DiffChange}
	if !compareAttributes(keyAttributes, kd, n, p) {
		return nil
	}
	return kd
}

// diffKeys matches constraints by name first and then, for the remaining
// ones, by column signature so that regenerated system names do not show up
// as a drop and an add. Diffs follow the order of the given lists.
func diffKeys(next, previous []*keyInfo) []*KeyDiff {
	byName := flexmap.NewCaseInsensitive[*keyInfo]()
	for _, p := range previous {
		if p.name != "" {
			byName.PutIfAbsent(p.name, p)
		}
	}
	matched := make(map[*keyInfo]*keyInfo, len(next))
	used := make(map[*keyInfo]bool, len(previous))
	for _, n := range next {
		if p, ok := byName.Get(n.name); ok && n.name != "" && !used[p] {
			matched[n], used[p] = p, true
		}
	}
	for _, n := range next {
		if matched[n] != nil {
			continue
		}
		for _, p := range previous {
			if !used[p] && p.signature() == n.signature() {
				matched[n], used[p] = p, true
				break
			}
		}
	}

	var added, changed, deleted []*KeyDiff
	for _, n := range next {
		p := matched[n]
		if p == nil {
			kd := &KeyDiff{ConstraintName: n.name, DiffType: DiffAdd}
			compareAttributes(keyAttributes, kd, n, nil)
			added = append(added, kd)
			continue
		}
		renamed := *p
		renamed.name = n.name
		kd := &KeyDiff{ConstraintName: n.name, DiffType: DiffChange}
		if compareAttributes(keyAttributes, kd, n, &renamed) {
			changed = append(changed, kd)
		}
	}
	for _, p := range previous {
		if used[p] {
			continue
		}
		kd := &KeyDiff{ConstraintName: p.name, DiffType: DiffDelete}
		compareAttributes(keyAttributes, kd, nil, p)
		deleted = append(deleted, kd)
	}
	return append(append(added, changed...), deleted...)
}

func primaryKeyInfo(t *schema.Table) *keyInfo {
	if t == nil || len(t.PrimaryKeyColumns) == 0 {
		return nil
	}
	return &keyInfo{name: t.PrimaryKeyName, columns: schema.JoinColumns(t.PrimaryKeyColumns)}
}

func uniqueKeyInfos(t *schema.Table) []*keyInfo {
	if t == nil {
		return nil
	}
	// snapshots already dropped keys duplicating the primary key; loaded or
	// hand-built tables may not have
	uks := schema.RemoveRedundantUniqueKeys(t.PrimaryKeyColumns, t.UniqueKeys)
	infos := make([]*keyInfo, len(uks))
	for i, uk := range uks {
		infos[i] = &keyInfo{name: uk.Name, columns: schema.JoinColumns(sortedUpper(uk.Columns))}
	}
	return infos
}

func foreignKeyInfos(t *schema.Table) []*keyInfo {
	if t == nil {
		return nil
	}
	fks := schema.ImmobilizeForeignKeys(t.ForeignKeys)
	infos := make([]*keyInfo, len(fks))
	for i, fk := range fks {
		infos[i] = &keyInfo{
			name:           fk.Name,
			columns:        schema.JoinColumns(fk.LocalColumns),
			foreignTable:   fk.ForeignTable,
			foreignColumns: schema.JoinColumns(fk.ForeignColumns),
		}
	}
	return infos
}

func diffSequences(next, previous []*schema.Sequence) []*SequenceDiff {
	prevIndex := flexmap.NewCaseInsensitive[*schema.Sequence]()
	for _, s := range previous {
		prevIndex.PutIfAbsent(s.Name, s)
	}
	nextIndex := flexmap.NewCaseInsensitive[*schema.Sequence]()
	for _, s := range next {
		nextIndex.PutIfAbsent(s.Name, s)
	}

	var added, changed, deleted []*SequenceDiff
	for _, n := range next {
		p, ok := prevIndex.Get(n.Name)
		if !ok {
			sd := &SequenceDiff{SequenceName: n.Name, DiffType: DiffAdd}
			compareAttributes(sequenceAttributes, sd, n, nil)
			added = append(added, sd)
			continue
		}
		sd := &SequenceDiff{SequenceName: n.Name, DiffType: DiffChange}
		if compareAttributes(sequenceAttributes, sd, n, p) {
			changed = append(changed, sd)
		}
	}
	for _, p := range previous {
		if !nextIndex.Has(p.Name) {
			deleted = append(deleted, &SequenceDiff{SequenceName: p.Name, DiffType: DiffDelete})
		}
	}
	return append(append(added, changed...), deleted...)
}

func sortedUpper(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.ToUpper(c)
	}
	slices.Sort(out)
	return out
}

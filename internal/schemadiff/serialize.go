package schemadiff

import (
	"fmt"

	"schemaflow/internal/mapstyle"
)

const (
	keyDiffDate       = "diffDate"
	keyTableCount     = "tableCount"
	keyTableName      = "tableName"
	keyColumnName     = "columnName"
	keyConstraintName = "constraintName"
	keySequenceName   = "sequenceName"
	keyPrimaryKeyDiff = "primaryKeyDiff"
	keyDiffType       = "diffType"
	keyNext           = "next"
	keyPrevious       = "previous"
)

// listKinds are the list key prefixes of each diff type, in persisted order.
var listKinds = []struct {
	diffType DiffType
	prefix   string
}{
	{DiffAdd, "added"},
	{DiffChange, "changed"},
	{DiffDelete, "deleted"},
}

// Serialize renders d as a map keyed by fixed field names. Latest is not
// part of the map.
func Serialize(d *SchemaDiff) *mapstyle.Map {
	m := mapstyle.NewMap()
	m.Put(keyDiffDate, d.DiffDate)
	if d.TableCount != nil {
		m.Put(keyTableCount, d.TableCount.toMap())
	}
	putLists(m, "TableList", d.TableDiffs, func(td *TableDiff) DiffType { return td.DiffType }, serializeTable)
	putLists(m, "SequenceList", d.SequenceDiffs, func(sd *SequenceDiff) DiffType { return sd.DiffType }, func(sd *SequenceDiff) *mapstyle.Map {
		sm := mapstyle.NewMap()
		sm.Put(keySequenceName, sd.SequenceName)
		putAttributes(sm, sequenceAttributes, sd)
		return sm
	})
	return m
}

func serializeTable(td *TableDiff) *mapstyle.Map {
	m := mapstyle.NewMap()
	m.Put(keyTableName, td.TableName)
	putAttributes(m, tableAttributes, td)
	putLists(m, "ColumnList", td.ColumnDiffs, func(cd *ColumnDiff) DiffType { return cd.DiffType }, func(cd *ColumnDiff) *mapstyle.Map {
		cm := mapstyle.NewMap()
		cm.Put(keyColumnName, cd.ColumnName)
		putAttributes(cm, columnAttributes, cd)
		return cm
	})
	if td.PrimaryKeyDiff != nil {
		pm := serializeKey(td.PrimaryKeyDiff)
		pm.Put(keyDiffType, string(td.PrimaryKeyDiff.DiffType))
		m.Put(keyPrimaryKeyDiff, pm)
	}
	keyType := func(kd *KeyDiff) DiffType { return kd.DiffType }
	putLists(m, "UniqueKeyList", td.UniqueKeyDiffs, keyType, serializeKey)
	putLists(m, "ForeignKeyList", td.ForeignKeyDiffs, keyType, serializeKey)
	return m
}

func serializeKey(kd *KeyDiff) *mapstyle.Map {
	m := mapstyle.NewMap()
	m.Put(keyConstraintName, kd.ConstraintName)
	putAttributes(m, keyAttributes, kd)
	return m
}

// putLists writes one list per diff type, omitting empty ones.
func putLists[E any](m *mapstyle.Map, suffix string, elems []E, diffType func(E) DiffType, render func(E) *mapstyle.Map) {
	for _, kind := range listKinds {
		var list []any
		for _, e := range elems {
			if diffType(e) == kind.diffType {
				list = append(list, render(e))
			}
		}
		if len(list) > 0 {
			m.Put(kind.prefix+suffix, list)
		}
	}
}

func putAttributes[T, D any](m *mapstyle.Map, attrs []attribute[*T, D], d D) {
	for _, a := range attrs {
		if np := *a.field(d); np != nil {
			m.Put(a.key, np.toMap())
		}
	}
}

func (np *NextPrevious) toMap() *mapstyle.Map {
	m := mapstyle.NewMap()
	m.Put(keyNext, np.Next)
	m.Put(keyPrevious, np.Previous)
	return m
}

// Deserialize restores a diff written by Serialize.
func Deserialize(m *mapstyle.Map) (*SchemaDiff, error) {
	d := &SchemaDiff{DiffDate: m.String(keyDiffDate)}
	if d.DiffDate == "" {
		return nil, fmt.Errorf("%s is missing", keyDiffDate)
	}
	var err error
	if d.TableCount, err = readNextPrevious(m, keyTableCount); err != nil {
		return nil, err
	}
	d.TableDiffs, err = readLists(m, "TableList", deserializeTable)
	if err != nil {
		return nil, err
	}
	d.SequenceDiffs, err = readLists(m, "SequenceList", func(sm *mapstyle.Map, t DiffType) (*SequenceDiff, error) {
		sd := &SequenceDiff{SequenceName: sm.String(keySequenceName), DiffType: t}
		return sd, readAttributes(sm, sequenceAttributes, sd)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func deserializeTable(m *mapstyle.Map, t DiffType) (*TableDiff, error) {
	td := &TableDiff{TableName: m.String(keyTableName), DiffType: t}
	if td.TableName == "" {
		return nil, fmt.Errorf("%s is missing", keyTableName)
	}
	if err := readAttributes(m, tableAttributes, td); err != nil {
		return nil, err
	}
	var err error
	td.ColumnDiffs, err = readLists(m, "ColumnList", func(cm *mapstyle.Map, t DiffType) (*ColumnDiff, error) {
		cd := &ColumnDiff{ColumnName: cm.String(keyColumnName), DiffType: t}
		return cd, readAttributes(cm, columnAttributes, cd)
	})
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", td.TableName, err)
	}
	if raw, ok := m.Get(keyPrimaryKeyDiff); ok {
		pm, ok := raw.(*mapstyle.Map)
		if !ok {
			return nil, fmt.Errorf("table %s: %s is not a map", td.TableName, keyPrimaryKeyDiff)
		}
		if td.PrimaryKeyDiff, err = deserializeKey(pm, DiffType(pm.String(keyDiffType))); err != nil {
			return nil, fmt.Errorf("table %s: %w", td.TableName, err)
		}
	}
	if td.UniqueKeyDiffs, err = readLists(m, "UniqueKeyList", deserializeKey); err != nil {
		return nil, fmt.Errorf("table %s: %w", td.TableName, err)
	}
	if td.ForeignKeyDiffs, err = readLists(m, "ForeignKeyList", deserializeKey); err != nil {
		return nil, fmt.Errorf("table %s: %w", td.TableName, err)
	}
	return td, nil
}

func deserializeKey(m *mapstyle.Map, t DiffType) (*KeyDiff, error) {
	kd := &KeyDiff{ConstraintName: m.String(keyConstraintName), DiffType: t}
	return kd, readAttributes(m, keyAttributes, kd)
}

func readLists[E any](m *mapstyle.Map, suffix string, read func(*mapstyle.Map, DiffType) (E, error)) ([]E, error) {
	var out []E
	for _, kind := range listKinds {
		key := kind.prefix + suffix
		raw, ok := m.Get(key)
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%s is not a list", key)
		}
		for i, v := range list {
			em, ok := v.(*mapstyle.Map)
			if !ok {
				return nil, fmt.Errorf("%s[%d] is not a map", key, i)
			}
			e, err := read(em, kind.diffType)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func readAttributes[T, D any](m *mapstyle.Map, attrs []attribute[*T, D], d D) error {
	for _, a := range attrs {
		np, err := readNextPrevious(m, a.key)
		if err != nil {
			return err
		}
		*a.field(d) = np
	}
	return nil
}

func readNextPrevious(m *mapstyle.Map, key string) (*NextPrevious, error) {
	raw, ok := m.Get(key)
	if !ok {
		return nil, nil
	}
	nm, ok := raw.(*mapstyle.Map)
	if !ok {
		return nil, fmt.Errorf("%s is not a next/previous map", key)
	}
	return &NextPrevious{Next: nm.String(keyNext), Previous: nm.String(keyPrevious)}, nil
}

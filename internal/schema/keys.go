package schema

import (
	"cmp"
	"slices"
	"strings"
)

// ImmobilizeForeignKeys returns fks in a deterministic order that does not
// depend on the order the driver reported them in.
//
// Keys compare by their local columns in key position order, a key that is a
// prefix of another sorting first, then by their foreign columns the same
// way, then by foreign table and finally by name. Column names compare
// case-insensitively.
func ImmobilizeForeignKeys(fks []*ForeignKey) []*ForeignKey {
	if len(fks) == 0 {
		return nil
	}
	sorted := slices.Clone(fks)
	slices.SortStableFunc(sorted, CompareForeignKeys)
	return sorted
}

// CompareForeignKeys is the ordering used by ImmobilizeForeignKeys.
func CompareForeignKeys(a, b *ForeignKey) int {
	if c := compareColumnLists(a.LocalColumns, b.LocalColumns); c != 0 {
		return c
	}
	if c := compareColumnLists(a.ForeignColumns, b.ForeignColumns); c != 0 {
		return c
	}
	if c := compareName(a.ForeignTable, b.ForeignTable); c != 0 {
		return c
	}
	return compareName(a.Name, b.Name)
}

func compareColumnLists(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := cmp.Compare(strings.ToUpper(a[i]), strings.ToUpper(b[i])); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// RemoveRedundantUniqueKeys drops every unique key whose column set equals
// the primary key's column set, ignoring order and case. Such keys are the
// index behind the primary key as some drivers report it.
func RemoveRedundantUniqueKeys(pk []string, uks []*UniqueKey) []*UniqueKey {
	if len(uks) == 0 {
		return nil
	}
	var kept []*UniqueKey
	for _, uk := range uks {
		if len(pk) > 0 && sameColumnSet(pk, uk.Columns) {
			continue
		}
		kept = append(kept, uk)
	}
	return kept
}

func sameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, s := range a {
		if !containsFold(b, s) {
			return false
		}
	}
	for _, s := range b {
		if !containsFold(a, s) {
			return false
		}
	}
	return true
}

// SameColumnSet reports whether a and b name the same columns in any order.
func SameColumnSet(a, b []string) bool { return sameColumnSet(a, b) }

// JoinColumns renders a column list the way diffs and messages show it.
func JoinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

package schema

import (
	"log/slog"
	"strings"
)

// SortByDependency orders tables parents first so rows can be loaded without
// violating foreign keys. Cycles are broken with a scoring heuristic: the
// table with the fewest unresolved references wins, with a bonus for tables
// that sit on a two-table cycle. References to tables outside the input are
// ignored.
func SortByDependency(tables []*Table) []*Table {
	known := make(map[string]*Table, len(tables))
	for _, t := range tables {
		known[strings.ToUpper(t.DBName)] = t
	}
	deps := make(map[*Table][]string, len(tables))
	for _, t := range tables {
		for _, ref := range t.ReferencedTables() {
			if _, ok := known[strings.ToUpper(ref)]; ok {
				deps[t] = append(deps[t], strings.ToUpper(ref))
			}
		}
	}

	var sorted []*Table
	processed := make(map[string]bool)
	key := func(t *Table) string { return strings.ToUpper(t.DBName) }

	for len(sorted) < len(tables) {
		added := false

		// Pass 1: tables whose dependencies are fully satisfied
		for _, t := range tables {
			if processed[key(t)] {
				continue
			}
			ready := true
			for _, dep := range deps[t] {
				if !processed[dep] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, t)
				processed[key(t)] = true
				added = true
			}
		}
		if added {
			continue
		}

		// Pass 2: nothing was ready, so there is a cycle. Break it.
		var best *Table
		bestScore := 0
		for _, t := range tables {
			if processed[key(t)] {
				continue
			}
			score := 0
			for _, dep := range deps[t] {
				if !processed[dep] {
					score -= 100
					if dependsOn(deps[known[dep]], key(t)) {
						score += 500
					}
				}
			}
			if best == nil || score > bestScore || (score == bestScore && key(t) < key(best)) {
				best, bestScore = t, score
			}
		}
		if best == nil {
			// only case-colliding duplicates remain
			break
		}
		slog.Debug("breaking circular dependency", "table", best.DBName, "score", bestScore)
		sorted = append(sorted, best)
		processed[key(best)] = true
	}
	return sorted
}

func dependsOn(deps []string, name string) bool {
	for _, d := range deps {
		if d == name {
			return true
		}
	}
	return false
}

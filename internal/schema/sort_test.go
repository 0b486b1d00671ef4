package schema_test

import (
	"testing"

	"schemaflow/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableWithRefs(name string, refs ...string) *schema.Table {
	t := &schema.Table{DBName: name}
	for _, r := range refs {
		t.ForeignKeys = append(t.ForeignKeys, &schema.ForeignKey{
			Name:           "FK_" + name + "_" + r,
			LocalColumns:   []string{r + "_ID"},
			ForeignColumns: []string{r + "_ID"},
			ForeignTable:   r,
		})
	}
	return t
}

func TestSortByDependency_ComplexCircular(t *testing.T) {
	// A -> B -> C -> D -> E -> A (cycle)
	// F -> E (simple reference)
	// G (independent)
	tables := []*schema.Table{
		tableWithRefs("A", "B"),
		tableWithRefs("B", "C"),
		tableWithRefs("C", "D"),
		tableWithRefs("D", "E"),
		tableWithRefs("E", "A"),
		tableWithRefs("F", "E"),
		tableWithRefs("G"),
	}

	sorted := schema.SortByDependency(tables)
	require.Len(t, sorted, len(tables))

	visited := make(map[string]bool)
	for _, tbl := range sorted {
		visited[tbl.DBName] = true
	}
	assert.Len(t, visited, len(tables))
	assert.Equal(t, "G", sorted[0].DBName)
}

func TestSortByDependency_Simple(t *testing.T) {
	// Users -> Orders -> OrderItems
	tables := []*schema.Table{
		tableWithRefs("OrderItems", "Orders"),
		tableWithRefs("Orders", "Users"),
		tableWithRefs("Users"),
	}

	sorted := schema.SortByDependency(tables)

	require.Len(t, sorted, 3)
	assert.Equal(t, "Users", sorted[0].DBName)
	assert.Equal(t, "Orders", sorted[1].DBName)
	assert.Equal(t, "OrderItems", sorted[2].DBName)
}

func TestSortByDependency_IgnoresSelfAndUnknownReferences(t *testing.T) {
	tables := []*schema.Table{
		tableWithRefs("MEMBER", "MEMBER", "EXTERNAL"),
		tableWithRefs("PURCHASE", "member"),
	}

	sorted := schema.SortByDependency(tables)

	require.Len(t, sorted, 2)
	assert.Equal(t, "MEMBER", sorted[0].DBName)
	assert.Equal(t, "PURCHASE", sorted[1].DBName)
}

func TestSortByDependency_TwoTableCycle(t *testing.T) {
	// store <-> staff, both referenced by rental
	tables := []*schema.Table{
		tableWithRefs("rental", "store", "staff"),
		tableWithRefs("store", "staff"),
		tableWithRefs("staff", "store"),
	}

	sorted := schema.SortByDependency(tables)

	require.Len(t, sorted, 3)
	assert.Equal(t, "staff", sorted[0].DBName)
	assert.Equal(t, "store", sorted[1].DBName)
	assert.Equal(t, "rental", sorted[2].DBName)
}

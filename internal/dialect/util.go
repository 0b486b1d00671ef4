package dialect

import (
	"database/sql"
	"strings"
)

// GeneratePlaceholders creates a comma-separated list of count placeholders
// using the dialect's placeholder function.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// DefaultNormalizeType is a default implementation for type normalization (lowercase).
func DefaultNormalizeType(sqlType string) string {
	return strings.ToLower(sqlType)
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}

// constraintRef names one constraint of one table.
type constraintRef struct {
	Table string
	Name  string
}

// queryStrings collects the first column of every row. Used by the load hooks
// that toggle constraints table by table.
func queryStrings(tx *sql.Tx, query string) ([]string, error) {
	rows, err := tx.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func queryConstraints(tx *sql.Tx, query string) ([]constraintRef, error) {
	rows, err := tx.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []constraintRef
	for rows.Next() {
		var c constraintRef
		if err := rows.Scan(&c.Table, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

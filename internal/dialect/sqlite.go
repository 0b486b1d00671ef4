package dialect

import (
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteDialect reads metadata through sqlite_master and the table-valued
// pragma functions. SQLite has no schema concept for user tables, so every
// query uses "? IS NOT NULL" to consume the schema argument, as the Oracle
// dialect does.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string { return "sqlite" }

const sqliteUserObjects = `m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'`

func (d *SQLiteDialect) GetTablesQuery(schema string) string {
	return `SELECT m.name, UPPER(m.type), NULL FROM sqlite_master m WHERE ` + sqliteUserObjects + ` AND ? IS NOT NULL ORDER BY m.name`
}

func (d *SQLiteDialect) GetColumnsQuery(schema string) string {
	// Size and scale stay NULL: the extractor splits declared types such as
	// VARCHAR(200) itself. A single INTEGER primary key aliases the rowid.
	return `
SELECT
    m.name,
    p.name,
    p.type,
    NULL,
    NULL,
    CASE WHEN p."notnull" = 0 AND p.pk = 0 THEN 'YES' ELSE 'NO' END,
    p.dflt_value,
    CASE
        WHEN p.pk = 1 AND UPPER(p.type) = 'INTEGER'
            AND (SELECT COUNT(*) FROM pragma_table_info(m.name) k WHERE k.pk > 0) = 1
        THEN 'auto_increment'
        ELSE ''
    END,
    NULL
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE ` + sqliteUserObjects + ` AND ? IS NOT NULL
ORDER BY m.name, p.cid`
}

func (d *SQLiteDialect) GetPrimaryKeysQuery(schema string) string {
	// Primary keys are anonymous in SQLite.
	return `
SELECT m.name, NULL, p.name
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND p.pk > 0 AND ? IS NOT NULL
ORDER BY m.name, p.pk`
}

func (d *SQLiteDialect) GetUniqueKeysQuery(schema string) string {
	return `
SELECT m.name, il.name, ii.name
FROM sqlite_master m
JOIN pragma_index_list(m.name) il
JOIN pragma_index_info(il.name) ii
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND il."unique" = 1 AND il.origin <> 'pk' AND ? IS NOT NULL
ORDER BY m.name, il.name, ii.seqno`
}

func (d *SQLiteDialect) GetForeignKeysQuery(schema string) string {
	// Foreign keys are anonymous too; the name is derived from the key id.
	// "to" is NULL when the key references the parent's primary key implicitly.
	return `
SELECT m.name, 'FK_' || UPPER(m.name) || '_' || f.id, f."from", f."table", f."to"
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) f
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IS NOT NULL
ORDER BY m.name, f.id, f.seq`
}

func (d *SQLiteDialect) GetSequencesQuery(schema string) string {
	return ""
}

func (d *SQLiteDialect) GetProceduresQuery(schema string) string {
	return ""
}

func (d *SQLiteDialect) BeforeLoad(tx *sql.Tx) error {
	_, err := tx.Exec("PRAGMA defer_foreign_keys = ON")
	return err
}

func (d *SQLiteDialect) AfterLoad(tx *sql.Tx) error {
	return nil
}

func (d *SQLiteDialect) BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *SQLiteDialect) AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *SQLiteDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *SQLiteDialect) DeleteQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

// TruncateQuery falls back to DELETE; SQLite has no TRUNCATE.
func (d *SQLiteDialect) TruncateQuery(table string) string {
	return d.DeleteQuery(table)
}

func (d *SQLiteDialect) Placeholder(index int) string {
	return "?"
}

// NormalizeType follows the SQLite type affinity rules.
func (d *SQLiteDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch {
	case t == "":
		return "blob"
	case strings.Contains(t, "int"):
		if t == "bigint" {
			return t
		}
		return "int"
	case strings.Contains(t, "char"), strings.Contains(t, "clob"):
		return "varchar"
	case strings.Contains(t, "text"):
		return "text"
	case strings.Contains(t, "blob"):
		return "blob"
	case strings.Contains(t, "real"), strings.Contains(t, "floa"), strings.Contains(t, "doub"):
		return "double"
	case strings.Contains(t, "bool"):
		return "boolean"
	case t == "date", t == "time":
		return t
	case strings.Contains(t, "date"), strings.Contains(t, "time"):
		return "datetime"
	}
	return "decimal"
}

func (d *SQLiteDialect) GetSchemaName(input string) string {
	if input == "" {
		return "main"
	}
	return input
}

func (d *SQLiteDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

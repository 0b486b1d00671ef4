package dialect

import (
	"database/sql"
	"fmt"
	"strings"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) GetTablesQuery(schema string) string {
	return `SELECT t.table_name, CASE WHEN t.table_type = 'VIEW' THEN 'VIEW' ELSE 'TABLE' END, obj_description(format('%I.%I', t.table_schema, t.table_name)::regclass, 'pg_class')
FROM information_schema.tables t
WHERE t.table_schema = $1 AND t.table_type IN ('BASE TABLE', 'VIEW')
ORDER BY t.table_name`
}

func (d *PostgresDialect) GetColumnsQuery(schema string) string {
	// udt_name keeps int4/varchar spellings that NormalizeType maps.
	// Identity and serial columns are reported through the EXTRA slot.
	return `SELECT
    c.table_name,
    c.column_name,
    c.udt_name,
    COALESCE(c.character_maximum_length, c.numeric_precision, c.datetime_precision),
    c.numeric_scale,
    c.is_nullable,
    c.column_default,
    CASE
        WHEN c.is_identity = 'YES' THEN 'identity'
        WHEN c.column_default LIKE 'nextval(%' THEN 'auto_increment'
        ELSE ''
    END,
    col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int)
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`
}

func (d *PostgresDialect) GetPrimaryKeysQuery(schema string) string {
	return d.keyColumnsQuery("PRIMARY KEY")
}

func (d *PostgresDialect) GetUniqueKeysQuery(schema string) string {
	return d.keyColumnsQuery("UNIQUE")
}

func (d *PostgresDialect) keyColumnsQuery(constraintType string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
    ON tc.constraint_schema = kcu.constraint_schema AND tc.constraint_name = kcu.constraint_name
WHERE tc.table_schema = $1 AND tc.constraint_type = '` + constraintType + `'
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`
}

func (d *PostgresDialect) GetForeignKeysQuery(schema string) string {
	// constraint_column_usage loses the column pairing of compound keys, so
	// the pairs come from pg_constraint directly.
	return `SELECT cl.relname, con.conname, att.attname, rcl.relname, ratt.attname
FROM pg_constraint con
JOIN pg_class cl ON cl.oid = con.conrelid
JOIN pg_namespace ns ON ns.oid = cl.relnamespace
JOIN pg_class rcl ON rcl.oid = con.confrelid
CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, pos)
JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.attnum
JOIN pg_attribute ratt ON ratt.attrelid = con.confrelid AND ratt.attnum = k.refattnum
WHERE con.contype = 'f' AND ns.nspname = $1
ORDER BY cl.relname, con.conname, k.pos`
}

func (d *PostgresDialect) GetSequencesQuery(schema string) string {
	return `SELECT sequence_name, minimum_value, maximum_value, increment FROM information_schema.sequences WHERE sequence_schema = $1 ORDER BY sequence_name`
}

func (d *PostgresDialect) GetProceduresQuery(schema string) string {
	return `SELECT routine_name, routine_type FROM information_schema.routines WHERE routine_schema = $1 ORDER BY routine_name`
}

func (d *PostgresDialect) BeforeLoad(tx *sql.Tx) error {
	// Works for foreign keys declared DEFERRABLE. session_replication_role
	// would cover the rest but needs superuser, and a refused SET aborts the
	// whole transaction.
	_, err := tx.Exec("SET CONSTRAINTS ALL DEFERRED")
	return err
}

func (d *PostgresDialect) AfterLoad(tx *sql.Tx) error {
	_, err := tx.Exec("SET CONSTRAINTS ALL IMMEDIATE")
	return err
}

func (d *PostgresDialect) BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *PostgresDialect) AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *PostgresDialect) DeleteQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *PostgresDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int4", "int2", "serial":
		return "int"
	case "int8", "bigserial":
		return "bigint"
	case "float4":
		return "float"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	case "numeric":
		return "decimal"
	case "bool":
		return "boolean"
	case "timestamp", "timestamptz":
		return "datetime"
	case "bytea":
		return "blob"
	default:
		return t
	}
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

func (d *PostgresDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

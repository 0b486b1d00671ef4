package dialect

import (
	"database/sql"
	"fmt"
	"strings"
)

type MSSQLDialect struct{}

// go-mssqldb prefers @p1, @p2 named parameters over ?, so every metadata
// query binds the schema as @p1.

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) GetTablesQuery(schema string) string {
	return `
		SELECT
			t.TABLE_NAME,
			CASE WHEN t.TABLE_TYPE = 'VIEW' THEN 'VIEW' ELSE 'TABLE' END,
			CAST(ep.value AS NVARCHAR(MAX))
		FROM INFORMATION_SCHEMA.TABLES t
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = OBJECT_ID(t.TABLE_SCHEMA + '.' + t.TABLE_NAME)
			AND ep.minor_id = 0
			AND ep.name = 'MS_Description'
		WHERE t.TABLE_SCHEMA = @p1 AND t.TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		ORDER BY t.TABLE_NAME
	`
}

func (d *MSSQLDialect) GetColumnsQuery(schema string) string {
	// Identity info and MS_Description (Comment) ride along with the columns.
	return `
		SELECT
			c.TABLE_NAME,
			c.COLUMN_NAME,
			c.DATA_TYPE,
			COALESCE(c.CHARACTER_MAXIMUM_LENGTH, c.NUMERIC_PRECISION, c.DATETIME_PRECISION),
			c.NUMERIC_SCALE,
			c.IS_NULLABLE,
			c.COLUMN_DEFAULT,
			CASE
				WHEN idxc.column_id IS NOT NULL THEN 'identity'
				WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
				ELSE ''
			END,
			CAST(ep.value AS NVARCHAR(MAX))
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN sys.identity_columns idxc
			ON idxc.object_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
			AND idxc.name = c.COLUMN_NAME
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
			AND ep.minor_id = COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'ColumnId')
			AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = @p1
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION
	`
}

func (d *MSSQLDialect) GetPrimaryKeysQuery(schema string) string {
	return `SELECT kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1 ORDER BY kcu.TABLE_NAME, kcu.ORDINAL_POSITION`
}

func (d *MSSQLDialect) GetUniqueKeysQuery(schema string) string {
	// Unique constraints and plain unique indexes both count.
	return `
		SELECT t.name, idx.name, col.name
		FROM sys.indexes idx
		JOIN sys.index_columns ic ON idx.object_id = ic.object_id AND idx.index_id = ic.index_id
		JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
		JOIN sys.tables t ON idx.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE idx.is_unique = 1
			AND idx.is_primary_key = 0
			AND s.name = @p1
		ORDER BY t.name, idx.name, ic.key_ordinal
	`
}

func (d *MSSQLDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME AND KCU1.ORDINAL_POSITION = KCU2.ORDINAL_POSITION WHERE KCU1.TABLE_SCHEMA = @p1 ORDER BY KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.ORDINAL_POSITION`
}

func (d *MSSQLDialect) GetSequencesQuery(schema string) string {
	return `
		SELECT seq.name,
			CAST(seq.minimum_value AS NVARCHAR(40)),
			CAST(seq.maximum_value AS NVARCHAR(40)),
			CAST(seq.increment AS NVARCHAR(40))
		FROM sys.sequences seq
		JOIN sys.schemas s ON seq.schema_id = s.schema_id
		WHERE s.name = @p1
		ORDER BY seq.name
	`
}

func (d *MSSQLDialect) GetProceduresQuery(schema string) string {
	return `SELECT ROUTINE_NAME, ROUTINE_TYPE FROM INFORMATION_SCHEMA.ROUTINES WHERE ROUTINE_SCHEMA = @p1 ORDER BY ROUTINE_NAME`
}

const mssqlOwnTablesQuery = "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = SCHEMA_NAME()"

func (d *MSSQLDialect) BeforeLoad(tx *sql.Tx) error {
	// Disable all constraints up front so circular references (store <-> staff)
	// can be loaded in any order.
	tables, err := queryStrings(tx, mssqlOwnTablesQuery)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT all", t)); err != nil {
			return fmt.Errorf("failed to disable constraints on %s: %w", t, err)
		}
	}
	return nil
}

func (d *MSSQLDialect) AfterLoad(tx *sql.Tx) error {
	tables, err := queryStrings(tx, mssqlOwnTablesQuery)
	if err != nil {
		return err
	}
	for _, t := range tables {
		// WITH CHECK validates the rows that were just loaded.
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s WITH CHECK CHECK CONSTRAINT all", t)); err != nil {
			return fmt.Errorf("failed to enable constraints on %s: %w", t, err)
		}
	}
	return nil
}

func (d *MSSQLDialect) BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT all", tableName)); err != nil {
		return err
	}
	if hasIdentity {
		_, err := tx.Exec(fmt.Sprintf("SET IDENTITY_INSERT %s ON", tableName))
		return err
	}
	return nil
}

func (d *MSSQLDialect) AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	// Constraints come back globally in AfterLoad.
	if hasIdentity {
		_, err := tx.Exec(fmt.Sprintf("SET IDENTITY_INSERT %s OFF", tableName))
		return err
	}
	return nil
}

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *MSSQLDialect) DeleteQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *MSSQLDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

// ReseedQuery resets the identity counter after a DELETE, which unlike
// TRUNCATE keeps it.
func (d *MSSQLDialect) ReseedQuery(table string) string {
	return fmt.Sprintf("DBCC CHECKIDENT ('%s', RESEED, 0)", table)
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "nvarchar", "nchar", "text", "ntext":
		return "varchar"
	case "bit":
		return "boolean"
	case "decimal", "numeric", "money", "smallmoney":
		return "decimal"
	case "float", "real":
		return "float"
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return "datetime"
	case "image", "binary", "varbinary":
		return "blob"
	default:
		return t
	}
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}

func (d *MSSQLDialect) GetLimitRowQuery(query string, limit int) string {
	// T-SQL TOP injection on the first SELECT.
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return fmt.Sprintf("SELECT TOP %d%s", limit, trimmed[len("SELECT"):])
	}
	return query
}

package dialect

import (
	"database/sql"
	"fmt"
	"strings"
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string { return "mysql" }

func (d *MysqlDialect) GetTablesQuery(schema string) string {
	return `SELECT TABLE_NAME, CASE WHEN TABLE_TYPE = 'VIEW' THEN 'VIEW' ELSE 'TABLE' END, TABLE_COMMENT FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE IN ('BASE TABLE', 'VIEW') ORDER BY TABLE_NAME`
}

func (d *MysqlDialect) GetColumnsQuery(schema string) string {
	return `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COALESCE(CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, DATETIME_PRECISION), NUMERIC_SCALE, IS_NULLABLE, COLUMN_DEFAULT, EXTRA, COLUMN_COMMENT FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetPrimaryKeysQuery(schema string) string {
	// MySQL always names the primary key PRIMARY.
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetUniqueKeysQuery(schema string) string {
	return `SELECT kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.COLUMN_NAME FROM information_schema.TABLE_CONSTRAINTS tc JOIN information_schema.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA AND tc.TABLE_NAME = kcu.TABLE_NAME AND tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME WHERE tc.TABLE_SCHEMA = ? AND tc.CONSTRAINT_TYPE = 'UNIQUE' ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`
}

func (d *MysqlDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetSequencesQuery(schema string) string {
	return ""
}

func (d *MysqlDialect) GetProceduresQuery(schema string) string {
	return `SELECT ROUTINE_NAME, ROUTINE_TYPE FROM information_schema.ROUTINES WHERE ROUTINE_SCHEMA = ? ORDER BY ROUTINE_NAME`
}

func (d *MysqlDialect) BeforeLoad(tx *sql.Tx) error {
	_, err := tx.Exec("SET FOREIGN_KEY_CHECKS = 0")
	return err
}

func (d *MysqlDialect) AfterLoad(tx *sql.Tx) error {
	_, err := tx.Exec("SET FOREIGN_KEY_CHECKS = 1")
	return err
}

func (d *MysqlDialect) BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *MysqlDialect) AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *MysqlDialect) DeleteQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *MysqlDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	t := DefaultNormalizeType(sqlType)
	switch t {
	case "integer", "mediumint":
		return "int"
	case "tinytext", "mediumtext", "longtext":
		return "text"
	case "timestamp":
		return "datetime"
	case "tinyblob", "mediumblob", "longblob", "binary", "varbinary":
		return "blob"
	case "numeric":
		return "decimal"
	default:
		return t
	}
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

func (d *MysqlDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

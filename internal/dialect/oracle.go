package dialect

import (
	"database/sql"
	"fmt"
	"strings"
)

type OracleDialect struct{}

// Oracle reads the USER_* dictionary views of the connected user. Each query
// keeps a dummy ":1 IS NOT NULL" clause to consume the schema argument that
// every caller passes.

func (d *OracleDialect) Name() string { return "oracle" }

func (d *OracleDialect) GetTablesQuery(schema string) string {
	return `
SELECT t.TABLE_NAME, t.TABLE_TYPE, c.COMMENTS
FROM (
    SELECT TABLE_NAME, 'TABLE' AS TABLE_TYPE FROM USER_TABLES
    UNION ALL
    SELECT VIEW_NAME, 'VIEW' FROM USER_VIEWS
) t
LEFT JOIN USER_TAB_COMMENTS c ON c.TABLE_NAME = t.TABLE_NAME
WHERE :1 IS NOT NULL
ORDER BY t.TABLE_NAME`
}

func (d *OracleDialect) GetColumnsQuery(schema string) string {
	return `
SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    t.DATA_TYPE,
    COALESCE(t.DATA_PRECISION, NULLIF(t.CHAR_LENGTH, 0), t.DATA_LENGTH),
    t.DATA_SCALE,
    CASE WHEN t.NULLABLE = 'Y' THEN 'YES' ELSE 'NO' END,
    t.DATA_DEFAULT,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'auto_increment' ELSE '' END,
    c.COMMENTS
FROM USER_TAB_COLUMNS t
LEFT JOIN USER_COL_COMMENTS c ON t.TABLE_NAME = c.TABLE_NAME AND t.COLUMN_NAME = c.COLUMN_NAME
WHERE :1 IS NOT NULL
ORDER BY t.TABLE_NAME, t.COLUMN_ID`
}

func (d *OracleDialect) GetPrimaryKeysQuery(schema string) string {
	return d.keyColumnsQuery("P")
}

func (d *OracleDialect) GetUniqueKeysQuery(schema string) string {
	return d.keyColumnsQuery("U")
}

func (d *OracleDialect) keyColumnsQuery(constraintType string) string {
	return `
SELECT cc.TABLE_NAME, cc.CONSTRAINT_NAME, cc.COLUMN_NAME
FROM USER_CONS_COLUMNS cc
JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = '` + constraintType + `' AND :1 IS NOT NULL
ORDER BY cc.TABLE_NAME, cc.CONSTRAINT_NAME, cc.POSITION`
}

func (d *OracleDialect) GetForeignKeysQuery(schema string) string {
	return `
SELECT
    c.TABLE_NAME,
    c.CONSTRAINT_NAME,
    cc.COLUMN_NAME,
    r.TABLE_NAME AS REF_TABLE,
    rcc.COLUMN_NAME AS REF_COLUMN
FROM USER_CONSTRAINTS c
JOIN USER_CONS_COLUMNS cc
    ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
    AND c.OWNER = cc.OWNER
JOIN USER_CONSTRAINTS r
    ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME
    AND c.R_OWNER = r.OWNER
JOIN USER_CONS_COLUMNS rcc
    ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME
    AND r.OWNER = rcc.OWNER
    AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R'
AND :1 IS NOT NULL
ORDER BY c.TABLE_NAME, c.CONSTRAINT_NAME, cc.POSITION`
}

func (d *OracleDialect) GetSequencesQuery(schema string) string {
	return `SELECT SEQUENCE_NAME, TO_CHAR(MIN_VALUE), TO_CHAR(MAX_VALUE), TO_CHAR(INCREMENT_BY) FROM USER_SEQUENCES WHERE :1 IS NOT NULL ORDER BY SEQUENCE_NAME`
}

func (d *OracleDialect) GetProceduresQuery(schema string) string {
	return `SELECT OBJECT_NAME, OBJECT_TYPE FROM USER_PROCEDURES WHERE OBJECT_TYPE IN ('PROCEDURE', 'FUNCTION') AND :1 IS NOT NULL ORDER BY OBJECT_NAME`
}

func (d *OracleDialect) BeforeLoad(tx *sql.Tx) error {
	// 1. NLS formats matching the "2006-01-02 15:04:05" strings of the data sets.
	if _, err := tx.Exec("ALTER SESSION SET NLS_DATE_FORMAT = 'YYYY-MM-DD HH24:MI:SS'"); err != nil {
		return fmt.Errorf("failed to set NLS_DATE_FORMAT: %w", err)
	}
	if _, err := tx.Exec("ALTER SESSION SET NLS_TIMESTAMP_FORMAT = 'YYYY-MM-DD HH24:MI:SS'"); err != nil {
		return fmt.Errorf("failed to set NLS_TIMESTAMP_FORMAT: %w", err)
	}

	// 2. Disable FK constraints so rows load without ordering issues.
	// Note: in Oracle, DDL (ALTER) implicitly commits the transaction.
	return d.toggleForeignKeys(tx, "ENABLED", "DISABLE")
}

func (d *OracleDialect) AfterLoad(tx *sql.Tx) error {
	return d.toggleForeignKeys(tx, "DISABLED", "ENABLE")
}

func (d *OracleDialect) toggleForeignKeys(tx *sql.Tx, status, action string) error {
	constraints, err := queryConstraints(tx, "SELECT TABLE_NAME, CONSTRAINT_NAME FROM USER_CONSTRAINTS WHERE CONSTRAINT_TYPE = 'R' AND STATUS = '"+status+"'")
	if err != nil {
		return err
	}
	for _, c := range constraints {
		query := fmt.Sprintf("ALTER TABLE %s %s CONSTRAINT %s", c.Table, action, c.Name)
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to %s constraint %s on %s: %w", strings.ToLower(action), c.Name, c.Table, err)
		}
	}
	return nil
}

func (d *OracleDialect) BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *OracleDialect) AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error {
	return nil
}

func (d *OracleDialect) InsertQuery(table string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), vals)
}

func (d *OracleDialect) DeleteQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", table)
}

func (d *OracleDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) NormalizeType(sqlType string) string {
	s := strings.ToLower(sqlType)
	switch {
	case strings.Contains(s, "clob"):
		return "text"
	case strings.Contains(s, "char"):
		return "varchar"
	case strings.Contains(s, "blob"), strings.Contains(s, "raw"):
		return "blob"
	case s == "number", strings.Contains(s, "int"):
		return "decimal"
	case strings.Contains(s, "float"), strings.Contains(s, "binary_double"):
		return "double"
	case strings.Contains(s, "date"), strings.Contains(s, "timestamp"):
		return "datetime"
	}
	return s
}

func (d *OracleDialect) GetSchemaName(input string) string {
	// Oracle treats '' as NULL, which would void the dummy clause.
	if input == "" {
		return "USER"
	}
	return input
}

func (d *OracleDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, limit)
}

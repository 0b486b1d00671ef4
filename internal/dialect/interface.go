package dialect

import "database/sql"

// Dialect abstracts database-specific operations.
//
// Every metadata query takes the schema name as its single bind argument and
// returns rows in the shape documented on the method. An empty query string
// means the database has no such metadata and the caller skips the step.
type Dialect interface {
	Name() string

	// Metadata Queries (Schema Introspection)

	// TABLE_NAME, TABLE_TYPE ('TABLE' or 'VIEW'), COMMENT
	GetTablesQuery(schema string) string
	// TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_SIZE, DECIMAL_DIGITS,
	// IS_NULLABLE ('YES'/'NO'), COLUMN_DEFAULT, EXTRA, COMMENT
	GetColumnsQuery(schema string) string
	// TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME ordered by key position
	GetPrimaryKeysQuery(schema string) string
	// TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME ordered by key position
	GetUniqueKeysQuery(schema string) string
	// TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REF_TABLE, REF_COLUMN
	// ordered by key position
	GetForeignKeysQuery(schema string) string
	// SEQUENCE_NAME, MIN_VALUE, MAX_VALUE, INCREMENT_SIZE
	GetSequencesQuery(schema string) string
	// PROCEDURE_NAME, PROCEDURE_TYPE
	GetProceduresQuery(schema string) string

	// Execution Hooks (Global Level)
	BeforeLoad(tx *sql.Tx) error
	AfterLoad(tx *sql.Tx) error

	// Execution Hooks (Table Level) - For IDENTITY_INSERT etc.
	BeforeTable(tx *sql.Tx, tableName string, hasIdentity bool) error
	AfterTable(tx *sql.Tx, tableName string, hasIdentity bool) error

	// Query Generation
	InsertQuery(table string, cols []string) string
	DeleteQuery(table string) string
	TruncateQuery(table string) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.

	// Helpers
	NormalizeType(sqlType string) string
	GetSchemaName(input string) string
	GetLimitRowQuery(query string, limit int) string
}

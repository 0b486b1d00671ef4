package dialect

// GetDialect returns the appropriate Dialect implementation based on driver name.
func GetDialect(driver string) Dialect {
	switch driver {
	case "postgres", "pgx":
		return &PostgresDialect{}
	case "sqlserver", "mssql":
		return &MSSQLDialect{}
	case "oracle":
		return &OracleDialect{}
	case "sqlite", "sqlite3":
		return &SQLiteDialect{}
	default: // mysql
		return &MysqlDialect{}
	}
}

// Ensure interface implementation
var _ Dialect = (*MysqlDialect)(nil)
var _ Dialect = (*PostgresDialect)(nil)
var _ Dialect = (*MSSQLDialect)(nil)
var _ Dialect = (*OracleDialect)(nil)
var _ Dialect = (*SQLiteDialect)(nil)

// Package replaceschema rebuilds the data of a schema: it cleans tables,
// loads data sets in foreign key order and checks the result.
package replaceschema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"schemaflow/internal/classification"
	"schemaflow/internal/dialect"
	"schemaflow/internal/schema"
)

// Loader runs ReplaceSchema against one database.
type Loader struct {
	DB       *sql.DB
	Dialect  dialect.Dialect
	Snapshot *schema.Snapshot
	Resolver *classification.Resolver // optional; checks classified values
	Logger   *slog.Logger
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Tables restricts the load to the named tables; empty means all.
	Tables []string
	// Rollback loads everything in one transaction and rolls it back at the
	// end, which verifies the data without keeping it.
	Rollback bool
	// ContinueOnError logs failing rows and goes on instead of aborting.
	ContinueOnError bool
	// OnRow is called after each inserted row.
	OnRow func(table string)
}

// LoadResult is the outcome of one table.
type LoadResult struct {
	Table    string
	Expected int
	Loaded   int
	Status   string
}

const (
	StatusOK      = "OK"
	StatusPartial = "PARTIAL"
)

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Targets returns the base tables to work on in load order. Unknown names
// are an error.
func (l *Loader) Targets(names []string) ([]*schema.Table, error) {
	var tables []*schema.Table
	if len(names) == 0 {
		for _, t := range l.Snapshot.Tables {
			if !t.IsView {
				tables = append(tables, t)
			}
		}
	} else {
		var missing []string
		for _, name := range names {
			t, ok := l.Snapshot.Table(name)
			if !ok {
				missing = append(missing, name)
				continue
			}
			tables = append(tables, t)
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("no matching tables found for %s", strings.Join(missing, ", "))
		}
	}
	return schema.SortByDependency(tables), nil
}

// Clean deletes the data of tables, children first, in one transaction. A
// table that cannot be cleaned is logged and skipped. Nil tables means every
// base table of the snapshot.
func (l *Loader) Clean(ctx context.Context, tables []*schema.Table) error {
	if tables == nil {
		var err error
		if tables, err = l.Targets(nil); err != nil {
			return err
		}
	} else {
		tables = schema.SortByDependency(tables)
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	reseeder, canReseed := l.Dialect.(interface{ ReseedQuery(string) string })
	for i := len(tables) - 1; i >= 0; i-- {
		t := tables[i]
		query := l.Dialect.TruncateQuery(t.DBName)
		if canReseed {
			// TRUNCATE fails on referenced tables even with constraints disabled.
			query = l.Dialect.DeleteQuery(t.DBName)
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			l.logger().Warn("failed to clean table (continuing...)", "table", t.DBName, "error", err)
			continue
		}
		if canReseed && t.HasAutoIncrement() {
			if _, err := tx.ExecContext(ctx, reseeder.ReseedQuery(t.DBName)); err != nil {
				l.logger().Warn("failed to reset identity (continuing...)", "table", t.DBName, "error", err)
			}
		}
		l.logger().Debug("table cleaned", "table", t.DBName)
	}

	if err := l.Dialect.AfterLoad(tx); err != nil {
		l.logger().Warn("after-load hook failed", "error", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleaning transaction: %w", err)
	}
	tx = nil
	l.logger().Info("tables cleaned", "count", len(tables))
	return nil
}

// begin opens a transaction and runs the dialect's load hook. A failed hook
// aborts the transaction on some databases, so a fresh one is started.
func (l *Loader) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := l.Dialect.BeforeLoad(tx); err != nil {
		l.logger().Warn("before-load hook failed (continuing...)", "dialect", l.Dialect.Name(), "error", err)
		_ = tx.Rollback()
		if tx, err = l.DB.BeginTx(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
	}
	return tx, nil
}

// Load inserts the rows of ds table by table in dependency order. Values of
// classified columns are checked against their classification first.
func (l *Loader) Load(ctx context.Context, ds DataSet, opts LoadOptions) ([]LoadResult, error) {
	tables, err := l.Targets(opts.Tables)
	if err != nil {
		return nil, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	referenced := make(map[string]bool)
	for _, t := range tables {
		for _, ref := range t.ReferencedTables() {
			referenced[strings.ToUpper(ref)] = true
		}
	}

	keys := make(KeyPool)
	var results []LoadResult
	for _, t := range tables {
		rows, err := ds.Rows(t, keys)
		if err != nil {
			return nil, fmt.Errorf("data set for %s: %w", t.DBName, err)
		}
		if rows != nil {
			res, err := l.loadTable(ctx, tx, t, rows, opts)
			if err != nil {
				return nil, err
			}
			results = append(results, res)
		}
		if referenced[strings.ToUpper(t.DBName)] && t.HasSinglePrimaryKey() {
			if err := collectKeys(ctx, tx, t, keys); err != nil {
				l.logger().Warn("failed to collect key values (continuing...)", "table", t.DBName, "error", err)
			}
		}
	}

	if err := l.Dialect.AfterLoad(tx); err != nil {
		l.logger().Warn("after-load hook failed", "error", err)
	}
	if opts.Rollback {
		if err := tx.Rollback(); err != nil {
			return nil, fmt.Errorf("failed to roll back: %w", err)
		}
		tx = nil
		l.logger().Info("loaded data rolled back", "tables", len(results))
		return results, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit load transaction: %w", err)
	}
	tx = nil
	return results, nil
}

func (l *Loader) loadTable(ctx context.Context, tx *sql.Tx, t *schema.Table, rows []Row, opts LoadOptions) (LoadResult, error) {
	res := LoadResult{Table: t.DBName, Expected: len(rows)}

	identity := false
	for _, r := range rows {
		for _, name := range r.Columns {
			if c, ok := t.Column(name); ok && c.AutoIncrement {
				identity = true
			}
		}
	}
	if err := l.Dialect.BeforeTable(tx, t.DBName, identity); err != nil {
		l.logger().Warn("before-table hook failed", "table", t.DBName, "error", err)
	}

	queries := make(map[string]string)
	failures := 0
	for i, r := range rows {
		if err := l.checkCodes(t, r); err != nil {
			return res, &RowError{Table: t.DBName, Row: i + 1, Err: err}
		}
		signature := strings.Join(r.Columns, ",")
		query, ok := queries[signature]
		if !ok {
			query = l.Dialect.InsertQuery(t.DBName, r.Columns)
			queries[signature] = query
		}
		if _, err := tx.ExecContext(ctx, query, r.Values...); err != nil {
			if !opts.ContinueOnError {
				return res, &RowError{Table: t.DBName, Row: i + 1, Err: err}
			}
			failures++
			if failures <= 3 {
				l.logger().Debug("insert failed", "table", t.DBName, "row", i+1, "error", err, "query", query)
			}
			continue
		}
		res.Loaded++
		if opts.OnRow != nil {
			opts.OnRow(t.DBName)
		}
	}

	if err := l.Dialect.AfterTable(tx, t.DBName, identity); err != nil {
		l.logger().Warn("after-table hook failed", "table", t.DBName, "error", err)
	}

	res.Status = StatusOK
	if res.Loaded < res.Expected {
		res.Status = StatusPartial
		l.logger().Warn("rows missing", "table", t.DBName, "loaded", res.Loaded, "expected", res.Expected)
	}
	return res, nil
}

func (l *Loader) checkCodes(t *schema.Table, r Row) error {
	if l.Resolver == nil {
		return nil
	}
	for i, name := range r.Columns {
		c, ok := t.Column(name)
		if !ok || c.ClassificationName == "" || r.Values[i] == nil {
			continue
		}
		if err := l.Resolver.CheckColumnCode(t.DBName, c.Name, fmt.Sprint(r.Values[i])); err != nil {
			return err
		}
	}
	return nil
}

// collectKeys adds the primary key values of t to keys.
func collectKeys(ctx context.Context, tx *sql.Tx, t *schema.Table, keys KeyPool) error {
	pk := t.PrimaryKeyColumns[0]
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", pk, t.DBName))
	if err != nil {
		return err
	}
	defer rows.Close()

	key := strings.ToUpper(t.DBName)
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return err
		}
		keys[key] = append(keys[key], v)
	}
	return rows.Err()
}

// TakeFinallyPolicy lists what must hold after a load.
type TakeFinallyPolicy struct {
	// RequiredTables must contain at least one row.
	RequiredTables []string
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string
	Rows  int
}

// TakeFinally counts the rows of the required tables and fails with an
// *AssertionFailureError naming every empty one.
func (l *Loader) TakeFinally(ctx context.Context, policy TakeFinallyPolicy) ([]TableCount, error) {
	var counts []TableCount
	var empty []string
	for _, name := range policy.RequiredTables {
		table := name
		if t, ok := l.Snapshot.Table(name); ok {
			table = t.DBName
		}
		var n int
		if err := l.DB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Rows: n})
		if n == 0 {
			empty = append(empty, table)
		}
	}
	if len(empty) > 0 {
		slices.Sort(empty)
		return counts, &AssertionFailureError{
			Advice: "The tables below are required to have data after ReplaceSchema,\n" +
				"but they are empty. Add rows for them to the data files\n" +
				"or remove them from replaceSchema.requiredTables.",
			Tables: empty,
		}
	}
	return counts, nil
}

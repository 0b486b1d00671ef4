package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"schemaflow/internal/dialect"
	"schemaflow/internal/flexmap"
)

// Classifier decides the classification of a column. The classification
// package provides the implementation.
type Classifier interface {
	ClassificationOf(table, column string) (string, bool)
}

// ForeignKeyPropagator is implemented by classifiers that copy primary key
// classifications onto referencing columns before columns are decorated.
type ForeignKeyPropagator interface {
	PropagateForeignKeys(tables []*Table)
}

// Extractor reads schema metadata through a dialect's queries and builds a
// Snapshot.
type Extractor struct {
	DB         *sql.DB
	Dialect    dialect.Dialect
	SchemaName string
	Classifier Classifier   // optional
	Logger     *slog.Logger // optional, slog.Default() when nil
	Now        func() time.Time
}

// Extract runs tables, columns, primary keys, unique keys, foreign keys,
// sequences and procedures in that order. The first, second, third and fifth
// steps are required. The others are optional enrichment: a failure is
// logged once and the step yields nothing.
func (e *Extractor) Extract(ctx context.Context) (*Snapshot, error) {
	logger := e.logger()
	target := e.Dialect.GetSchemaName(e.SchemaName)

	tableMap := flexmap.NewCaseInsensitive[*Table]()
	var tables []*Table

	// --- Step 1: Fetch Tables ---
	err := e.query(ctx, e.Dialect.GetTablesQuery(target), target, func(rows *sql.Rows) error {
		var name, typ, comment sql.NullString
		if err := rows.Scan(&name, &typ, &comment); err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}
		if !name.Valid {
			return nil
		}
		t := &Table{
			DBName:  name.String,
			SQLName: name.String,
			Schema:  target,
			Comment: comment.String,
			IsView:  strings.EqualFold(typ.String, "VIEW"),
		}
		if tableMap.PutIfAbsent(t.DBName, t) {
			tables = append(tables, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	// --- Step 2: Fetch Columns ---
	err = e.query(ctx, e.Dialect.GetColumnsQuery(target), target, func(rows *sql.Rows) error {
		var tName, cName, dType, cSize, cScale, isNull, def, extra, comment sql.NullString
		if err := rows.Scan(&tName, &cName, &dType, &cSize, &cScale, &isNull, &def, &extra, &comment); err != nil {
			return fmt.Errorf("failed to scan column (table: %s): %w", tName.String, err)
		}
		if !tName.Valid || !cName.Valid {
			return nil // Skip invalid rows
		}
		t, ok := tableMap.Get(tName.String)
		if !ok {
			return nil
		}
		t.Columns = append(t.Columns, e.newColumn(cName.String, dType.String, cSize, cScale, isNull.String, def, extra.String, comment.String))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}

	// --- Step 3: Fetch Primary Keys ---
	err = e.query(ctx, e.Dialect.GetPrimaryKeysQuery(target), target, func(rows *sql.Rows) error {
		var tName, kName, cName sql.NullString
		if err := rows.Scan(&tName, &kName, &cName); err != nil {
			return fmt.Errorf("failed to scan primary key: %w", err)
		}
		if t, ok := tableMap.Get(tName.String); ok && cName.Valid {
			t.PrimaryKeyName = kName.String
			t.PrimaryKeyColumns = append(t.PrimaryKeyColumns, cName.String)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query primary keys: %w", err)
	}

	// --- Step 4: Fetch Unique Keys (optional) ---
	uniqueKeys := make(map[*Table]*flexmap.Map[*UniqueKey])
	ukRead := e.optional(ctx, "unique keys", e.Dialect.GetUniqueKeysQuery(target), target, func(rows *sql.Rows) error {
		var tName, kName, cName sql.NullString
		if err := rows.Scan(&tName, &kName, &cName); err != nil {
			return err
		}
		t, ok := tableMap.Get(tName.String)
		if !ok || !cName.Valid {
			return nil
		}
		keys := uniqueKeys[t]
		if keys == nil {
			keys = flexmap.New[*UniqueKey](nil)
			uniqueKeys[t] = keys
		}
		uk, ok := keys.Get(kName.String)
		if !ok {
			uk = &UniqueKey{Name: kName.String}
			keys.Put(kName.String, uk)
		}
		uk.Columns = append(uk.Columns, cName.String)
		return nil
	})
	if ukRead {
		for t, keys := range uniqueKeys {
			t.UniqueKeys = keys.Values()
		}
	}

	// --- Step 5: Fetch Foreign Keys ---
	foreignKeys := make(map[*Table]*flexmap.Map[*ForeignKey])
	err = e.query(ctx, e.Dialect.GetForeignKeysQuery(target), target, func(rows *sql.Rows) error {
		var tName, kName, cName, rTable, rCol sql.NullString
		if err := rows.Scan(&tName, &kName, &cName, &rTable, &rCol); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		t, ok := tableMap.Get(tName.String)
		if !ok || !rTable.Valid {
			return nil
		}
		ref, ok := tableMap.Get(rTable.String)
		if !ok {
			// Only references we can resolve inside the schema are kept.
			logger.Debug("foreign key to unknown table skipped", "table", t.DBName, "fk", kName.String, "ref", rTable.String)
			return nil
		}
		keys := foreignKeys[t]
		if keys == nil {
			keys = flexmap.New[*ForeignKey](nil)
			foreignKeys[t] = keys
		}
		fk, ok := keys.Get(kName.String)
		if !ok {
			fk = &ForeignKey{Name: kName.String, ForeignTable: ref.DBName}
			keys.Put(kName.String, fk)
		}
		fk.LocalColumns = append(fk.LocalColumns, cName.String)
		refCol := rCol.String
		if !rCol.Valid || refCol == "" {
			// Implicit reference to the parent's primary key.
			pos := len(fk.LocalColumns) - 1
			if pos < len(ref.PrimaryKeyColumns) {
				refCol = ref.PrimaryKeyColumns[pos]
			}
		}
		fk.ForeignColumns = append(fk.ForeignColumns, refCol)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	for t, keys := range foreignKeys {
		t.ForeignKeys = keys.Values()
	}

	// --- Step 6: Sequences and Procedures (optional) ---
	var sequences []*Sequence
	if !e.optional(ctx, "sequences", e.Dialect.GetSequencesQuery(target), target, func(rows *sql.Rows) error {
		var name, minV, maxV, inc sql.NullString
		if err := rows.Scan(&name, &minV, &maxV, &inc); err != nil {
			return err
		}
		sequences = append(sequences, &Sequence{Name: name.String, MinimumValue: minV.String, MaximumValue: maxV.String, IncrementSize: inc.String})
		return nil
	}) {
		sequences = nil
	}
	var procedures []*Procedure
	if !e.optional(ctx, "procedures", e.Dialect.GetProceduresQuery(target), target, func(rows *sql.Rows) error {
		var name, typ sql.NullString
		if err := rows.Scan(&name, &typ); err != nil {
			return err
		}
		procedures = append(procedures, &Procedure{Name: name.String, Type: typ.String})
		return nil
	}) {
		procedures = nil
	}

	e.classify(tables)

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	meta := Meta{ProductName: e.Dialect.Name(), SchemaName: target, ExtractedAt: now().Truncate(time.Second)}
	return NewSnapshot(meta, tables, sequences, procedures), nil
}

func (e *Extractor) classify(tables []*Table) {
	if e.Classifier == nil {
		return
	}
	if p, ok := e.Classifier.(ForeignKeyPropagator); ok {
		p.PropagateForeignKeys(tables)
	}
	for _, t := range tables {
		for _, c := range t.Columns {
			if name, ok := e.Classifier.ClassificationOf(t.DBName, c.Name); ok {
				c.ClassificationName = name
			}
		}
	}
}

func (e *Extractor) newColumn(name, dbType string, size, scale sql.NullString, nullable string, def sql.NullString, extra, comment string) *Column {
	typeName, declSize, declScale := SplitTypeSize(dbType)
	col := &Column{
		Name:          name,
		DBType:        typeName,
		LogicalType:   e.Dialect.NormalizeType(typeName),
		Size:          declSize,
		DecimalDigits: declScale,
		Nullable:      strings.EqualFold(nullable, "YES"),
		Comment:       comment,
	}
	if n, ok := parseSize(size); ok {
		col.Size = n
	}
	if n, ok := parseSize(scale); ok {
		col.DecimalDigits = n
	}
	if def.Valid {
		col.DefaultValue = strings.TrimSpace(def.String)
	}
	extraLower := strings.ToLower(extra)
	col.AutoIncrement = strings.Contains(extraLower, "auto_increment") ||
		strings.Contains(extraLower, "identity") ||
		strings.Contains(strings.ToLower(col.DefaultValue), "nextval")
	return col
}

// parseSize reads an integer size that some drivers report as a decimal.
func parseSize(s sql.NullString) (int, bool) {
	if !s.Valid || s.String == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s.String); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s.String, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// SplitTypeSize splits a declared type such as DECIMAL(10, 2) into its name,
// size and decimal digits. Types without parentheses come back unchanged.
func SplitTypeSize(declared string) (string, int, int) {
	declared = strings.TrimSpace(declared)
	open := strings.IndexByte(declared, '(')
	if open < 0 || !strings.HasSuffix(declared, ")") {
		return declared, 0, 0
	}
	name := strings.TrimSpace(declared[:open])
	args := strings.Split(declared[open+1:len(declared)-1], ",")
	size, _ := strconv.Atoi(strings.TrimSpace(args[0]))
	scale := 0
	if len(args) > 1 {
		scale, _ = strconv.Atoi(strings.TrimSpace(args[1]))
	}
	return name, size, scale
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Extractor) query(ctx context.Context, query, target string, scan func(*sql.Rows) error) error {
	rows, err := e.DB.QueryContext(ctx, query, target)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// optional runs an enrichment query and reports whether its rows can be
// used. An empty query means the database does not support the metadata.
func (e *Extractor) optional(ctx context.Context, step, query, target string, scan func(*sql.Rows) error) bool {
	if query == "" {
		return true
	}
	if err := e.query(ctx, query, target, scan); err != nil {
		e.logger().Warn("failed to read optional metadata (continuing...)", "step", step, "error", err)
		return false
	}
	return true
}

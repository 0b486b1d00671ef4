package replaceschema

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"schemaflow/internal/classification"
	"schemaflow/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
)

// FakeDataSet generates Count rows per table. Classified columns get codes
// of their classification and foreign key columns take values from the key
// pool of the referenced table.
type FakeDataSet struct {
	Count    int
	Resolver *classification.Resolver // optional
	Faker    *gofakeit.Faker          // nil means a randomly seeded faker
	Logger   *slog.Logger
	// Now anchors generated dates; zero means time.Now.
	Now time.Time
}

func (f *FakeDataSet) Rows(table *schema.Table, keys KeyPool) ([]Row, error) {
	if table.IsView || f.Count <= 0 {
		return nil, nil
	}
	if f.Faker == nil {
		f.Faker = gofakeit.New(0)
	}
	count := f.maxInsertCount(table)

	var cols []*schema.Column
	var names []string
	for _, c := range table.Columns {
		if !c.AutoIncrement {
			cols = append(cols, c)
			names = append(names, c.Name)
		}
	}

	compositePK := len(table.PrimaryKeyColumns) > 1
	usedPKs := make(map[string]bool)
	usedUnique := make(map[string]map[any]bool)
	for _, c := range cols {
		if table.IsUniqueColumn(c.Name) {
			usedUnique[c.Name] = make(map[any]bool)
		}
	}

	var rows []Row
	for attempt := 1; len(rows) < count && attempt <= count*10; attempt++ {
		values := make([]any, len(cols))
		for i, c := range cols {
			v, err := f.value(table, c, keys, attempt)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}

		if compositePK {
			var pk []string
			for i, c := range cols {
				if table.IsPrimaryKey(c.Name) {
					pk = append(pk, fmt.Sprint(values[i]))
				}
			}
			key := strings.Join(pk, "|")
			if usedPKs[key] {
				continue
			}
			usedPKs[key] = true
		}

		duplicate := false
		for i, c := range cols {
			if used, ok := usedUnique[c.Name]; ok && used[values[i]] {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		for i, c := range cols {
			if used, ok := usedUnique[c.Name]; ok {
				used[values[i]] = true
			}
		}

		rows = append(rows, Row{Columns: names, Values: values})
	}
	if len(rows) < count {
		f.logger().Warn("could not generate enough distinct rows", "table", table.DBName, "generated", len(rows), "target", count)
	}
	return rows, nil
}

// maxInsertCount caps the row count by the range of an integer identity
// column, which the database generates and cannot exceed.
func (f *FakeDataSet) maxInsertCount(table *schema.Table) int {
	limit := f.Count
	for _, c := range table.Columns {
		if !c.AutoIncrement {
			continue
		}
		if typeMax := integerMax(c.DBType); typeMax < limit {
			f.logger().Info("identity column limits the row count", "table", table.DBName, "column", c.Name, "type", c.DBType, "max", typeMax)
			limit = typeMax
		}
	}
	return limit
}

func integerMax(dbType string) int {
	switch strings.ToLower(dbType) {
	case "tinyint":
		return 255
	case "smallint":
		return 32767
	case "mediumint":
		return 8388607
	}
	return 2147483647
}

func (f *FakeDataSet) value(table *schema.Table, c *schema.Column, keys KeyPool, index int) (any, error) {
	for _, fk := range table.ForeignKeys {
		if !fk.IsSimple() || !strings.EqualFold(fk.LocalColumns[0], c.Name) {
			continue
		}
		if pool := keys.of(fk.ForeignTable); len(pool) > 0 {
			if table.IsUniqueColumn(c.Name) {
				return pool[(index-1)%len(pool)], nil
			}
			return pool[f.Faker.Number(0, len(pool)-1)], nil
		}
		// The parent has no rows yet, as on a reference cycle.
		if c.Nullable {
			return nil, nil
		}
		return 1, nil
	}

	if c.ClassificationName != "" && f.Resolver != nil {
		top, ok := f.Resolver.Classification(c.ClassificationName)
		if !ok {
			return nil, fmt.Errorf("column %s.%s: unknown classification %q", table.DBName, c.Name, c.ClassificationName)
		}
		if codes := top.Codes(); len(codes) > 0 {
			return codes[f.Faker.Number(0, len(codes)-1)], nil
		}
	}

	return f.generate(c), nil
}

// generate produces a random value for the column type, shaped by what the
// column name and comment suggest it holds.
func (f *FakeDataSet) generate(c *schema.Column) any {
	fk := f.Faker
	logical := strings.ToLower(c.LogicalType)
	if logical == "" {
		logical = strings.ToLower(c.DBType)
	}
	name := strings.ToLower(c.Name)
	meaning := columnMeaning(c.Name, c.Comment)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(meaning, w) || strings.Contains(name, w) {
				return true
			}
		}
		return false
	}

	switch {
	case strings.Contains(logical, "char"), strings.Contains(logical, "text"),
		strings.Contains(logical, "string"), strings.Contains(logical, "clob"):
		isID := strings.HasSuffix(name, "id")
		switch {
		case has("year"):
			return fmt.Sprintf("%d", fk.Number(2000, 2025))
		case !isID && has("phone"):
			return truncate(fk.Phone(), c.Size)
		case !isID && has("email"):
			return truncate(fk.Email(), c.Size)
		case !isID && has("password"):
			return truncate(fk.Password(true, true, true, false, false, 12), c.Size)
		case !isID && has("url"):
			return truncate(fk.URL(), c.Size)
		case !isID && has("address"):
			return truncate(fk.Street(), c.Size)
		case has("zipcode", "postal"):
			return truncate(fk.Zip(), c.Size)
		case !isID && has("country"):
			return truncate(fk.Country(), c.Size)
		case !isID && has("city"):
			return truncate(fk.City(), c.Size)
		case !isID && has("name", "first", "last"):
			if c.Size > 0 && c.Size < 3 {
				return truncate(fk.LastName(), c.Size)
			}
			return truncate(fk.Name(), c.Size)
		case has("yesno", "flag", "active"):
			if fk.Bool() {
				return "Y"
			}
			return "N"
		case !isID && has("title", "subject"):
			return truncate(fk.Sentence(3), c.Size)
		case !isID && has("description", "comment", "message", "text", "note"):
			return truncate(fk.Sentence(10), c.Size)
		case c.Size > 0 && c.Size < 20:
			return truncate(fk.Word(), c.Size)
		}
		return truncate(fk.Sentence(5), c.Size)

	case strings.Contains(logical, "date"), strings.Contains(logical, "time"):
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		v := fk.DateRange(now.AddDate(-1, 0, 0), now)
		switch logical {
		case "date":
			return v.Format("2006-01-02")
		case "time":
			return v.Format("15:04:05")
		}
		return v.Format("2006-01-02 15:04:05")

	case strings.Contains(logical, "int"):
		if has("yesno", "flag", "active", "enabled") {
			return fk.Number(0, 1)
		}
		if strings.Contains(logical, "tinyint") {
			return fk.Number(0, 127)
		}
		if strings.Contains(logical, "smallint") {
			return fk.Number(1, 30000)
		}
		if has("year") {
			return fk.Number(2000, 2025)
		}
		upper := 50000
		if c.Size > 0 && c.Size < 5 {
			upper = 1
			for i := 0; i < c.Size; i++ {
				upper *= 10
			}
			upper--
		}
		return fk.Number(1, upper)

	case strings.Contains(logical, "decimal"), strings.Contains(logical, "numeric"),
		strings.Contains(logical, "float"), strings.Contains(logical, "double"), strings.Contains(logical, "real"):
		return fk.Price(0.99, 99.99)

	case strings.Contains(logical, "bool"), strings.Contains(logical, "bit"):
		return fk.Bool()

	case strings.Contains(logical, "binary"), strings.Contains(logical, "blob"), strings.Contains(logical, "bytea"):
		return []byte(fk.Word())
	}
	if c.Nullable {
		return nil
	}
	return fk.Word()
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

func (f *FakeDataSet) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

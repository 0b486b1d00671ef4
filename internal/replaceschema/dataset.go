package replaceschema

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"schemaflow/internal/schema"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Row is one record to insert. Columns and Values are parallel.
type Row struct {
	Columns []string
	Values  []any
}

// KeyPool holds the primary key values already loaded, by upper-case table
// name. Only tables with a single-column primary key are pooled.
type KeyPool map[string][]any

func (p KeyPool) of(table string) []any { return p[strings.ToUpper(table)] }

// DataSet supplies the rows of each table. Rows returns nil when the data set
// has nothing for the table.
type DataSet interface {
	Rows(table *schema.Table, keys KeyPool) ([]Row, error)
}

// YAMLDataSet reads every *.yaml file of Dir. A file maps table names to
// lists of rows; the column order of the first appearance of each column is
// kept:
//
//	MEMBER_STATUS:
//	  - MEMBER_STATUS_CODE: FML
//	    MEMBER_STATUS_NAME: Formalized
type YAMLDataSet struct {
	FS  afero.Fs
	Dir string

	once   sync.Once
	tables map[string][]Row
	err    error
}

func (y *YAMLDataSet) Rows(table *schema.Table, _ KeyPool) ([]Row, error) {
	y.once.Do(func() { y.tables, y.err = y.load() })
	if y.err != nil {
		return nil, y.err
	}
	return y.tables[strings.ToUpper(table.DBName)], nil
}

// Tables returns the upper-case table names present in the data files.
func (y *YAMLDataSet) Tables() ([]string, error) {
	y.once.Do(func() { y.tables, y.err = y.load() })
	if y.err != nil {
		return nil, y.err
	}
	names := make([]string, 0, len(y.tables))
	for name := range y.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (y *YAMLDataSet) load() (map[string][]Row, error) {
	files, err := afero.Glob(y.FS, filepath.Join(y.Dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	tables := make(map[string][]Row)
	for _, path := range files {
		data, err := afero.ReadFile(y.FS, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
		}
		if err := decodeTables(data, tables); err != nil {
			return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
		}
	}
	return tables, nil
}

func decodeTables(data []byte, into map[string][]Row) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of table names", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		name, rows := root.Content[i], root.Content[i+1]
		if rows.Kind != yaml.SequenceNode {
			return fmt.Errorf("line %d: rows of %s must be a list", rows.Line, name.Value)
		}
		key := strings.ToUpper(name.Value)
		for _, rowNode := range rows.Content {
			row, err := decodeRow(rowNode)
			if err != nil {
				return fmt.Errorf("table %s: %w", name.Value, err)
			}
			into[key] = append(into[key], row)
		}
	}
	return nil
}

func decodeRow(n *yaml.Node) (Row, error) {
	if n.Kind != yaml.MappingNode {
		return Row{}, fmt.Errorf("line %d: a row must be a mapping of columns", n.Line)
	}
	var row Row
	for i := 0; i+1 < len(n.Content); i += 2 {
		var v any
		if err := n.Content[i+1].Decode(&v); err != nil {
			return Row{}, err
		}
		row.Columns = append(row.Columns, n.Content[i].Value)
		row.Values = append(row.Values, v)
	}
	return row, nil
}

package replaceschema_test

import (
	"testing"

	"schemaflow/internal/replaceschema"
	"schemaflow/internal/schema"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLDataSet_Rows(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "data/b.yaml", []byte(`
member:
  - MEMBER_ID: 3
    MEMBER_NAME: Later
`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "data/a.yaml", []byte(`
MEMBER:
  - MEMBER_NAME: First
    MEMBER_ID: 1
    BIRTHDATE: null
  - MEMBER_ID: 2
MEMBER_STATUS: []
`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "data/readme.txt", []byte("not data"), 0o644))

	ds := &replaceschema.YAMLDataSet{FS: fs, Dir: "data"}
	rows, err := ds.Rows(&schema.Table{DBName: "Member"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"MEMBER_NAME", "MEMBER_ID", "BIRTHDATE"}, rows[0].Columns)
	assert.Equal(t, []any{"First", 1, nil}, rows[0].Values)
	assert.Equal(t, []string{"MEMBER_ID"}, rows[1].Columns)
	assert.Equal(t, "Later", rows[2].Values[1])

	none, err := ds.Rows(&schema.Table{DBName: "PURCHASE"}, nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	tables, err := ds.Tables()
	require.NoError(t, err)
	assert.Equal(t, []string{"MEMBER"}, tables)
}

func TestYAMLDataSet_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"not a mapping", "- MEMBER\n", "expected a mapping of table names"},
		{"rows not a list", "MEMBER:\n  MEMBER_ID: 1\n", "rows of MEMBER must be a list"},
		{"row not a mapping", "MEMBER:\n  - 1\n", "a row must be a mapping of columns"},
		{"broken yaml", "MEMBER: [\n", "failed to parse data file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "data/x.yaml", []byte(tt.content), 0o644))

			ds := &replaceschema.YAMLDataSet{FS: fs, Dir: "data"}
			_, err := ds.Rows(&schema.Table{DBName: "MEMBER"}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "x.yaml")
		})
	}
}

func TestYAMLDataSet_EmptyDir(t *testing.T) {
	ds := &replaceschema.YAMLDataSet{FS: afero.NewMemMapFs(), Dir: "missing"}
	rows, err := ds.Rows(&schema.Table{DBName: "MEMBER"}, nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
}

package config_test

import (
	"testing"

	"schemaflow/internal/classification"
	"schemaflow/internal/config"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
project: maihamadb
databases:
  - name: local
    driver: mysql
    dsn: "root:root@tcp(127.0.0.1:3306)/maihamadb"
    schema: maihamadb
    active: true
  - name: ci
    driver: sqlite
    dsn: ":memory:"
diff:
  snapshotFile: ./schema/snapshot-maihamadb.yaml
  pieceDir: ./schema/diffpiece
  historyLimit: 20
classification:
  undefinedHandling: exception
  definitions:
    - name: MemberStatus
      relatedColumnHint: MEMBER_STATUS_CODE
      elements:
        - {code: FML, name: Formalized, alias: Formal Member}
        - {code: WDL, name: Withdrawal}
    - name: ServiceRank
      refCls: MemberStatus
  deployment:
    - {table: MEMBER_STATUS, column: MEMBER_STATUS_CODE, classification: MemberStatus}
replaceSchema:
  requiredTables: [MEMBER_STATUS]
  rollback: true
`

func load(t *testing.T, content string) *config.Config {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/schemaflow.yaml", []byte(content), 0o644))

	v := viper.New()
	v.SetFs(fs)
	config.SetDefaults(v)
	used, err := config.ReadInConfig(v, "/work/schemaflow.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/work/schemaflow.yaml", used)

	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func TestLoad(t *testing.T) {
	cfg := load(t, sample)

	assert.Equal(t, "maihamadb", cfg.Project)
	require.Len(t, cfg.Databases, 2)
	assert.Equal(t, "maihamadb", cfg.Databases[0].Schema)

	assert.Equal(t, "./schema/snapshot-maihamadb.yaml", cfg.Diff.SnapshotFile)
	assert.Equal(t, 20, cfg.Diff.HistoryLimit)
	assert.Equal(t, config.StylePiece, cfg.Diff.Style)
	assert.Equal(t, "schema/project-history-maihamadb.diffmap", cfg.Diff.HistoryFile)

	require.Len(t, cfg.Classification.Definitions, 2)
	assert.Equal(t, "Formal Member", cfg.Classification.Definitions[0].Elements[0].Alias)
	assert.Equal(t, "MemberStatus", cfg.Classification.Definitions[1].RefCls)
	assert.Equal(t, []classification.Deployment{
		{Table: "MEMBER_STATUS", Column: "MEMBER_STATUS_CODE", Classification: "MemberStatus"},
	}, cfg.Classification.Deployment)

	assert.Equal(t, "./playsql/data", cfg.ReplaceSchema.DataDir)
	assert.Equal(t, []string{"MEMBER_STATUS"}, cfg.ReplaceSchema.RequiredTables)
	assert.True(t, cfg.ReplaceSchema.Rollback)
	assert.Equal(t, 100, cfg.ReplaceSchema.FakeCount)
}

func TestConfig_GetActiveDB(t *testing.T) {
	cfg := load(t, sample)
	db, err := cfg.GetActiveDB()
	require.NoError(t, err)
	assert.Equal(t, "local", db.Name)

	cfg.Databases[1].Active = true
	_, err = cfg.GetActiveDB()
	assert.ErrorContains(t, err, "multiple active databases")

	cfg.Databases = nil
	_, err = cfg.GetActiveDB()
	assert.ErrorContains(t, err, "no active database")
}

func TestConfig_Resolver(t *testing.T) {
	cfg := load(t, sample)
	r, err := cfg.Resolver(nil)
	require.NoError(t, err)

	cls, ok := r.ClassificationOf("PURCHASE", "MEMBER_STATUS_CODE")
	require.True(t, ok, "related column hint applies to every table")
	assert.Equal(t, "MemberStatus", cls)

	err = r.CheckColumnCode("MEMBER_STATUS", "MEMBER_STATUS_CODE", "XXX")
	assert.ErrorIs(t, err, classification.ErrUndefinedClassificationCode)

	rank, ok := r.Classification("ServiceRank")
	require.True(t, ok)
	assert.Equal(t, []string{"FML", "WDL"}, rank.Codes())
}

func TestConfig_ResolverRejectsUnknownHandling(t *testing.T) {
	cfg := load(t, "classification:\n  undefinedHandling: ignore\n")
	_, err := cfg.Resolver(nil)
	assert.ErrorContains(t, err, "ignore")
}

func TestLoad_UnknownStyle(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/schemaflow.yaml", []byte("diff:\n  style: zip\n"), 0o644))
	v := viper.New()
	v.SetFs(fs)
	config.SetDefaults(v)
	_, err := config.ReadInConfig(v, "/schemaflow.yaml")
	require.NoError(t, err)

	_, err = config.Load(v)
	assert.ErrorContains(t, err, `unknown diff style "zip"`)
}

func TestReadInConfig_MissingExplicitFile(t *testing.T) {
	v := viper.New()
	v.SetFs(afero.NewMemMapFs())
	_, err := config.ReadInConfig(v, "/nowhere/schemaflow.yaml")
	assert.Error(t, err)
}

package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const workspaceDDL = `
CREATE TABLE MEMBER_STATUS (
    MEMBER_STATUS_CODE CHAR(3) NOT NULL PRIMARY KEY,
    MEMBER_STATUS_NAME VARCHAR(50) NOT NULL
);
CREATE TABLE MEMBER (
    MEMBER_ID INTEGER PRIMARY KEY,
    MEMBER_NAME VARCHAR(200) NOT NULL,
    MEMBER_STATUS_CODE CHAR(3) NOT NULL REFERENCES MEMBER_STATUS(MEMBER_STATUS_CODE)
);
`

const workspaceConfig = `
project: maihamadb
databases:
  - name: local
    driver: sqlite
    dsn: {{dir}}/maihama.db
    active: true
diff:
  snapshotFile: {{dir}}/schema/snapshot.yaml
  pieceDir: {{dir}}/schema/diffpiece
classification:
  undefinedHandling: exception
  definitions:
    - name: MemberStatus
      elements:
        - {code: FML, name: Formalized}
        - {code: PRV, name: Provisional}
  deployment:
    - {table: MEMBER_STATUS, column: MEMBER_STATUS_CODE, classification: MemberStatus}
replaceSchema:
  dataDir: {{dir}}/data
  requiredTables: [MEMBER_STATUS, MEMBER]
sql:
  directory: {{dir}}/sql
`

const workspaceData = `
MEMBER_STATUS:
  - {MEMBER_STATUS_CODE: FML, MEMBER_STATUS_NAME: Formalized}
  - {MEMBER_STATUS_CODE: PRV, MEMBER_STATUS_NAME: Provisional}
MEMBER:
  - {MEMBER_ID: 1, MEMBER_NAME: Stojkovic, MEMBER_STATUS_CODE: FML}
`

type workspace struct {
	dir    string
	config string
	db     *sql.DB
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(content, "{{dir}}", dir)), 0o644))
	}
	write("schemaflow.yaml", workspaceConfig)
	write("data/10-member.yaml", workspaceData)
	write("sql/MemberBhv_selectMember.sql", `-- !df:pmb!
-- !!Integer memberId!!
select * from MEMBER
/*BEGIN*/where
  /*IF pmb.memberId != null*/MEMBER_ID = /*pmb.memberId*/3/*END*/
/*END*/`)

	db, err := sql.Open("sqlite", filepath.Join(dir, "maihama.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range strings.Split(workspaceDDL, ";") {
		if strings.TrimSpace(stmt) != "" {
			_, err := db.Exec(stmt)
			require.NoError(t, err)
		}
	}
	return &workspace{dir: dir, config: filepath.Join(dir, "schemaflow.yaml"), db: db}
}

// run executes the root command with fresh flag values.
func (w *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, dsn, driverName, schemaName = "", "", "", ""
	diffDryRun = false
	renderParams, renderParamsFile, renderDialect, renderLimit = nil, "", "", 0
	replaceRollback, replaceNoProgress = false, false
	cleanTables = nil
	fillCount, fillClean, fillDryRun, fillTables, fillSeed, fillNoProgress = 0, false, false, nil, 0, false
	generateOut, generatePackage, generateFromDB = "./cls/classification.go", "cls", false
	FS = afero.NewOsFs()

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(append(args, "--config", w.config))
	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (w *workspace) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, w.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestReplaceSchemaCommand(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "replace-schema", "--rollback", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Rolled back.")
	assert.Zero(t, w.count(t, "MEMBER_STATUS"))

	out, err = w.run(t, "replace-schema", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Total rows: 3")
	assert.Equal(t, 2, w.count(t, "MEMBER_STATUS"))
	assert.Equal(t, 1, w.count(t, "MEMBER"))

	out, err = w.run(t, "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleaned 2 tables.")
	assert.Zero(t, w.count(t, "MEMBER"))

	_, err = w.run(t, "replace-schema", "--no-progress")
	require.NoError(t, err)
	_, err = w.db.Exec("DELETE FROM MEMBER")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(w.dir, "data/10-member.yaml")))
	require.NoError(t, os.WriteFile(filepath.Join(w.dir, "data/10-status.yaml"), []byte(`
MEMBER_STATUS:
  - {MEMBER_STATUS_CODE: FML, MEMBER_STATUS_NAME: Formalized}
`), 0o644))
	_, err = w.run(t, "replace-schema", "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[Empty Tables]\nMEMBER\n")
}

func TestDiffAndHistoryCommands(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No history.")

	out, err = w.run(t, "diff")
	require.NoError(t, err)
	assert.Contains(t, out, "2 tables added")
	pieces, err := filepath.Glob(filepath.Join(w.dir, "schema/diffpiece/*/diffpiece-maihamadb-*.diffmap"))
	require.NoError(t, err)
	assert.Len(t, pieces, 1)
	assert.FileExists(t, filepath.Join(w.dir, "schema/snapshot.yaml"))

	out, err = w.run(t, "diff")
	require.NoError(t, err)
	assert.Contains(t, out, "No schema change.")

	out, err = w.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "MEMBER_STATUS")
	assert.True(t, strings.HasPrefix(out, "* "), out)
}

func TestSQLCommands(t *testing.T) {
	w := newWorkspace(t)
	file := filepath.Join(w.dir, "sql/MemberBhv_selectMember.sql")

	out, err := w.run(t, "sql", "render", file, "-p", "memberId=3", "--dialect", "postgres")
	require.NoError(t, err)
	assert.Contains(t, out, "MEMBER_ID = $1")
	assert.Contains(t, out, "-- bind 1: 3")

	out, err = w.run(t, "sql", "render", file)
	require.NoError(t, err)
	assert.NotContains(t, out, "where")

	out, err = w.run(t, "sql", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 1 files, 0 with problems.")

	require.NoError(t, os.WriteFile(filepath.Join(w.dir, "sql/Broken.sql"),
		[]byte("select * from MEMBER where /*IF pmb.a = 1*/x/*END*/ and /*BEGIN*/y"), 0o644))
	out, err = w.run(t, "sql", "check")
	require.Error(t, err)
	assert.Contains(t, out, "Broken.sql")
	assert.Contains(t, out, "Checked 2 files, 1 with problems.")

	out, err = w.run(t, "sql", "render", file, "--limit", "5")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "LIMIT 5"), out)

	out, err = w.run(t, "sql", "render", file, "-p", "memberId=3", "--dialect", "oracle", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT * FROM (")
	assert.Contains(t, out, ") WHERE ROWNUM <= 5")
	assert.Contains(t, out, "MEMBER_ID = :1")

	_, err = w.run(t, "sql", "render", file, "-p", "novalue")
	assert.ErrorContains(t, err, "NAME=VALUE")
}

func TestGenerateCommand(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "diff")
	require.NoError(t, err)

	target := filepath.Join(w.dir, "gen/cls/classification.go")
	out, err := w.run(t, "generate", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 1 classifications")

	src, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(src), "package cls")
	assert.Contains(t, string(src), "MemberStatusFormalized")
	assert.Contains(t, string(src), `"MEMBER.MEMBER_STATUS_CODE"`)
}

func TestDetectDriver(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost/maihamadb":    "postgres",
		"host=localhost sslmode=disable":        "postgres",
		"sqlserver://sa:pw@localhost?database=x": "sqlserver",
		"oracle://u:p@localhost:1521/XE":        "oracle",
		":memory:":                              "sqlite",
		"/tmp/maihama.db":                       "sqlite",
		"root:root@tcp(127.0.0.1:3306)/maihama": "mysql",
	}
	for dsn, want := range tests {
		assert.Equal(t, want, detectDriver(dsn), dsn)
	}
}

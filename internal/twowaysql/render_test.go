package twowaysql_test

import (
	"reflect"
	"testing"

	"schemaflow/internal/twowaysql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memberSearchSQL = "select * from MEMBER\n" +
	"/*BEGIN*/where\n" +
	"  /*IF pmb.memberId != null*/MEMBER_ID = /*pmb.memberId*/3/*END*/\n" +
	"  /*IF pmb.memberName != null*/and MEMBER_NAME like /*pmb.memberName*/'S%'/*END*/\n" +
	"/*END*/"

func pmb(kv ...any) map[string]any {
	m := make(map[string]any)
	for i := 0; i < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return map[string]any{"pmb": m}
}

func TestRender_BindVariable(t *testing.T) {
	bound, err := twowaysql.Render("select * from MEMBER where MEMBER_ID = /*pmb.memberId*/3", pmb("memberId", 7))
	require.NoError(t, err)
	assert.Equal(t, "select * from MEMBER where MEMBER_ID = ?", bound.SQL)
	assert.Equal(t, []any{7}, bound.Binds)
	assert.Equal(t, []reflect.Type{reflect.TypeOf(7)}, bound.BindTypes)
}

func TestRender_BeginStripsLeadingConnector(t *testing.T) {
	tmpl, err := twowaysql.Parse(memberSearchSQL)
	require.NoError(t, err)

	tests := []struct {
		name  string
		args  map[string]any
		sql   string
		binds []any
	}{
		{
			name:  "both",
			args:  pmb("memberId", 3, "memberName", "S%"),
			sql:   "select * from MEMBER\nwhere\n  MEMBER_ID = ?\n  and MEMBER_NAME like ?\n",
			binds: []any{3, "S%"},
		},
		{
			name:  "second only",
			args:  pmb("memberId", nil, "memberName", "S%"),
			sql:   "select * from MEMBER\nwhere\n  \n  MEMBER_NAME like ?\n",
			binds: []any{"S%"},
		},
		{
			name: "none",
			args: pmb("memberId", nil, "memberName", nil),
			sql:  "select * from MEMBER\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bound, err := tmpl.Render(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, bound.SQL)
			assert.Equal(t, tt.binds, bound.Binds)
			for _, directive := range []string{"/*IF", "/*BEGIN*/", "/*END*/", "'S%'"} {
				assert.NotContains(t, bound.SQL, directive)
			}
		})
	}
}

func TestRender_BeginEnabledByBindVariable(t *testing.T) {
	sql := "select * from MEMBER /*BEGIN*/where MEMBER_NAME = /*pmb.memberName*/'x'/*END*/"

	bound, err := twowaysql.Render(sql, pmb("memberName", "Stojkovic"))
	require.NoError(t, err)
	assert.Equal(t, "select * from MEMBER where MEMBER_NAME = ?", bound.SQL)

	bound, err = twowaysql.Render(sql, pmb("memberName", ""))
	require.NoError(t, err)
	assert.Equal(t, "select * from MEMBER ", bound.SQL)
	assert.Empty(t, bound.Binds)
}

func TestRender_NestedBeginDoesNotEnableOuter(t *testing.T) {
	sql := "select 1 /*BEGIN*/where /*BEGIN*/x = /*pmb.a*/1/*END*//*END*/"
	bound, err := twowaysql.Render(sql, pmb("a", 5))
	require.NoError(t, err)
	assert.Equal(t, "select 1 ", bound.SQL)
	assert.Empty(t, bound.Binds)
}

func TestRender_Else(t *testing.T) {
	sql := "select * from PURCHASE order by\n" +
		"/*IF pmb.latest*/\nPURCHASE_DATETIME desc\n-- ELSE\nPURCHASE_ID\n/*END*/"

	bound, err := twowaysql.Render(sql, pmb("latest", true))
	require.NoError(t, err)
	assert.Equal(t, "select * from PURCHASE order by\n\nPURCHASE_DATETIME desc\n", bound.SQL)

	bound, err = twowaysql.Render(sql, pmb("latest", false))
	require.NoError(t, err)
	assert.Equal(t, "select * from PURCHASE order by\n\nPURCHASE_ID\n", bound.SQL)
}

func TestRender_For(t *testing.T) {
	sql := "select * from MEMBER where\n" +
		"/*FOR pmb.names*//*FIRST*/(/*END*//*NEXT ' or '*/MEMBER_NAME like /*#current*/'foo%'/*LAST*/)/*END*//*END*/"

	bound, err := twowaysql.Render(sql, pmb("names", []string{"A%", "B%", "C%"}))
	require.NoError(t, err)
	assert.Equal(t,
		"select * from MEMBER where\n(MEMBER_NAME like ? or MEMBER_NAME like ? or MEMBER_NAME like ?)",
		bound.SQL)
	assert.Equal(t, []any{"A%", "B%", "C%"}, bound.Binds)

	bound, err = twowaysql.Render(sql, pmb("names", []string{}))
	require.NoError(t, err)
	assert.Equal(t, "select * from MEMBER where\n", bound.SQL)

	_, err = twowaysql.Render(sql, pmb("names", "A%"))
	var notList *twowaysql.ForCommentNotListError
	require.ErrorAs(t, err, &notList)
	assert.ErrorIs(t, err, twowaysql.ErrTemplateEvaluation)
}

func TestRender_ForInsideBeginEnablesIt(t *testing.T) {
	sql := "select * from MEMBER /*BEGIN*/where /*FOR pmb.ids*//*NEXT 'or '*/MEMBER_ID = /*#current*/1 /*END*//*END*/"

	bound, err := twowaysql.Render(sql, pmb("ids", []any{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, "select * from MEMBER where MEMBER_ID = ? or MEMBER_ID = ? ", bound.SQL)
	assert.Equal(t, []reflect.Type{reflect.TypeOf(1), reflect.TypeOf(1)}, bound.BindTypes)

	bound, err = twowaysql.Render(sql, pmb("ids", nil))
	require.NoError(t, err)
	assert.Equal(t, "select * from MEMBER ", bound.SQL)
}

func TestRender_InList(t *testing.T) {
	sql := "select * from MEMBER where MEMBER_STATUS_CODE in /*pmb.statuses*/('FML', 'PRV')"

	bound, err := twowaysql.Render(sql, pmb("statuses", []string{"FML", "PRV", "WDL"}))
	require.NoError(t, err)
	assert.Equal(t, "select * from MEMBER where MEMBER_STATUS_CODE in (?, ?, ?)", bound.SQL)
	assert.Equal(t, []any{"FML", "PRV", "WDL"}, bound.Binds)

	_, err = twowaysql.Render(sql, pmb("statuses", []string{}))
	var empty *twowaysql.EmptyInScopeError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "pmb.statuses", empty.Expression)
}

func TestRender_EmbeddedVariable(t *testing.T) {
	bound, err := twowaysql.Render("select * from /*$pmb.table*/MEMBER where NAME = /*$pmb.name*/'x'",
		pmb("table", "PURCHASE", "name", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "select * from PURCHASE where NAME = 'abc'", bound.SQL)
	assert.Empty(t, bound.Binds)

	_, err = twowaysql.Render("where NAME = /*$pmb.name*/'x'", pmb("name", "a'b"))
	var embedded *twowaysql.EmbeddedValueError
	require.ErrorAs(t, err, &embedded)

	_, err = twowaysql.Render("where NAME = /*$pmb.name*/x", pmb("name", "a ?"))
	require.ErrorAs(t, err, &embedded)
}

func TestRender_SoleBindingFallback(t *testing.T) {
	sql := "select * from MEMBER where MEMBER_ID = /*id*/1"

	bound, err := twowaysql.Render(sql, map[string]any{"memberId": 5})
	require.NoError(t, err)
	assert.Equal(t, []any{5}, bound.Binds)

	_, err = twowaysql.Render(sql, map[string]any{"memberId": 5, "memberName": "x"})
	var notFound *twowaysql.PropertyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "id", notFound.Property)
}

type searchPmb struct {
	MemberName string
	Paging     bool
	StatusList []string
}

func (p searchPmb) FetchSize() int { return 20 }

func TestRender_StructProperties(t *testing.T) {
	sql := "select * from MEMBER where\n" +
		"/*IF pmb.getMemberName() != null && !pmb.isPaging()*/MEMBER_NAME = /*pmb.memberName*/'x'/*END*/" +
		" fetch first /*pmb.fetchSize*/10 rows only"

	bound, err := twowaysql.Render(sql, map[string]any{"pmb": &searchPmb{MemberName: "Pixy"}})
	require.NoError(t, err)
	assert.Equal(t, "select * from MEMBER where\nMEMBER_NAME = ? fetch first ? rows only", bound.SQL)
	assert.Equal(t, []any{"Pixy", 20}, bound.Binds)

	_, err = twowaysql.Render("where x = /*pmb.unknown*/1", map[string]any{"pmb": searchPmb{}})
	var notFound *twowaysql.PropertyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "unknown", notFound.Property)
}

func TestRender_IfComparisons(t *testing.T) {
	tests := []struct {
		cond string
		args map[string]any
		want bool
	}{
		{"pmb.status == 'FML'", pmb("status", "FML"), true},
		{"pmb.status != 'FML'", pmb("status", "FML"), false},
		{"pmb.count == 3", pmb("count", int64(3)), true},
		{"pmb.a || pmb.b", pmb("a", false, "b", true), true},
		{"pmb.a && pmb.b", pmb("a", true, "b", false), false},
		{"pmb.member.name == null", pmb("member", nil), true},
		{"pmb.flag == true", pmb("flag", true), true},
		{"pmb.missing == null", pmb(), true},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			bound, err := twowaysql.Render("/*IF "+tt.cond+"*/x/*END*/", tt.args)
			require.NoError(t, err)
			if tt.want {
				assert.Equal(t, "x", bound.SQL)
			} else {
				assert.Empty(t, bound.SQL)
			}
		})
	}
}

func TestRender_IfShortCircuits(t *testing.T) {
	bound, err := twowaysql.Render("/*IF pmb.member != null && pmb.member.name == 'x'*/y/*END*/", pmb("member", nil))
	require.NoError(t, err)
	assert.Empty(t, bound.SQL)
}

func TestRender_IfNotBoolean(t *testing.T) {
	_, err := twowaysql.Render("/*IF pmb.memberName*/x/*END*/", pmb("memberName", "abc"))
	var notBoolean *twowaysql.IfCommentNotBooleanError
	require.ErrorAs(t, err, &notBoolean)
	assert.Equal(t, "pmb.memberName", notBoolean.Expression)
}

func TestRender_Placeholder(t *testing.T) {
	bound, err := twowaysql.Render(memberSearchSQL, pmb("memberId", 3, "memberName", "S%"),
		twowaysql.WithPlaceholder(twowaysql.DollarPlaceholder))
	require.NoError(t, err)
	assert.Equal(t, "select * from MEMBER\nwhere\n  MEMBER_ID = $1\n  and MEMBER_NAME like $2\n", bound.SQL)
}

func TestRender_KeepsPlainCommentsAndLiterals(t *testing.T) {
	sql := "select /*+ FIRST_ROWS */ '/*IF x*/' /* note */ from dual"
	bound, err := twowaysql.Render(sql, nil)
	require.NoError(t, err)
	assert.Equal(t, sql, bound.SQL)
}

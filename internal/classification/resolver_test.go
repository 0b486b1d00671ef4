package classification_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"schemaflow/internal/classification"
	"schemaflow/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func definitions(t *testing.T) *classification.Definitions {
	t.Helper()
	defs, err := classification.NewDefinitions(
		&classification.Top{Name: "MemberStatus", Elements: []classification.Element{
			{Code: "FML", Name: "Formalized", Alias: "Formal member"},
			{Code: "WDL", Name: "Withdrawal"},
			{Code: "PRV", Name: "Provisional"},
		}},
		&classification.Top{Name: "Flag", Elements: []classification.Element{
			{Code: "1", Name: "True"},
			{Code: "0", Name: "False"},
		}},
		&classification.Top{Name: "PaymentMethod", Elements: []classification.Element{
			{Code: "HAN", Name: "ByHand"},
			{Code: "BAK", Name: "BankTransfer"},
		}},
	)
	require.NoError(t, err)
	return defs
}

func TestResolver_HintResolution(t *testing.T) {
	r, err := classification.NewResolver(definitions(t), []classification.Deployment{
		{Table: "MEMBER", Column: "MEMBER_STATUS_CODE", Classification: "MemberStatus"},
		{Table: "PURCHASE", Column: "*_FLG", Classification: "Flag"},
	})
	require.NoError(t, err)

	cls, ok := r.ClassificationOf("PURCHASE", "DELETE_FLG")
	require.True(t, ok)
	assert.Equal(t, "Flag", cls)

	cls, ok = r.ClassificationOf("member", "memberStatusCode")
	require.True(t, ok, "flexible column match")
	assert.Equal(t, "MemberStatus", cls)

	_, ok = r.ClassificationOf("MEMBER", "MEMBER_NAME")
	assert.False(t, ok, "no $$ALL$$ fallback")
	_, ok = r.ClassificationOf("UNKNOWN_TABLE", "DELETE_FLG")
	assert.False(t, ok)
}

func TestResolver_HintForms(t *testing.T) {
	r, err := classification.NewResolver(definitions(t), []classification.Deployment{
		{Table: "T", Column: "prefix:PAY_", Classification: "PaymentMethod"},
		{Table: "T", Column: "suffix:_flg", Classification: "Flag"},
		{Table: "T", Column: "contain:STATUS", Classification: "MemberStatus"},
		{Table: "T", Column: "IS_*", Classification: "Flag"},
	})
	require.NoError(t, err)

	cases := map[string]string{
		"PAY_METHOD":       "PaymentMethod",
		"VALID_FLG":        "Flag",
		"OLD_STATUS_CODE":  "MemberStatus",
		"is_active":        "Flag",
		"PAY_STATUS":       "PaymentMethod", // first matching hint wins
		"STATUS_VALID_FLG": "Flag",
	}
	for column, want := range cases {
		got, ok := r.ClassificationOf("T", column)
		require.True(t, ok, column)
		assert.Equal(t, want, got, column)
	}
}

func TestResolver_AllTablesAfterTableEntries(t *testing.T) {
	r, err := classification.NewResolver(definitions(t), []classification.Deployment{
		{Table: classification.AllTables, Column: "suffix:_FLG", Classification: "Flag"},
		{Table: classification.AllTables, Column: "MEMBER_STATUS_CODE", Classification: "MemberStatus"},
		{Table: "PURCHASE", Column: "PAYMENT_FLG", Classification: "PaymentMethod"},
	})
	require.NoError(t, err)

	cls, _ := r.ClassificationOf("PURCHASE", "PAYMENT_FLG")
	assert.Equal(t, "PaymentMethod", cls, "table entry overrides $$ALL$$")
	cls, _ = r.ClassificationOf("PURCHASE", "DELETE_FLG")
	assert.Equal(t, "Flag", cls)
	cls, _ = r.ClassificationOf("ANY_TABLE", "MEMBER_STATUS_CODE")
	assert.Equal(t, "MemberStatus", cls)
}

func TestResolver_RegisterFirstWins(t *testing.T) {
	r, err := classification.NewResolver(definitions(t), nil)
	require.NoError(t, err)

	assert.True(t, r.Register("MEMBER", "MEMBER_STATUS_CODE", "MemberStatus"))
	assert.False(t, r.Register("member", "member_status_code", "Flag"))
	assert.True(t, r.Register("MEMBER", "*_FLG", "Flag"))
	assert.False(t, r.Register("MEMBER", "*_flg", "PaymentMethod"))

	cls, _ := r.ClassificationOf("MEMBER", "MEMBER_STATUS_CODE")
	assert.Equal(t, "MemberStatus", cls)
	cls, _ = r.ClassificationOf("MEMBER", "DELETE_FLG")
	assert.Equal(t, "Flag", cls)
}

func TestResolver_RelatedColumnHint(t *testing.T) {
	defs, err := classification.NewDefinitions(&classification.Top{
		Name:              "Flag",
		RelatedColumnHint: "suffix:_FLG",
		Elements:          []classification.Element{{Code: "1"}, {Code: "0"}},
	})
	require.NoError(t, err)
	r, err := classification.NewResolver(defs, nil)
	require.NoError(t, err)

	cls, ok := r.ClassificationOf("WHATEVER", "VALID_FLG")
	require.True(t, ok)
	assert.Equal(t, "Flag", cls)
}

func TestResolver_UnknownClassification(t *testing.T) {
	_, err := classification.NewResolver(definitions(t), []classification.Deployment{
		{Table: "MEMBER", Column: "X", Classification: "Nope"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nope")
}

func TestResolver_PropagateForeignKeys(t *testing.T) {
	status := &schema.Table{DBName: "MEMBER_STATUS", PrimaryKeyColumns: []string{"MEMBER_STATUS_CODE"}}
	member := &schema.Table{
		DBName:            "MEMBER",
		PrimaryKeyColumns: []string{"MEMBER_ID"},
		ForeignKeys: []*schema.ForeignKey{{
			Name: "FK_MEMBER_STATUS", LocalColumns: []string{"MEMBER_STATUS_CODE"},
			ForeignColumns: []string{"MEMBER_STATUS_CODE"}, ForeignTable: "MEMBER_STATUS",
		}},
	}
	// a chain: history -> member status alias table -> member status
	alias := &schema.Table{
		DBName:            "STATUS_ALIAS",
		PrimaryKeyColumns: []string{"ALIAS_CODE"},
		ForeignKeys: []*schema.ForeignKey{{
			Name: "FK_ALIAS", LocalColumns: []string{"ALIAS_CODE"},
			ForeignColumns: []string{"MEMBER_STATUS_CODE"}, ForeignTable: "MEMBER_STATUS",
		}},
	}
	history := &schema.Table{
		DBName: "HISTORY",
		ForeignKeys: []*schema.ForeignKey{
			{Name: "FK_HIST_ALIAS", LocalColumns: []string{"OLD_CODE"}, ForeignColumns: []string{"ALIAS_CODE"}, ForeignTable: "STATUS_ALIAS"},
			{Name: "FK_HIST_COMPOUND", LocalColumns: []string{"A", "B"}, ForeignColumns: []string{"A", "B"}, ForeignTable: "MEMBER_STATUS"},
		},
	}
	explicit := &schema.Table{
		DBName: "EXPLICIT",
		ForeignKeys: []*schema.ForeignKey{
			{Name: "FK_EXPLICIT", LocalColumns: []string{"STATUS"}, ForeignColumns: []string{"MEMBER_STATUS_CODE"}, ForeignTable: "MEMBER_STATUS"},
		},
	}

	r, err := classification.NewResolver(definitions(t), []classification.Deployment{
		{Table: "MEMBER_STATUS", Column: "MEMBER_STATUS_CODE", Classification: "MemberStatus"},
		{Table: "EXPLICIT", Column: "STATUS", Classification: "Flag"},
	})
	require.NoError(t, err)

	// order puts the chain end first so a single pass is not enough
	r.PropagateForeignKeys([]*schema.Table{history, member, alias, status, explicit})

	cls, ok := r.ClassificationOf("MEMBER", "MEMBER_STATUS_CODE")
	require.True(t, ok)
	assert.Equal(t, "MemberStatus", cls)
	cls, ok = r.ClassificationOf("HISTORY", "OLD_CODE")
	require.True(t, ok)
	assert.Equal(t, "MemberStatus", cls)
	_, ok = r.ClassificationOf("HISTORY", "A")
	assert.False(t, ok, "compound keys do not propagate")
	cls, _ = r.ClassificationOf("EXPLICIT", "STATUS")
	assert.Equal(t, "Flag", cls, "explicit classification wins")
}

func TestResolver_CheckCode(t *testing.T) {
	t.Run("exception", func(t *testing.T) {
		r, err := classification.NewResolver(definitions(t), []classification.Deployment{
			{Table: "MEMBER", Column: "MEMBER_STATUS_CODE", Classification: "MemberStatus"},
		}, classification.WithUndefinedHandling(classification.HandlingException))
		require.NoError(t, err)

		assert.NoError(t, r.CheckCode("MemberStatus", "FML"))
		err = r.CheckColumnCode("MEMBER", "MEMBER_STATUS_CODE", "XXX")
		require.Error(t, err)
		assert.True(t, errors.Is(err, classification.ErrUndefinedClassificationCode))
		var uce *classification.UndefinedCodeError
		require.True(t, errors.As(err, &uce))
		assert.Equal(t, "MEMBER", uce.Table)
		assert.Equal(t, []string{"FML", "WDL", "PRV"}, uce.Known)
		assert.NoError(t, r.CheckColumnCode("MEMBER", "MEMBER_NAME", "anything"))
	})

	t.Run("logging", func(t *testing.T) {
		var buf bytes.Buffer
		r, err := classification.NewResolver(definitions(t), nil,
			classification.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		require.NoError(t, err)

		assert.NoError(t, r.CheckCode("Flag", "2"))
		assert.Contains(t, buf.String(), "undefined classification code")
	})

	t.Run("allowed", func(t *testing.T) {
		var buf bytes.Buffer
		r, err := classification.NewResolver(definitions(t), nil,
			classification.WithUndefinedHandling(classification.HandlingAllowed),
			classification.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		require.NoError(t, err)

		assert.NoError(t, r.CheckCode("Flag", "2"))
		assert.Empty(t, buf.String())
	})

	t.Run("unknown classification", func(t *testing.T) {
		r, err := classification.NewResolver(definitions(t), nil)
		require.NoError(t, err)
		assert.Error(t, r.CheckCode("Nope", "1"))
	})
}

func TestParseUndefinedHandling(t *testing.T) {
	h, err := classification.ParseUndefinedHandling("")
	require.NoError(t, err)
	assert.Equal(t, classification.HandlingLogging, h)
	h, err = classification.ParseUndefinedHandling("EXCEPTION")
	require.NoError(t, err)
	assert.Equal(t, classification.HandlingException, h)
	_, err = classification.ParseUndefinedHandling("ignore")
	assert.Error(t, err)
}

func TestResolver_ConcurrentLookups(t *testing.T) {
	r, err := classification.NewResolver(definitions(t), []classification.Deployment{
		{Table: classification.AllTables, Column: "suffix:_FLG", Classification: "Flag"},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("TABLE_%d", i), "STATUS", "MemberStatus")
		}(i)
		go func() {
			defer wg.Done()
			cls, ok := r.ClassificationOf("ANY", "VALID_FLG")
			assert.True(t, ok)
			assert.Equal(t, "Flag", cls)
		}()
	}
	wg.Wait()

	cls, ok := r.ClassificationOf("TABLE_3", "STATUS")
	require.True(t, ok)
	assert.Equal(t, "MemberStatus", cls)
}

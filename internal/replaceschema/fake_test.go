package replaceschema_test

import (
	"fmt"
	"testing"
	"time"

	"schemaflow/internal/classification"
	"schemaflow/internal/replaceschema"
	"schemaflow/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeDataSet(count int) *replaceschema.FakeDataSet {
	return &replaceschema.FakeDataSet{
		Count: count,
		Faker: gofakeit.New(7),
		Now:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFakeDataSet_IdentityLimitsCount(t *testing.T) {
	table := &schema.Table{
		DBName:            "REGION",
		PrimaryKeyColumns: []string{"REGION_ID"},
		Columns: []*schema.Column{
			{Name: "REGION_ID", DBType: "tinyint", LogicalType: "tinyint", AutoIncrement: true},
			{Name: "REGION_NAME", DBType: "varchar", LogicalType: "varchar", Size: 100},
		},
	}
	rows, err := fakeDataSet(300).Rows(table, replaceschema.KeyPool{})
	require.NoError(t, err)
	assert.Len(t, rows, 255)
	assert.Equal(t, []string{"REGION_NAME"}, rows[0].Columns, "identity columns are left to the database")
}

func TestFakeDataSet_CompositeKeyRowsAreDistinct(t *testing.T) {
	table := &schema.Table{
		DBName:            "MEMBER_FOLLOWING",
		PrimaryKeyColumns: []string{"MY_MEMBER_ID", "YOUR_MEMBER_ID"},
		Columns: []*schema.Column{
			{Name: "MY_MEMBER_ID", DBType: "int", LogicalType: "int"},
			{Name: "YOUR_MEMBER_ID", DBType: "int", LogicalType: "int"},
		},
		ForeignKeys: []*schema.ForeignKey{
			{Name: "FK_MY", LocalColumns: []string{"MY_MEMBER_ID"}, ForeignColumns: []string{"MEMBER_ID"}, ForeignTable: "MEMBER"},
			{Name: "FK_YOUR", LocalColumns: []string{"YOUR_MEMBER_ID"}, ForeignColumns: []string{"MEMBER_ID"}, ForeignTable: "MEMBER"},
		},
	}
	keys := replaceschema.KeyPool{"MEMBER": {1, 2, 3, 4}}

	rows, err := fakeDataSet(6).Rows(table, keys)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	seen := make(map[string]bool)
	for _, r := range rows {
		key := fmt.Sprint(r.Values...)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
		assert.Contains(t, keys["MEMBER"], r.Values[0])
		assert.Contains(t, keys["MEMBER"], r.Values[1])
	}
}

func TestFakeDataSet_ClassifiedAndUniqueColumns(t *testing.T) {
	defs, err := classification.NewDefinitions(&classification.Top{Name: "PaymentMethod", Elements: []classification.Element{
		{Code: "HAN", Name: "ByHand"},
		{Code: "BAK", Name: "BankTransfer"},
		{Code: "CRC", Name: "CreditCard"},
	}})
	require.NoError(t, err)
	resolver, err := classification.NewResolver(defs, nil)
	require.NoError(t, err)

	table := &schema.Table{
		DBName:            "PURCHASE_PAYMENT",
		PrimaryKeyColumns: []string{"PURCHASE_PAYMENT_ID"},
		Columns: []*schema.Column{
			{Name: "PURCHASE_PAYMENT_ID", DBType: "int", LogicalType: "int"},
			{Name: "PAYMENT_METHOD_CODE", DBType: "char", LogicalType: "char", Size: 3, ClassificationName: "PaymentMethod"},
			{Name: "PAYMENT_DATETIME", DBType: "datetime", LogicalType: "datetime"},
			{Name: "CONTACT_EMAIL", DBType: "varchar", LogicalType: "varchar", Size: 10},
		},
	}

	ds := fakeDataSet(20)
	ds.Resolver = resolver
	rows, err := ds.Rows(table, replaceschema.KeyPool{})
	require.NoError(t, err)
	require.Len(t, rows, 20)

	ids := make(map[any]bool)
	for _, r := range rows {
		assert.False(t, ids[r.Values[0]], "primary key values are distinct")
		ids[r.Values[0]] = true
		assert.Contains(t, []string{"HAN", "BAK", "CRC"}, r.Values[1])

		ts, ok := r.Values[2].(string)
		require.True(t, ok)
		parsed, err := time.Parse("2006-01-02 15:04:05", ts)
		require.NoError(t, err)
		assert.False(t, parsed.After(ds.Now))

		email, ok := r.Values[3].(string)
		require.True(t, ok)
		assert.LessOrEqual(t, len([]rune(email)), 10)
	}
}

func TestFakeDataSet_MissingParentKeys(t *testing.T) {
	table := &schema.Table{
		DBName: "PURCHASE",
		Columns: []*schema.Column{
			{Name: "MEMBER_ID", DBType: "int", LogicalType: "int"},
			{Name: "PRODUCT_ID", DBType: "int", LogicalType: "int", Nullable: true},
		},
		ForeignKeys: []*schema.ForeignKey{
			{Name: "FK_MEMBER", LocalColumns: []string{"MEMBER_ID"}, ForeignColumns: []string{"MEMBER_ID"}, ForeignTable: "MEMBER"},
			{Name: "FK_PRODUCT", LocalColumns: []string{"PRODUCT_ID"}, ForeignColumns: []string{"PRODUCT_ID"}, ForeignTable: "PRODUCT"},
		},
	}
	rows, err := fakeDataSet(2).Rows(table, replaceschema.KeyPool{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{1, nil}, rows[0].Values)
}

func TestFakeDataSet_SkipsViewsAndZeroCount(t *testing.T) {
	rows, err := fakeDataSet(5).Rows(&schema.Table{DBName: "V_MEMBER", IsView: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, rows)

	rows, err = fakeDataSet(0).Rows(&schema.Table{DBName: "MEMBER"}, nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestFakeDataSet_UnknownClassification(t *testing.T) {
	resolver, err := classification.NewResolver(nil, nil)
	require.NoError(t, err)
	ds := fakeDataSet(1)
	ds.Resolver = resolver

	_, err = ds.Rows(&schema.Table{DBName: "MEMBER", Columns: []*schema.Column{
		{Name: "STATUS", DBType: "char", ClassificationName: "Nothing"},
	}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown classification "Nothing"`)
}

package schema_test

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"schemaflow/internal/schema"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(extracted time.Time) *schema.Snapshot {
	member := &schema.Table{
		DBName:  "MEMBER",
		Comment: "member\nwith a second line",
		Columns: []*schema.Column{
			{Name: "MEMBER_ID", DBType: "INTEGER", LogicalType: "int", AutoIncrement: true},
			{Name: "MEMBER_STATUS_CODE", DBType: "CHAR", Size: 3, ClassificationName: "MemberStatus"},
		},
		PrimaryKeyColumns: []string{"MEMBER_ID"},
		ForeignKeys: []*schema.ForeignKey{{
			Name: "FK_MEMBER_STATUS", LocalColumns: []string{"MEMBER_STATUS_CODE"},
			ForeignColumns: []string{"MEMBER_STATUS_CODE"}, ForeignTable: "MEMBER_STATUS",
		}},
	}
	status := &schema.Table{
		DBName:            "MEMBER_STATUS",
		Columns:           []*schema.Column{{Name: "MEMBER_STATUS_CODE", DBType: "CHAR", Size: 3}},
		PrimaryKeyColumns: []string{"MEMBER_STATUS_CODE"},
	}
	seq := &schema.Sequence{Name: "SEQ_MEMBER", MinimumValue: "1", IncrementSize: "1"}
	return schema.NewSnapshot(schema.Meta{ProductName: "sqlite", ExtractedAt: extracted},
		[]*schema.Table{status, member}, []*schema.Sequence{seq}, nil)
}

func TestSnapshot_SaveLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	orig := sampleSnapshot(at)

	require.NoError(t, schema.SaveSnapshot(fsys, "schema/snapshot.yaml", orig))
	loaded, err := schema.LoadSnapshot(fsys, "schema/snapshot.yaml")
	require.NoError(t, err)

	assert.True(t, at.Equal(loaded.ExtractedAt))
	assert.Equal(t, orig.TableNames(), loaded.TableNames())
	member, ok := loaded.Table("member")
	require.True(t, ok)
	assert.Equal(t, "member\nwith a second line", member.Comment)
	col, ok := member.Column("MEMBER_STATUS_CODE")
	require.True(t, ok)
	assert.Equal(t, "MemberStatus", col.ClassificationName)
	assert.Equal(t, orig.Fingerprint(), loaded.Fingerprint())
}

func TestSnapshot_LoadMissing(t *testing.T) {
	_, err := schema.LoadSnapshot(afero.NewMemMapFs(), "nowhere.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestSnapshot_FingerprintIgnoresExtractionTime(t *testing.T) {
	a := sampleSnapshot(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := sampleSnapshot(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := sampleSnapshot(time.Now())
	c.Tables[0].Comment = "changed"
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

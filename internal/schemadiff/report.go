package schemadiff

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
)

// Summary describes d in one line, its age relative to now included.
func Summary(d *SchemaDiff, now time.Time) string {
	var b strings.Builder
	b.WriteString(d.DiffDate)
	if t, err := d.Time(); err == nil {
		fmt.Fprintf(&b, " (%s)", humanize.RelTime(t, now, "ago", "from now"))
	}
	if d.TableCount != nil {
		fmt.Fprintf(&b, " tables %s -> %s", d.TableCount.Previous, d.TableCount.Next)
	}
	if d.IsEmpty() {
		b.WriteString(": no change")
		return b.String()
	}
	var parts []string
	for _, kind := range listKinds {
		if n := len(d.TableDiffsOf(kind.diffType)); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", english.Plural(n, "table", ""), kind.prefix))
		}
	}
	if n := len(d.SequenceDiffs); n > 0 {
		parts = append(parts, english.Plural(n, "sequence", "")+" changed")
	}
	b.WriteString(": ")
	b.WriteString(strings.Join(parts, ", "))
	return b.String()
}

// WriteReport prints every diff of h with its table details.
func WriteReport(w io.Writer, h *History, now time.Time) error {
	for _, d := range h.Diffs {
		marker := " "
		if d.Latest {
			marker = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", marker, Summary(d, now)); err != nil {
			return err
		}
		for _, td := range d.TableDiffs {
			if _, err := fmt.Fprintf(w, "    %-6s %s%s\n", td.DiffType, td.TableName, tableDetail(td)); err != nil {
				return err
			}
		}
		for _, sd := range d.SequenceDiffs {
			if _, err := fmt.Fprintf(w, "    %-6s sequence %s\n", sd.DiffType, sd.SequenceName); err != nil {
				return err
			}
		}
	}
	return nil
}

func tableDetail(td *TableDiff) string {
	if td.DiffType != DiffChange {
		return ""
	}
	var parts []string
	if n := len(td.ColumnDiffs); n > 0 {
		parts = append(parts, english.Plural(n, "column", ""))
	}
	if td.PrimaryKeyDiff != nil {
		parts = append(parts, "primary key")
	}
	if n := len(td.UniqueKeyDiffs); n > 0 {
		parts = append(parts, english.Plural(n, "unique key", ""))
	}
	if n := len(td.ForeignKeyDiffs); n > 0 {
		parts = append(parts, english.Plural(n, "foreign key", ""))
	}
	if td.ObjectType != nil || td.Comment != nil {
		parts = append(parts, "table attributes")
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

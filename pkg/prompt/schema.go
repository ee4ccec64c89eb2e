package prompt

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/insightloop/glean/pkg/models"
)

// RenderSchema produces the deterministic, parseable text form of one source
// schema used inside the decision prompt. Ordering follows extraction order
// so identical schemas always render identically.
func RenderSchema(s *models.SourceSchema) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### Source %d: %s (type: %s)\n", s.SourceID, s.SourceName, s.SourceKind)

	for _, t := range s.Tables {
		fmt.Fprintf(&b, "Table %s:\n", t.Name)
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			tag := c.Name + ":" + c.DataType
			if c.PrimaryKey {
				tag += " [PK]"
			}
			cols = append(cols, tag)
		}
		fmt.Fprintf(&b, "  columns: %s\n", strings.Join(cols, ", "))
		writeSampleRows(&b, t.Columns, t.SampleRows)
	}

	for _, c := range s.Collections {
		fmt.Fprintf(&b, "Collection %s (~%d documents):\n", c.Name, c.ApproxCount)
		for _, f := range c.Fields {
			fmt.Fprintf(&b, "  - %s: %s\n", f.Name, f.Type)
		}
		if len(c.Indexes) > 0 {
			fmt.Fprintf(&b, "  indexes: %s\n", strings.Join(c.Indexes, ", "))
		}
		if c.SampleDocument != "" {
			fmt.Fprintf(&b, "  sample: %s\n", c.SampleDocument)
		}
	}

	for _, idx := range s.Indices {
		fmt.Fprintf(&b, "Index %s (~%d documents):\n", idx.Name, idx.ApproxCount)
		for _, f := range idx.Fields {
			fmt.Fprintf(&b, "  - %s: %s\n", f.Name, f.Type)
		}
	}

	for _, g := range s.KeyGroups {
		fmt.Fprintf(&b, "Key group %s: type=%s, sampled=%d\n", g.Pattern, g.Type, g.Count)
	}

	if len(s.Tools) > 0 {
		b.WriteString("Available tools:\n")
		for _, t := range s.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
			if t.InputSchema != "" {
				fmt.Fprintf(&b, "  input schema: %s\n", t.InputSchema)
			}
		}
	}
	if len(s.Resources) > 0 {
		b.WriteString("Available resources:\n")
		for _, r := range s.Resources {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.URI, r.Name, r.Description)
		}
	}

	return b.String()
}

// writeSampleRows renders sample rows pipe-delimited under a header line.
// Values arrive already redacted from schema extraction.
func writeSampleRows(b *strings.Builder, cols []models.Column, rows []map[string]any) {
	if len(rows) == 0 {
		return
	}
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	fmt.Fprintf(b, "  sample rows (%s):\n", strings.Join(names, " | "))
	for _, row := range rows {
		cells := make([]string, 0, len(names))
		for _, name := range names {
			cells = append(cells, cast.ToString(row[name]))
		}
		fmt.Fprintf(b, "    %s\n", strings.Join(cells, " | "))
	}
}

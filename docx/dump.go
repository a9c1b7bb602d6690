package docx

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump renders tokens as an indented tree grouped by table and row. Used for
// debug reports.
func Dump(doc string, tokens []Token) string {
	var (
		b          strings.Builder
		table, row int
	)
	line := func(depth int, format string, args ...any) {
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line(0, "document %s", strconv.Quote(doc))
	for _, t := range tokens {
		if t.Table != table {
			table, row = t.Table, 0
			line(1, "table %d", table)
		}
		if t.Row != row {
			row = t.Row
			line(2, "row %d", row)
		}
		line(3, "%s code=%s", strconv.Quote(t.Name), t.Code)
	}
	return b.String()
}

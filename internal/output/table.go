package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders documents as an ASCII table.
type TableFormatter struct{}

// Format renders doc as a table.
func (f *TableFormatter) Format(doc Document) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if doc.Title != "" {
		t.SetTitle(doc.Title)
	}
	t.AppendHeader(toRow(doc.Header))

	for _, row := range doc.Rows {
		t.AppendRow(toRow(row))
	}

	if doc.Footer != "" && len(doc.Header) > 0 {
		footer := make(table.Row, len(doc.Header))
		for i := range footer {
			footer[i] = ""
		}
		footer[len(footer)-1] = doc.Footer
		t.AppendFooter(footer)
	}

	return t.Render(), nil
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, value := range values {
		row[i] = value
	}
	return row
}

package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders documents as a markdown table.
type MarkdownFormatter struct{}

// Format renders doc as Markdown.
func (f *MarkdownFormatter) Format(doc Document) (string, error) {
	var sb strings.Builder
	if doc.Title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(doc.Title)))
	}

	writeMarkdownRow(&sb, doc.Header)
	separators := make([]string, len(doc.Header))
	for i, h := range doc.Header {
		separators[i] = strings.Repeat("-", max(len(h), 3))
	}
	writeMarkdownRow(&sb, separators)

	for _, row := range doc.Rows {
		writeMarkdownRow(&sb, row)
	}

	if doc.Footer != "" {
		sb.WriteString(fmt.Sprintf("\n**%s**\n", escapeMarkdownCell(doc.Footer)))
	}
	return sb.String(), nil
}

func writeMarkdownRow(sb *strings.Builder, cells []string) {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		escaped[i] = escapeMarkdownCell(cell)
	}
	sb.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}

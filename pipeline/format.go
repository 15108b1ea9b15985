package pipeline

import (
	"fmt"
	"strings"
)

// TagsLiteral renders tags as a list literal such as ['love', 'life'],
// the form earlier quote exports used for the tags column.
func TagsLiteral(tags []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, tag := range tags {
		if i > 0 {
			b.WriteString(", ")
		}
		writeQuoted(&b, tag)
	}
	b.WriteByte(']')
	return b.String()
}

// writeQuoted uses single quotes unless the value contains a single quote
// and no double quote.
func writeQuoted(b *strings.Builder, s string) {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteByte(quote)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
}

// Package rendering composes the single HTML document sent to recipients.
package rendering

import "strings"

// ComposeDocument returns a complete HTML document for body and css. A body
// that already contains an <html element is returned trimmed and otherwise
// untouched so full documents are never wrapped twice.
func ComposeDocument(body, css string) string {
	content := strings.TrimSpace(body)
	style := strings.TrimSpace(css)

	if strings.Contains(strings.ToLower(content), "<html") {
		return content
	}

	var b strings.Builder
	b.Grow(len(content) + len(style) + 96)
	b.WriteString(`<!doctype html><html><head><meta charset="utf-8"/>`)
	if style != "" {
		b.WriteString("<style>")
		b.WriteString(style)
		b.WriteString("</style>")
	}
	b.WriteString("</head><body>")
	b.WriteString(content)
	b.WriteString("</body></html>")
	return b.String()
}

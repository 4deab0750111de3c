package bridge

import (
	"fmt"
	"regexp"
	"strings"
)

var htmlOpenTag = regexp.MustCompile(`(?i)<html[^>]*>`)

// Inject places script (wrapped in a <script> tag) into an HTML document so
// it executes before any creative code. Insertion point, first match wins:
//
//  1. immediately after a literal <head>
//  2. immediately after a literal <HEAD>
//  3. after a case-insensitive <html ...> open tag, wrapped in a synthesized
//     <head>...</head>
//  4. prepended to the whole document when no tag matches
func Inject(doc, script string) string {
	tag := "<script>" + script + "</script>"

	if i := strings.Index(doc, "<head>"); i >= 0 {
		at := i + len("<head>")
		return doc[:at] + tag + doc[at:]
	}
	if i := strings.Index(doc, "<HEAD>"); i >= 0 {
		at := i + len("<HEAD>")
		return doc[:at] + tag + doc[at:]
	}
	if loc := htmlOpenTag.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + "<head>" + tag + "</head>" + doc[loc[1]:]
	}
	return tag + doc
}

// Wrap builds a complete standalone document from a raw creative snippet,
// with the bridge in the head. Used for the inline (non-bundle) path where
// the QA engineer pastes a tag rather than uploading files.
func Wrap(markup, script string, width, height int) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&b, `<meta name="viewport" content="width=%d,height=%d">`, width, height)
	b.WriteString("<script>")
	b.WriteString(script)
	b.WriteString("</script>")
	b.WriteString("<style>html,body{margin:0;padding:0;overflow:hidden}</style>")
	b.WriteString("</head><body>")
	b.WriteString(markup)
	b.WriteString("</body></html>")
	return b.String()
}

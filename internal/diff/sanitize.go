package diff

import "strings"

const byteOrderMark = "\ufeff"

// Sanitize normalizes raw diff text before any structural parsing: a leading
// byte order mark is dropped, CRLF and lone CR line endings become LF, and
// NUL bytes are removed. It never fails.
func Sanitize(text string) string {
	if text == "" {
		return text
	}
	text = strings.TrimPrefix(text, byteOrderMark)
	if strings.IndexByte(text, 0) >= 0 {
		text = strings.ReplaceAll(text, "\x00", "")
	}
	if strings.IndexByte(text, '\r') >= 0 {
		text = strings.ReplaceAll(text, "\r\n", "\n")
		text = strings.ReplaceAll(text, "\r", "\n")
	}
	return text
}

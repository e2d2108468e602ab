package diff

import (
	"strings"
)

// extendedHeaderPrefixes are git's file-level header lines that may appear
// between "diff --git" and the "---"/"+++" pair.
var extendedHeaderPrefixes = []string{
	fileMarker,
	"index ",
	"old mode ",
	"new mode ",
	"deleted file mode ",
	"new file mode ",
	"similarity index ",
	"dissimilarity index ",
	"rename from ",
	"rename to ",
	"copy from ",
	"copy to ",
}

func isExtendedHeaderLine(line string) bool {
	for _, prefix := range extendedHeaderPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// isBodyLine reports whether line carries one of the four unified-diff line
// prefixes: context, addition, deletion or the no-newline marker.
func isBodyLine(line string) bool {
	if line == "" {
		return false
	}
	switch line[0] {
	case ' ', '+', '-', '\\':
		return true
	}
	return false
}

// Canonicalize repairs a single-file patch into a form a hunk parser can
// consume: exactly one "---"/"+++" header pair followed by hunks whose body
// lines all start with ' ', '+', '-' or '\'.
//
// Input without any hunk header is returned unchanged. When a "---" line
// precedes a "+++" line before the first hunk, that pair is kept verbatim
// along with git's extended header lines; otherwise a header is synthesized
// from filePath. Inside an open hunk, any line without a valid prefix is
// re-prefixed with a space and treated as context so line-by-line rendering
// stays aligned. That also classifies genuinely malformed content as
// unchanged context.
func Canonicalize(filePath, text string) string {
	trailingNewline := strings.HasSuffix(text, "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	first := -1
	for i, line := range lines {
		if hunkHeaderRegex.MatchString(line) {
			first = i
			break
		}
	}
	if first < 0 {
		return text
	}

	out := make([]string, 0, len(lines)+3)
	out = append(out, fileHeader(filePath, lines[:first])...)

	inHunk := false
	for _, line := range lines[first:] {
		if strings.HasPrefix(line, fileMarker) {
			if inHunk {
				break
			}
			continue
		}
		if hunkHeaderRegex.MatchString(line) {
			inHunk = true
			out = append(out, line)
			continue
		}
		if isBodyLine(line) {
			out = append(out, line)
			continue
		}
		if inHunk {
			out = append(out, " "+line)
		}
	}

	result := strings.Join(out, "\n")
	if trailingNewline {
		result += "\n"
	}
	return result
}

// fileHeader returns the header lines to emit ahead of the first hunk.
// A "---" line followed later by a "+++" line is kept verbatim together with
// any extended header lines before it; anything else yields a synthesized
// header for filePath.
func fileHeader(filePath string, preamble []string) []string {
	minus, plus := -1, -1
	for i, line := range preamble {
		if minus < 0 && strings.HasPrefix(line, "--- ") {
			minus = i
			continue
		}
		if minus >= 0 && strings.HasPrefix(line, "+++ ") {
			plus = i
			break
		}
	}
	if minus < 0 || plus < 0 {
		return SynthesizedHeader(filePath)
	}

	var header []string
	for _, line := range preamble[:minus] {
		if isExtendedHeaderLine(line) {
			header = append(header, line)
		}
	}
	return append(header, preamble[minus], preamble[plus])
}

// SynthesizedHeader builds the git-style header used when a patch arrives
// without its own "---"/"+++" lines.
func SynthesizedHeader(filePath string) []string {
	p := NormalizePath(filePath)
	return []string{
		"diff --git a/" + p + " b/" + p,
		"--- a/" + p,
		"+++ b/" + p,
	}
}

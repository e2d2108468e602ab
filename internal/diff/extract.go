package diff

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// fileMarker opens a new file diff in git output.
const fileMarker = "diff --git "

// hunkHeaderRegex matches git diff hunk headers like:
// @@ -1,5 +1,7 @@
// @@ -0,0 +1,10 @@ (new file)
// @@ -1 +1 @@ (single line, counts omitted)
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// fileBlock is one "diff --git" section of a multi-file diff.
type fileBlock struct {
	text    string // exact bytes of the block, including its trailing newline
	path    string // normalized new-file path from the opening line
	hasHunk bool
}

// ExtractFile isolates the diff block for path from a multi-file diff.
//
// Text that does not start with a "diff --git" line is returned unchanged.
// Otherwise the first block whose declared new-file path equals path (after
// normalization) is returned byte-for-byte. When no block matches exactly,
// the first block with the same basename wins, then the first block that
// contains a hunk header, then the first block. Upstream tooling sometimes
// reports a path in a different representation than the one requested, and
// showing the nearest block beats showing nothing.
func ExtractFile(text, filePath string) string {
	if !strings.HasPrefix(text, fileMarker) {
		return text
	}

	blocks := splitFileBlocks(text)
	if len(blocks) == 0 {
		return text
	}

	target := NormalizePath(filePath)
	for _, b := range blocks {
		if b.path == target {
			return b.text
		}
	}

	base := path.Base(target)
	for _, b := range blocks {
		if b.path != "" && path.Base(b.path) == base {
			return b.text
		}
	}

	for _, b := range blocks {
		if b.hasHunk {
			return b.text
		}
	}

	return blocks[0].text
}

// splitFileBlocks cuts text at every line that opens a file diff.
// Concatenating the returned blocks reproduces text exactly.
func splitFileBlocks(text string) []fileBlock {
	var starts []int
	offset := 0
	for offset < len(text) {
		end := strings.IndexByte(text[offset:], '\n')
		var line string
		if end < 0 {
			line = text[offset:]
		} else {
			line = text[offset : offset+end]
		}
		if strings.HasPrefix(line, fileMarker) {
			starts = append(starts, offset)
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}

	blocks := make([]fileBlock, 0, len(starts))
	for i, start := range starts {
		stop := len(text)
		if i+1 < len(starts) {
			stop = starts[i+1]
		}
		blockText := text[start:stop]
		opening := blockText
		if nl := strings.IndexByte(blockText, '\n'); nl >= 0 {
			opening = blockText[:nl]
		}
		blocks = append(blocks, fileBlock{
			text:    blockText,
			path:    NormalizePath(MarkerPath(opening)),
			hasHunk: containsHunkHeader(blockText),
		})
	}
	return blocks
}

func containsHunkHeader(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if hunkHeaderRegex.MatchString(line) {
			return true
		}
	}
	return false
}

// MarkerPath returns the new-file path declared by a "diff --git" line with
// its "b/" prefix removed. Quoted paths (git quotes names containing special
// characters and escapes them C-style) are unquoted. Returns "" when the line
// is not a file marker.
func MarkerPath(line string) string {
	if !strings.HasPrefix(line, fileMarker) {
		return ""
	}
	rest := strings.TrimSpace(line[len(fileMarker):])

	var newToken string
	if strings.HasPrefix(rest, `"`) {
		// Old path is quoted: skip it, the new path follows.
		_, after, ok := readQuoted(rest)
		if !ok {
			return ""
		}
		newToken = strings.TrimSpace(after)
	} else if idx := strings.Index(rest, ` "`); idx >= 0 {
		// Unquoted old path followed by a quoted new path.
		newToken = strings.TrimSpace(rest[idx+1:])
	} else if idx := strings.LastIndex(rest, " b/"); idx >= 0 {
		newToken = rest[idx+1:]
	} else if half := splitEvenly(rest); half != "" {
		// --no-prefix output: "diff --git foo.go foo.go".
		newToken = half
	} else {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return ""
		}
		newToken = fields[len(fields)-1]
	}

	if strings.HasPrefix(newToken, `"`) {
		value, _, ok := readQuoted(newToken)
		if !ok {
			return ""
		}
		newToken = value
	}
	return strings.TrimPrefix(newToken, "b/")
}

// readQuoted reads one C-style quoted token from the start of s and returns
// its unescaped value and whatever follows the closing quote.
func readQuoted(s string) (value, rest string, ok bool) {
	if !strings.HasPrefix(s, `"`) {
		return "", s, false
	}
	escaped := false
	for i := 1; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			raw := s[:i+1]
			unquoted, err := strconv.Unquote(raw)
			if err != nil {
				// Unknown escape: keep the raw characters between the quotes.
				unquoted = raw[1 : len(raw)-1]
			}
			return unquoted, s[i+1:], true
		}
	}
	return "", s, false
}

// splitEvenly handles "x y" where both halves are the same path, which is how
// git prints an unchanged name without prefixes. Returns "" otherwise.
func splitEvenly(s string) string {
	if len(s)%2 == 0 {
		return ""
	}
	mid := len(s) / 2
	if s[mid] != ' ' {
		return ""
	}
	if s[:mid] != s[mid+1:] {
		return ""
	}
	return s[mid+1:]
}

// NormalizePath converts backslashes to forward slashes and strips any
// leading "./" so paths from different tools compare equal.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

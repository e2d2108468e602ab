package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const noNewlineMarker = `\ No newline at end of file`

// SynthesizeNewFile builds a git-style patch that adds content as a new
// file at filePath. Git prints nothing for untracked files, so the diff
// source uses this to give them a renderable diff. Empty content yields an
// empty string.
func SynthesizeNewFile(filePath, content string, context int) (string, error) {
	if content == "" {
		return "", nil
	}
	if context <= 0 {
		context = 3
	}
	p := NormalizePath(filePath)

	lines := splitLinesKeepNL(content)
	missingNewline := !strings.HasSuffix(content, "\n")
	if missingNewline {
		lines[len(lines)-1] += "\n"
	}

	body, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        []string{},
		B:        lines,
		FromFile: "/dev/null",
		ToFile:   "b/" + p,
		Context:  context,
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("diff --git a/" + p + " b/" + p + "\n")
	sb.WriteString("new file mode 100644\n")
	sb.WriteString(body)
	if missingNewline {
		sb.WriteString(noNewlineMarker + "\n")
	}
	return sb.String(), nil
}

// splitLinesKeepNL splits s after every newline. Unlike difflib.SplitLines
// it does not add an empty trailing element.
func splitLinesKeepNL(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

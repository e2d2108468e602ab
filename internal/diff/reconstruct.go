package diff

import "strings"

// Contents holds synthetic before/after buffers rebuilt from hunk lines.
// They only cover the lines the patch mentions, not the whole file.
type Contents struct {
	Old      string `json:"old_content"`
	New      string `json:"new_content"`
	OldLines int    `json:"old_lines"`
	NewLines int    `json:"new_lines"`
}

// Reconstruct derives paired old/new text from a canonical patch for
// renderers that want two buffers instead of a patch.
//
// Only lines after the first hunk header count. Hunk headers and the
// "\ No newline at end of file" marker are skipped; '+' lines go to the new
// side, '-' lines to the old side, and context lines to both. Any other line
// is copied verbatim to both sides.
func Reconstruct(patch string) Contents {
	lines := strings.Split(strings.TrimSuffix(patch, "\n"), "\n")

	var oldLines, newLines []string
	inHunk := false
	for _, line := range lines {
		if hunkHeaderRegex.MatchString(line) {
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}
		if line == "" {
			oldLines = append(oldLines, line)
			newLines = append(newLines, line)
			continue
		}
		switch line[0] {
		case '\\':
			// no-newline marker
		case '+':
			newLines = append(newLines, line[1:])
		case '-':
			oldLines = append(oldLines, line[1:])
		case ' ':
			oldLines = append(oldLines, line[1:])
			newLines = append(newLines, line[1:])
		default:
			oldLines = append(oldLines, line)
			newLines = append(newLines, line)
		}
	}

	return Contents{
		Old:      strings.Join(oldLines, "\n"),
		New:      strings.Join(newLines, "\n"),
		OldLines: len(oldLines),
		NewLines: len(newLines),
	}
}

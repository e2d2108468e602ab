package diff

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser splits raw git diff output into hunks.
//
// Binary files in git diff output appear with a "Binary files differ"
// message instead of a hunk header, so they produce no hunks. Inspect
// reports them through FileMeta instead.
type Parser struct {
	kind Kind
}

// NewParser creates a parser that tags every hunk with kind.
func NewParser(kind Kind) *Parser {
	return &Parser{kind: kind}
}

// ParseHunks is shorthand for NewParser(kind).Parse(text).
func ParseHunks(text string, kind Kind) []*Hunk {
	return NewParser(kind).Parse(text)
}

// Parse takes raw git diff output (one or more files) and returns its hunks
// in order. Each hunk gets the ID "<kind>:<oldStart>:<oldLines>"; a repeated
// ID within the same file gets a "#n" suffix so IDs stay unique per
// file and kind for one fetch.
func (p *Parser) Parse(diffOutput string) []*Hunk {
	if diffOutput == "" {
		return nil
	}

	var hunks []*Hunk
	var currentFile, currentHeader string
	var currentLines []string
	var oldStart, oldCount, newStart, newCount int
	inHunk := false
	seen := make(map[string]int)

	flush := func() {
		if !inHunk {
			return
		}
		h := NewHunk(currentFile, p.kind, currentHeader,
			oldStart, oldCount, newStart, newCount,
			strings.Join(currentLines, "\n"))
		h.ID = p.hunkID(seen, h)
		hunks = append(hunks, h)
		currentLines = nil
		inHunk = false
	}

	lines := strings.Split(strings.TrimSuffix(diffOutput, "\n"), "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, fileMarker) {
			flush()
			currentFile = NormalizePath(MarkerPath(line))
			continue
		}

		if matches := hunkHeaderRegex.FindStringSubmatch(line); matches != nil {
			flush()
			oldStart, oldCount, newStart, newCount = parseRanges(matches)
			currentHeader = line
			inHunk = true
			continue
		}

		if inHunk && isBodyLine(line) {
			currentLines = append(currentLines, line)
		}
	}
	flush()

	return hunks
}

func (p *Parser) hunkID(seen map[string]int, h *Hunk) string {
	base := fmt.Sprintf("%s:%d:%d", p.kind, h.OldStart, h.OldLines)
	key := h.Path + "\x00" + base
	n := seen[key]
	seen[key] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s#%d", base, n)
}

// parseRanges reads the four numbers out of a hunk header match. Omitted
// counts default to 1.
func parseRanges(matches []string) (oldStart, oldCount, newStart, newCount int) {
	oldStart, _ = strconv.Atoi(matches[1])
	oldCount = 1
	if matches[2] != "" {
		oldCount, _ = strconv.Atoi(matches[2])
	}
	newStart, _ = strconv.Atoi(matches[3])
	newCount = 1
	if matches[4] != "" {
		newCount, _ = strconv.Atoi(matches[4])
	}
	return oldStart, oldCount, newStart, newCount
}

// FilterHunks returns the hunks whose path equals filePath after
// normalization. When none match, all hunks are returned: a backend that
// reports paths differently than requested should still produce a diff.
func FilterHunks(hunks []*Hunk, filePath string) []*Hunk {
	target := NormalizePath(filePath)
	var out []*Hunk
	for _, h := range hunks {
		if NormalizePath(h.Path) == target {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return hunks
	}
	return out
}

// DiffStats contains size metrics for a diff.
type DiffStats struct {
	ByteSize     int `json:"byte_size"`
	LineCount    int `json:"line_count"`
	AddedLines   int `json:"added_lines"`
	DeletedLines int `json:"deleted_lines"`
}

// Large diff thresholds for UI warnings.
const (
	// LargeDiffByteThreshold is 1MB - diffs larger than this trigger a warning.
	LargeDiffByteThreshold = 1 * 1024 * 1024

	// LargeDiffLineThreshold is 2000 lines - diffs with more lines trigger a warning.
	LargeDiffLineThreshold = 2000
)

// CalculateDiffStats computes size metrics for a diff string.
func CalculateDiffStats(diff string) *DiffStats {
	stats := &DiffStats{
		ByteSize: len(diff),
	}

	lines := strings.Split(diff, "\n")
	stats.LineCount = len(lines)

	for _, line := range lines {
		if len(line) > 0 {
			switch line[0] {
			case '+':
				// Don't count the +++ file header as an addition
				if !strings.HasPrefix(line, "+++") {
					stats.AddedLines++
				}
			case '-':
				if !strings.HasPrefix(line, "---") {
					stats.DeletedLines++
				}
			}
		}
	}

	return stats
}

// IsLargeDiff reports whether stats exceed either threshold. A byteLimit of
// zero or less uses LargeDiffByteThreshold.
func IsLargeDiff(stats *DiffStats, byteLimit int) bool {
	if stats == nil {
		return false
	}
	if byteLimit <= 0 {
		byteLimit = LargeDiffByteThreshold
	}
	return stats.ByteSize > byteLimit || stats.LineCount > LargeDiffLineThreshold
}

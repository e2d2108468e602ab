package diff

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Span marks a changed byte range [Start, End) within a line's text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// highlightHunk pairs each run of deleted lines with the added lines that
// immediately follow it and marks the characters that differ between each
// pair. Unpaired lines keep no spans.
func highlightHunk(lines []Line) {
	dmp := diffmatchpatch.New()

	for i := 0; i < len(lines); {
		if lines[i].Kind != LineDeleted {
			i++
			continue
		}
		delStart := i
		for i < len(lines) && lines[i].Kind == LineDeleted {
			i++
		}
		addStart := i
		for i < len(lines) && lines[i].Kind == LineAdded {
			i++
		}
		pairs := min(addStart-delStart, i-addStart)
		for k := 0; k < pairs; k++ {
			oldLine := &lines[delStart+k]
			newLine := &lines[addStart+k]
			oldLine.Spans, newLine.Spans = lineSpans(dmp, oldLine.Text, newLine.Text)
		}
	}
}

// lineSpans diffs two lines character by character and returns the deleted
// ranges of a and the inserted ranges of b.
func lineSpans(dmp *diffmatchpatch.DiffMatchPatch, a, b string) (oldSpans, newSpans []Span) {
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var oldPos, newPos int
	for _, d := range diffs {
		n := len(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldPos += n
			newPos += n
		case diffmatchpatch.DiffDelete:
			oldSpans = append(oldSpans, Span{Start: oldPos, End: oldPos + n})
			oldPos += n
		case diffmatchpatch.DiffInsert:
			newSpans = append(newSpans, Span{Start: newPos, End: newPos + n})
			newPos += n
		}
	}
	return oldSpans, newSpans
}

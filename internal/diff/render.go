package diff

import (
	"strings"

	apperrors "github.com/gitpanel/host/internal/errors"
)

// LineKind classifies one rendered diff line.
type LineKind string

const (
	LineContext   LineKind = "context"
	LineAdded     LineKind = "added"
	LineDeleted   LineKind = "deleted"
	LineNoNewline LineKind = "no_newline"
)

// Line is a single body line with its prefix removed. Line numbers are zero
// on the side the line does not exist in.
type Line struct {
	Kind      LineKind `json:"kind"`
	Text      string   `json:"text"`
	OldNumber int      `json:"old_number,omitempty"`
	NewNumber int      `json:"new_number,omitempty"`
	Spans     []Span   `json:"spans,omitempty"`
}

// RenderHunk is a hunk of a canonical patch split into classified lines.
type RenderHunk struct {
	// ID is the backend hunk ID with the same content hash, when known.
	ID          string `json:"id,omitempty"`
	Header      string `json:"header"`
	OldStart    int    `json:"old_start"`
	OldLines    int    `json:"old_lines"`
	NewStart    int    `json:"new_start"`
	NewLines    int    `json:"new_lines"`
	ContentHash string `json:"content_hash"`
	Lines       []Line `json:"lines"`
}

// PatchSource records which input a renderable was built from.
type PatchSource string

const (
	SourcePrimary  PatchSource = "primary"
	SourceFallback PatchSource = "fallback"
)

// Renderable is the line-classified form of one file's patch.
type Renderable struct {
	Path            string       `json:"path"`
	Patch           string       `json:"patch"`
	FileHeaderLines []string     `json:"file_header_lines"`
	Hunks           []RenderHunk `json:"hunks"`
	File            *FileMeta    `json:"file,omitempty"`
	Contents        *Contents    `json:"contents,omitempty"`
	Stats           *DiffStats   `json:"stats"`
	Source          PatchSource  `json:"source"`
}

// Options controls optional work done by Build.
type Options struct {
	// IncludeContents attaches reconstructed old/new buffers.
	IncludeContents bool

	// InlineHighlights computes changed spans for paired -/+ lines.
	InlineHighlights bool
}

// Build runs the full pipeline on raw diff text for filePath: sanitize,
// extract the file's block, canonicalize, then classify lines. It returns a
// diff.unrenderable error when the result has no hunk header or its hunks
// carry no lines at all.
func Build(filePath, patch string, opts Options) (*Renderable, error) {
	text := Sanitize(patch)
	text = ExtractFile(text, filePath)
	canonical := Canonicalize(filePath, text)

	r, err := classify(filePath, canonical)
	if err != nil {
		return nil, err
	}

	contents := Reconstruct(canonical)
	if contents.OldLines == 0 && contents.NewLines == 0 {
		return nil, apperrors.Unrenderable(filePath, "hunks contain no lines")
	}
	if opts.IncludeContents {
		r.Contents = &contents
	}
	if opts.InlineHighlights {
		for i := range r.Hunks {
			highlightHunk(r.Hunks[i].Lines)
		}
	}

	r.File = Inspect(canonical)
	r.Stats = CalculateDiffStats(canonical)
	r.Source = SourcePrimary
	return r, nil
}

// classify splits a canonical patch into header lines and hunks.
func classify(filePath, canonical string) (*Renderable, error) {
	r := &Renderable{
		Path:  NormalizePath(filePath),
		Patch: canonical,
	}

	var current *RenderHunk
	var body []string
	var oldNo, newNo int
	finish := func() {
		if current == nil {
			return
		}
		current.ContentHash = Fingerprint(current.Header, strings.Join(body, "\n"))
		r.Hunks = append(r.Hunks, *current)
		current = nil
		body = nil
	}

	for _, line := range strings.Split(strings.TrimSuffix(canonical, "\n"), "\n") {
		if matches := hunkHeaderRegex.FindStringSubmatch(line); matches != nil {
			finish()
			oldStart, oldCount, newStart, newCount := parseRanges(matches)
			current = &RenderHunk{
				Header:   line,
				OldStart: oldStart,
				OldLines: oldCount,
				NewStart: newStart,
				NewLines: newCount,
			}
			oldNo, newNo = oldStart, newStart
			continue
		}
		if current == nil {
			r.FileHeaderLines = append(r.FileHeaderLines, line)
			continue
		}
		if line == "" {
			continue
		}

		body = append(body, line)
		text := line[1:]
		switch line[0] {
		case '+':
			current.Lines = append(current.Lines, Line{Kind: LineAdded, Text: text, NewNumber: newNo})
			newNo++
		case '-':
			current.Lines = append(current.Lines, Line{Kind: LineDeleted, Text: text, OldNumber: oldNo})
			oldNo++
		case '\\':
			current.Lines = append(current.Lines, Line{Kind: LineNoNewline, Text: strings.TrimSpace(text)})
		default:
			current.Lines = append(current.Lines, Line{Kind: LineContext, Text: text, OldNumber: oldNo, NewNumber: newNo})
			oldNo++
			newNo++
		}
	}
	finish()

	if len(r.Hunks) == 0 {
		return nil, apperrors.Unrenderable(filePath, "no hunk header found")
	}
	return r, nil
}

// AttachIDs copies backend hunk IDs onto rendered hunks with the same
// content hash.
func (r *Renderable) AttachIDs(hunks []*Hunk) {
	byHash := make(map[string]string, len(hunks))
	for _, h := range hunks {
		if _, ok := byHash[h.ContentHash]; !ok {
			byHash[h.ContentHash] = h.ID
		}
	}
	for i := range r.Hunks {
		if id, ok := byHash[r.Hunks[i].ContentHash]; ok {
			r.Hunks[i].ID = id
		}
	}
}

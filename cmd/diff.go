package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/gitpanel/host/internal/diff"
	"github.com/gitpanel/host/internal/workspace"
)

// cliLane is the dispatch lane used by one-shot commands.
const cliLane = "cli"

func runDiff(args []string, stdout, stderr io.Writer) int {
	var lf localFlags
	fs := newLocalFlagSet("diff", "diff [options] <path>", stderr, &lf)
	staged := fs.Bool("staged", false, "Show staged changes instead of the working tree")
	content := fs.Bool("content", false, "Also reconstruct the old and new file contents")
	inline := fs.Bool("inline", false, "Mark intra-line changes")
	jsonOutput := fs.Bool("json", false, "Output the diff result as JSON")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: exactly one path is required")
		fs.Usage()
		return 1
	}

	env, err := openLocal(&lf)
	if err != nil {
		return printError(stderr, err)
	}
	defer env.Close()

	kind := diff.KindUnstaged
	if *staged {
		kind = diff.KindStaged
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := env.Workspace.Diff(ctx, cliLane, workspace.DiffRequest{
		Path:             fs.Arg(0),
		Kind:             kind,
		IncludeContents:  *content,
		InlineHighlights: *inline,
	})
	if err != nil {
		return printError(stderr, err)
	}

	if *jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(res)
		return 0
	}

	writeDiff(stdout, res)
	return 0
}

var (
	headerColor  = color.New(color.Bold)
	hunkColor    = color.New(color.FgCyan)
	addedColor   = color.New(color.FgGreen)
	deletedColor = color.New(color.FgRed)
	noteColor    = color.New(color.FgYellow)

	// Changed spans of paired lines.
	addedMarkColor   = color.New(color.FgGreen, color.Underline)
	deletedMarkColor = color.New(color.FgRed, color.Underline)
)

// writeDiff prints a diff result as a colored patch.
func writeDiff(w io.Writer, res *workspace.DiffResult) {
	r := res.Renderable
	if r == nil {
		fmt.Fprintf(w, "No %s changes in %s.\n", res.Kind, res.Path)
		return
	}

	if res.Large {
		noteColor.Fprintf(w, "# large diff (%s)\n", humanize.Bytes(uint64(r.Stats.ByteSize)))
	}
	if r.Source == diff.SourceFallback {
		noteColor.Fprintln(w, "# rebuilt from the hunk list")
	}

	for _, line := range r.FileHeaderLines {
		headerColor.Fprintln(w, line)
	}
	for _, h := range r.Hunks {
		if h.ID != "" {
			hunkColor.Fprintf(w, "%s  [%s]\n", h.Header, h.ID)
		} else {
			hunkColor.Fprintln(w, h.Header)
		}
		for _, line := range h.Lines {
			writeLine(w, line)
		}
	}

	if r.Stats != nil {
		fmt.Fprintf(w, "\n%d insertion(s), %d deletion(s)\n", r.Stats.AddedLines, r.Stats.DeletedLines)
	}
	if r.Contents != nil {
		fmt.Fprintf(w, "old: %d line(s), new: %d line(s)\n", r.Contents.OldLines, r.Contents.NewLines)
	}
}

func writeLine(w io.Writer, line diff.Line) {
	var c, mark *color.Color
	prefix := " "
	switch line.Kind {
	case diff.LineAdded:
		c, mark, prefix = addedColor, addedMarkColor, "+"
	case diff.LineDeleted:
		c, mark, prefix = deletedColor, deletedMarkColor, "-"
	case diff.LineNoNewline:
		fmt.Fprintf(w, "\\ %s\n", line.Text)
		return
	default:
		fmt.Fprintf(w, " %s\n", line.Text)
		return
	}

	c.Fprint(w, prefix)
	pos := 0
	for _, sp := range line.Spans {
		if sp.Start < pos || sp.End > len(line.Text) || sp.Start > sp.End {
			continue
		}
		c.Fprint(w, line.Text[pos:sp.Start])
		mark.Fprint(w, line.Text[sp.Start:sp.End])
		pos = sp.End
	}
	c.Fprintln(w, line.Text[pos:])
}

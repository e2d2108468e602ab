package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/storage"
)

func runPreview(args []string, stdout, stderr io.Writer) int {
	var lf localFlags
	fs := newLocalFlagSet("preview", "preview [options] <id>", stderr, &lf)
	audit := fs.Int("audit", 0, "Instead of previewing, show the last N recorded previews")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if *audit <= 0 && fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: changelist id is required")
		fs.Usage()
		return 1
	}

	env, err := openLocal(&lf)
	if err != nil {
		return printError(stderr, err)
	}
	defer env.Close()

	if *audit > 0 {
		entries, err := env.Store.ListPreviewAudit(*audit)
		if err != nil {
			return printError(stderr, err)
		}
		fmt.Fprintln(stdout, renderAudit(entries))
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, err := env.Workspace.Preview(ctx, fs.Arg(0))
	if err != nil {
		return printError(stderr, err)
	}

	writePreview(stdout, p)
	if err := p.RequireCommittable(); err != nil {
		return printError(stderr, err)
	}
	return 0
}

// writePreview prints the file table, warnings and stale hunks of p.
func writePreview(w io.Writer, p *changelist.Preview) {
	committable := make(map[string]bool, len(p.Committable))
	for _, path := range p.Committable {
		committable[path] = true
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Path", "Status", "Partial", "Committable"})
	for _, f := range p.Files {
		tbl.AppendRow(table.Row{f.Path, f.Status, yesNo(f.Partial), yesNo(committable[f.Path])})
	}
	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d file(s)", len(p.Files)),
		fmt.Sprintf("%d staged, %d unstaged, %d untracked", p.Stats.Staged, p.Stats.Unstaged, p.Stats.Untracked),
	})
	fmt.Fprintln(w, tbl.Render())

	for _, warning := range p.Warnings {
		noteColor.Fprintf(w, "warning: %s\n", warning)
	}
	for _, h := range p.InvalidHunks {
		deletedColor.Fprintf(w, "stale: %s %s %s\n", h.Path, h.ID, h.Header)
	}
}

// renderAudit renders recorded previews, newest first.
func renderAudit(entries []*storage.PreviewAuditEntry) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"When", "Changelist", "Files", "Hunk files", "Invalid", "Blocked", "Error"})
	for _, e := range entries {
		tbl.AppendRow(table.Row{
			e.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			e.ChangelistID,
			e.FileCount,
			e.HunkFileCount,
			e.InvalidHunks,
			yesNo(e.Blocked),
			e.ErrorCode,
		})
	}
	return tbl.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

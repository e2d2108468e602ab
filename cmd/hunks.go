package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gitpanel/host/internal/diff"
	"github.com/gitpanel/host/internal/workspace"
)

const hunksUsage = `Usage: gitpanel hunks <command> [options]

Commands:
  list <path>                      List a file's hunks with their IDs
  assign <id> <path> <hunk-id>...  Assign hunks of a file to a changelist
  unassign <path> <hunk-id>...     Drop hunks from a file's selection
  invalid <id> <path>              Show selected hunks that no longer match
`

func runHunks(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stdout, hunksUsage)
		return 1
	}

	switch args[0] {
	case "list":
		return runHunksList(args[1:], stdout, stderr)
	case "assign":
		return runHunksAssign(args[1:], stdout, stderr)
	case "unassign":
		return runChangelistMutation(args[1:], "unassign <path> <hunk-id>...", 2, stdout, stderr,
			func(env *localEnv, rest []string) (string, error) {
				if err := env.Workspace.UnassignHunks(rest[0], rest[1:]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Unassigned %d hunk(s) of %s", len(rest)-1, rest[0]), nil
			})
	case "invalid":
		return runHunksInvalid(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown hunks command: %s\n", args[0])
		fmt.Fprint(stdout, hunksUsage)
		return 1
	}
}

func runHunksList(args []string, stdout, stderr io.Writer) int {
	var lf localFlags
	fs := newLocalFlagSet("hunks list", "hunks list [options] <path>", stderr, &lf)
	staged := fs.Bool("staged", false, "List staged hunks")
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

	hunks, err := env.Source.Hunks(ctx, fs.Arg(0), kind)
	if err != nil {
		return printError(stderr, err)
	}
	if len(hunks) == 0 {
		fmt.Fprintf(stdout, "No %s hunks in %s.\n", kind, fs.Arg(0))
		return 0
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"ID", "Header", "Hash"})
	for _, h := range hunks {
		tbl.AppendRow(table.Row{h.ID, h.Header, shortHash(h.ContentHash)})
	}
	fmt.Fprintln(stdout, tbl.Render())
	return 0
}

func runHunksAssign(args []string, stdout, stderr io.Writer) int {
	var lf localFlags
	fs := newLocalFlagSet("hunks assign", "hunks assign [options] <id> <path> <hunk-id>...", stderr, &lf)
	staged := fs.Bool("staged", false, "Hunk IDs refer to staged hunks")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() < 3 {
		fmt.Fprintln(stderr, "Error: changelist id, path and at least one hunk id are required")
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
	id, path := fs.Arg(0), fs.Arg(1)
	refs := make([]workspace.HunkRef, 0, fs.NArg()-2)
	for _, hunkID := range fs.Args()[2:] {
		refs = append(refs, workspace.HunkRef{ID: hunkID, Kind: kind})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := env.Workspace.AssignHunks(ctx, path, id, refs); err != nil {
		return printError(stderr, err)
	}
	fmt.Fprintf(stdout, "Assigned %d hunk(s) of %s to %s\n", len(refs), path, id)
	return 0
}

func runHunksInvalid(args []string, stdout, stderr io.Writer) int {
	var lf localFlags
	fs := newLocalFlagSet("hunks invalid", "hunks invalid [options] <id> <path>", stderr, &lf)
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "Error: changelist id and path are required")
		fs.Usage()
		return 1
	}

	env, err := openLocal(&lf)
	if err != nil {
		return printError(stderr, err)
	}
	defer env.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	invalid, err := env.Workspace.InvalidHunks(ctx, fs.Arg(1), fs.Arg(0))
	if err != nil {
		return printError(stderr, err)
	}
	if len(invalid) == 0 {
		fmt.Fprintln(stdout, "All selected hunks are current.")
		return 0
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"ID", "Kind", "Header"})
	for _, h := range invalid {
		tbl.AppendRow(table.Row{h.ID, h.Kind, h.Header})
	}
	fmt.Fprintln(stdout, tbl.Render())
	fmt.Fprintf(stdout, "%d hunk(s) need reselect.\n", len(invalid))
	return 0
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

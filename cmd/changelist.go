package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gitpanel/host/internal/changelist"
)

const changelistUsage = `Usage: gitpanel changelist <command> [options]

Commands:
  list                       List changelists with their files
  create <name>              Create a changelist
  rename <id> <name>         Rename a changelist
  delete <id>                Delete a changelist
  activate <id>              Make a changelist the active one
  assign <id> <path>...      Move whole files to a changelist
  unassign <path>...         Return files to the default changelist

Options:
  --config, --repo, --db     See 'gitpanel changelist list --help'
`

func runChangelist(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stdout, changelistUsage)
		return 1
	}

	switch args[0] {
	case "list":
		return runChangelistList(args[1:], stdout, stderr)
	case "create":
		return runChangelistMutation(args[1:], "create <name>", 1, stdout, stderr,
			func(env *localEnv, rest []string) (string, error) {
				cl, err := env.Workspace.CreateChangelist(rest[0])
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Created changelist %s (%s)", cl.Name, cl.ID), nil
			})
	case "rename":
		return runChangelistMutation(args[1:], "rename <id> <name>", 2, stdout, stderr,
			func(env *localEnv, rest []string) (string, error) {
				if err := env.Workspace.RenameChangelist(rest[0], rest[1]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Renamed %s to %s", rest[0], rest[1]), nil
			})
	case "delete":
		return runChangelistMutation(args[1:], "delete <id>", 1, stdout, stderr,
			func(env *localEnv, rest []string) (string, error) {
				if err := env.Workspace.DeleteChangelist(rest[0]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted changelist %s", rest[0]), nil
			})
	case "activate":
		return runChangelistMutation(args[1:], "activate <id>", 1, stdout, stderr,
			func(env *localEnv, rest []string) (string, error) {
				if err := env.Workspace.SetActive(rest[0]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Active changelist is now %s", rest[0]), nil
			})
	case "assign":
		return runChangelistMutation(args[1:], "assign <id> <path>...", 2, stdout, stderr,
			func(env *localEnv, rest []string) (string, error) {
				if err := env.Workspace.AssignFiles(rest[0], rest[1:]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Assigned %d file(s) to %s", len(rest)-1, rest[0]), nil
			})
	case "unassign":
		return runChangelistMutation(args[1:], "unassign <path>...", 1, stdout, stderr,
			func(env *localEnv, rest []string) (string, error) {
				if err := env.Workspace.UnassignFiles(rest); err != nil {
					return "", err
				}
				return fmt.Sprintf("Unassigned %d file(s)", len(rest)), nil
			})
	default:
		fmt.Fprintf(stderr, "Unknown changelist command: %s\n", args[0])
		fmt.Fprint(stdout, changelistUsage)
		return 1
	}
}

// runChangelistMutation parses the shared flags, requires at least minArgs
// positional arguments and prints fn's summary.
func runChangelistMutation(args []string, usageLine string, minArgs int, stdout, stderr io.Writer,
	fn func(env *localEnv, rest []string) (string, error)) int {
	var lf localFlags
	fs := newLocalFlagSet("changelist", "changelist "+usageLine, stderr, &lf)
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() < minArgs {
		fmt.Fprintln(stderr, "Error: missing arguments")
		fs.Usage()
		return 1
	}

	env, err := openLocal(&lf)
	if err != nil {
		return printError(stderr, err)
	}
	defer env.Close()

	summary, err := fn(env, fs.Args())
	if err != nil {
		return printError(stderr, err)
	}
	fmt.Fprintln(stdout, summary)
	return 0
}

func runChangelistList(args []string, stdout, stderr io.Writer) int {
	var lf localFlags
	fs := newLocalFlagSet("changelist list", "changelist list [options]", stderr, &lf)
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}

	env, err := openLocal(&lf)
	if err != nil {
		return printError(stderr, err)
	}
	defer env.Close()

	fmt.Fprintln(stdout, renderChangelists(env.Workspace.State()))
	return 0
}

// renderChangelists renders one row per changelist.
func renderChangelists(state *changelist.State) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"", "ID", "Name", "Files", "Partial files", "Created"})

	for _, cl := range state.Lists {
		active := ""
		if cl.ID == state.ActiveID {
			active = "*"
		}
		tbl.AppendRow(table.Row{
			active,
			cl.ID,
			cl.Name,
			len(state.FilePaths(cl.ID)),
			len(state.HunkPaths(cl.ID)),
			time.UnixMilli(cl.CreatedAt).Format("2006-01-02 15:04"),
		})
	}
	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d", len(state.Lists))})
	return tbl.Render()
}

package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd
var Version = "dev"

const usage = `gitpanel - changelists and live diffs for a git working tree

Usage:
  gitpanel <command> [options]

Commands:
  serve                        Serve the repository to the UI over WebSocket
  diff <path>                  Print a file's canonical diff
  changelist list              List changelists
  changelist create <name>     Create a changelist
  changelist rename <id> <name>  Rename a changelist
  changelist delete <id>       Delete a changelist
  changelist activate <id>     Make a changelist the active one
  changelist assign <id> <path>...  Move whole files to a changelist
  changelist unassign <path>...     Return files to the default changelist
  hunks list <path>            List a file's hunks with their IDs
  hunks assign <id> <path> <hunk-id>...  Assign hunks of a file
  hunks unassign <path> <hunk-id>...     Drop hunks from a file's selection
  hunks invalid <id> <path>    Show stale hunk selections
  preview <id>                 Show what committing a changelist would include
  token                        Generate a bearer token and its hash
  version                      Print the version

Run 'gitpanel <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "serve":
		return runServe(args[2:], stdout, stderr)
	case "diff":
		return runDiff(args[2:], stdout, stderr)
	case "changelist":
		return runChangelist(args[2:], stdout, stderr)
	case "hunks":
		return runHunks(args[2:], stdout, stderr)
	case "preview":
		return runPreview(args[2:], stdout, stderr)
	case "token":
		return runToken(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "gitpanel %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/gitpanel/host/internal/auth"
	"github.com/gitpanel/host/internal/config"
)

// runToken prints a fresh bearer token and the bcrypt hash to put in the
// config file. Only the hash is ever stored.
func runToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	writeConfig := fs.String("write-config", "", "Create this config file with auth enabled (does not overwrite)")
	repo := fs.String("repo", config.DefaultRepo, "Repository recorded in the new config file")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: gitpanel token [options]\n\nGenerate a bearer token for the UI.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	token, hash, err := auth.GenerateToken()
	if err != nil {
		return printError(stderr, err)
	}

	fmt.Fprintf(stdout, "token:      %s\n", token)
	fmt.Fprintf(stdout, "token_hash: %s\n", hash)

	if *writeConfig != "" {
		absRepo, err := filepath.Abs(*repo)
		if err != nil {
			return printError(stderr, err)
		}
		if err := config.WriteDefault(*writeConfig, absRepo, hash); err != nil {
			return printError(stderr, err)
		}
		fmt.Fprintf(stdout, "Config written to %s (existing files are left untouched).\n", *writeConfig)
	} else {
		fmt.Fprintln(stdout, "\nAdd to your config file:")
		fmt.Fprintln(stdout, "  require_auth = true")
		fmt.Fprintf(stdout, "  token_hash = %q\n", hash)
	}
	return 0
}

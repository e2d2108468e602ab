package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/config"
	"github.com/gitpanel/host/internal/diff"
	"github.com/gitpanel/host/internal/dispatch"
	"github.com/gitpanel/host/internal/git"
	"github.com/gitpanel/host/internal/storage"
	"github.com/gitpanel/host/internal/workspace"
)

// localFlags are shared by the commands that work on the repository
// directly instead of through a running server.
type localFlags struct {
	Config string
	Repo   string
	DBPath string
}

func (f *localFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file (default: ~/.gitpanel/config.toml)")
	fs.StringVar(&f.Repo, "repo", "", "Path to repository (default: current directory)")
	fs.StringVar(&f.DBPath, "db", "", "Path to state database (default: ~/.gitpanel/gitpanel.db)")
}

// resolve merges the flags over the config file and fills in defaults.
func (f *localFlags) resolve() (config.Config, error) {
	fileCfg, err := config.Load(f.Config)
	if err != nil {
		return config.Config{}, err
	}
	cfg := *fileCfg
	if f.Repo != "" {
		cfg.Repo = f.Repo
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	return cfg.WithDefaults(), nil
}

// localEnv is an opened workspace plus everything it owns.
type localEnv struct {
	Config    config.Config
	Source    *git.Source
	Store     *storage.SQLiteStore
	Dispatch  *dispatch.Channel
	Workspace *workspace.Workspace
}

// openLocal opens the repository and state database named by f.
func openLocal(f *localFlags) (*localEnv, error) {
	cfg, err := f.resolve()
	if err != nil {
		return nil, err
	}
	return openWorkspace(cfg, nil, nil)
}

// openWorkspace wires source, store and dispatch channel into a workspace.
// reg receives dispatch metrics when non-nil.
func openWorkspace(cfg config.Config, reg prometheus.Registerer, onChange func(*changelist.State)) (*localEnv, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("cannot determine database path; pass --db")
	}
	repo, err := filepath.Abs(cfg.Repo)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}
	if info, err := os.Stat(repo); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("repository not found: %s", repo)
	}
	cfg.Repo = repo

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	src := git.NewSource(repo)
	src.ContextLines = cfg.ContextLines
	src.LargeDiffBytes = cfg.LargeDiffBytes

	ch := dispatch.New(dispatch.Config{
		Workers:    cfg.DispatchWorkers,
		QueueSize:  cfg.DispatchQueue,
		Registerer: reg,
	})

	ws, err := workspace.Open(workspace.Config{
		Source:   src,
		Dispatch: ch,
		Store:    store,
		Options: diff.Options{
			InlineHighlights: cfg.InlineHighlights,
		},
		OnStateChange: onChange,
	})
	if err != nil {
		ch.Close()
		store.Close()
		return nil, err
	}

	return &localEnv{
		Config:    cfg,
		Source:    src,
		Store:     store,
		Dispatch:  ch,
		Workspace: ws,
	}, nil
}

// Close releases the dispatch workers and the database.
func (e *localEnv) Close() {
	e.Dispatch.Close()
	e.Store.Close()
}

// newLocalFlagSet creates a flag set carrying the shared local flags.
func newLocalFlagSet(name, usageLine string, stderr io.Writer, lf *localFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	lf.register(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: gitpanel %s\n\nOptions:\n", usageLine)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args and maps the outcome to an exit code. ok is false
// when the command should return code immediately.
func parseFlags(fs *flag.FlagSet, args []string) (ok bool, code int) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, 0
		}
		return false, 1
	}
	return true, 0
}

// printError writes err the way every command reports failures.
func printError(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

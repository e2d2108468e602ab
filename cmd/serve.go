package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gitpanel/host/internal/auth"
	"github.com/gitpanel/host/internal/config"
	"github.com/gitpanel/host/internal/server"
	"github.com/gitpanel/host/internal/watch"
)

// previewAuditRetention bounds the preview audit table.
const previewAuditRetention = 30 * 24 * time.Hour

// ServeConfig holds the command-line values for serve.
type ServeConfig struct {
	Config           string
	Repo             string
	Addr             string
	DBPath           string
	LogFile          string
	LogLevel         string
	WatchMode        string
	RequireAuth      bool
	InlineHighlights bool
}

func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cli := &ServeConfig{}
	fs.StringVar(&cli.Config, "config", "", "Path to config file (default: ~/.gitpanel/config.toml)")
	fs.StringVar(&cli.Repo, "repo", "", "Path to repository to serve (default: current directory)")
	fs.StringVar(&cli.Addr, "addr", "", "Address for the WebSocket server (default: 127.0.0.1:7171)")
	fs.StringVar(&cli.DBPath, "db", "", "Path to state database (default: ~/.gitpanel/gitpanel.db)")
	fs.StringVar(&cli.LogFile, "log-file", "", "Write logs to this file instead of stderr")
	fs.StringVar(&cli.LogLevel, "log-level", "", "Log level: debug, info (default: info)")
	fs.StringVar(&cli.WatchMode, "watch", "", "Change notification: fsnotify, poll or off (default: fsnotify)")
	fs.BoolVar(&cli.RequireAuth, "require-auth", false, "Require a bearer token on /ws")
	fs.BoolVar(&cli.InlineHighlights, "inline-highlights", false, "Compute intra-line changes for every diff")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: gitpanel serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	explicitFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicitFlags[f.Name] = true
	})

	fileCfg, err := config.Load(cli.Config)
	if err != nil {
		return printError(stderr, err)
	}
	cfg := mergeServeConfig(cli, *fileCfg, explicitFlags).WithDefaults()
	if err := cfg.Validate(); err != nil {
		return printError(stderr, err)
	}
	if cfg.RequireAuth && cfg.TokenHash == "" {
		return printError(stderr, errors.New("require_auth is set but token_hash is empty; run 'gitpanel token'"))
	}

	logFile, err := setupLogging(cfg, stderr)
	if err != nil {
		return printError(stderr, err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.NewServer(cfg.Addr)
	env, err := openWorkspace(cfg, reg, srv.BroadcastState)
	if err != nil {
		return printError(stderr, err)
	}
	defer env.Close()

	if n, err := env.Store.CleanupPreviewAudit(previewAuditRetention); err != nil {
		log.Printf("storage: preview audit cleanup failed: %v", err)
	} else if n > 0 {
		log.Printf("storage: removed %d old preview audit entries", n)
	}

	srv.SetWorkspace(env.Workspace)
	srv.SetRequestsPerSecond(cfg.RequestsPerSecond)
	srv.SetMetricsGatherer(reg)
	if cfg.RequireAuth {
		validator := auth.NewTokenValidator(cfg.TokenHash)
		srv.SetTokenValidator(validator.ValidateToken, true)
	}

	onChange := func() {
		env.Source.InvalidateCache()
		srv.BroadcastRepoChanged()
		// Status refresh moves assignments across renames and broadcasts
		// the state when that changed anything.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := env.Workspace.Status(ctx); err != nil {
			log.Printf("watch: status refresh failed: %v", err)
		}
	}
	stopWatch, err := startWatching(cfg, env, onChange)
	if err != nil {
		return printError(stderr, err)
	}
	defer stopWatch()

	if err := <-srv.StartAsync(); err != nil {
		return printError(stderr, err)
	}

	fmt.Fprintf(stdout, "Serving %s\n", cfg.Repo)
	fmt.Fprintf(stdout, "Connect to ws://%s/ws (metrics at http://%s/metrics).\n", cfg.Addr, cfg.Addr)
	fmt.Fprintln(stdout, "Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigCh
	fmt.Fprintf(stdout, "\nReceived signal %v, stopping...\n", sig)

	// Server first so no request reaches a closed dispatch channel.
	srv.Stop()
	return 0
}

// mergeServeConfig applies file values wherever the command line left a
// field unset. Booleans from the file apply only when the flag was not
// given explicitly, so --require-auth=false overrides the file.
func mergeServeConfig(cli *ServeConfig, file config.Config, explicit map[string]bool) config.Config {
	cfg := file
	if cli.Repo != "" {
		cfg.Repo = cli.Repo
	}
	if cli.Addr != "" {
		cfg.Addr = cli.Addr
	}
	if cli.DBPath != "" {
		cfg.DBPath = cli.DBPath
	}
	if cli.LogFile != "" {
		cfg.LogFile = cli.LogFile
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.WatchMode != "" {
		cfg.WatchMode = cli.WatchMode
	}
	if explicit["require-auth"] {
		cfg.RequireAuth = cli.RequireAuth
	}
	if explicit["inline-highlights"] {
		cfg.InlineHighlights = cli.InlineHighlights
	}
	return cfg
}

// setupLogging points the standard logger at the configured log file.
// The returned file, if any, must be closed by the caller.
func setupLogging(cfg config.Config, stderr io.Writer) (*os.File, error) {
	if cfg.LogLevel == "debug" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	if cfg.LogFile == "" {
		log.SetOutput(stderr)
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}

// startWatching starts the configured change notifier and returns its stop
// function.
func startWatching(cfg config.Config, env *localEnv, onChange func()) (func(), error) {
	onError := func(err error) {
		log.Printf("watch: %v", err)
	}

	switch cfg.WatchMode {
	case config.WatchOff:
		log.Printf("watch: change notification disabled")
		return func() {}, nil

	case config.WatchPoll:
		p := watch.NewPoller(watch.PollerConfig{
			Source:        env.Source,
			PollInterval:  cfg.PollInterval(),
			IncludeStaged: true,
			OnChange:      onChange,
			OnError:       onError,
		})
		p.Start()
		log.Printf("watch: polling every %v", cfg.PollInterval())
		return p.Stop, nil

	default:
		w := watch.NewWatcher(watch.WatcherConfig{
			RepoPath: env.Config.Repo,
			Debounce: cfg.WatchDebounce(),
			OnChange: onChange,
			OnError:  onError,
		})
		if err := w.Start(); err != nil {
			return nil, fmt.Errorf("failed to watch repository: %w", err)
		}
		return w.Stop, nil
	}
}

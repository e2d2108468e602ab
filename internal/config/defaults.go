package config

// DefaultDirName is the per-user directory under $HOME.
const DefaultDirName = ".gitpanel"

// DefaultAddr is the default listen address for the WebSocket server.
const DefaultAddr = "127.0.0.1:7171"

// DefaultRepo falls back to the current working directory.
const DefaultRepo = "."

const (
	DefaultLogLevel          = "info"
	DefaultDispatchWorkers   = 2
	DefaultDispatchQueue     = 64
	DefaultContextLines      = 3
	DefaultWatchDebounceMs   = 400
	DefaultPollMs            = 1000
	DefaultLargeDiffBytes    = 1 << 20
	DefaultRequestsPerSecond = 50
)

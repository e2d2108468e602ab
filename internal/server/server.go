package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/workspace"
)

// channelBufferSize is the buffer size for the broadcast channel and
// per-client send channels. If a buffer fills up, messages are dropped for
// that client.
const channelBufferSize = 256

// DefaultRequestsPerSecond is the per-client request rate limit.
const DefaultRequestsPerSecond = 50

// Workspace is the changelist and diff backend the server exposes.
type Workspace interface {
	State() *changelist.State
	CreateChangelist(name string) (changelist.Changelist, error)
	RenameChangelist(id, name string) error
	DeleteChangelist(id string) error
	SetActive(id string) error
	AssignFiles(id string, paths []string) error
	UnassignFiles(paths []string) error
	AssignHunks(ctx context.Context, path, id string, refs []workspace.HunkRef) error
	UnassignHunks(path string, hunkIDs []string) error
	InvalidHunks(ctx context.Context, path, id string) ([]changelist.HunkAssignment, error)
	Preview(ctx context.Context, id string) (*changelist.Preview, error)
	Status(ctx context.Context) ([]changelist.StatusFile, error)
	IssueDiff(lane string, req workspace.DiffRequest) workspace.DiffRun
}

// TokenValidator validates bearer tokens for WebSocket connections.
type TokenValidator func(token string) error

// Server manages WebSocket connections and broadcasts messages to clients.
type Server struct {
	// addr is the address to listen on (e.g., "127.0.0.1:7171")
	addr string

	upgrader websocket.Upgrader

	// clients tracks all connected WebSocket clients.
	clients map[*Client]bool

	// mu protects clients, stopped and the configured collaborators.
	mu sync.RWMutex

	// stopped prevents sending to a closed broadcast channel.
	stopped bool

	// broadcast receives messages to send to all clients.
	broadcast chan Message

	httpServer *http.Server

	workspace Workspace

	// tokenValidator and requireAuth gate /ws. Without a validator the
	// server is open.
	tokenValidator TokenValidator
	requireAuth    bool

	// requestsPerSecond configures each new client's limiter.
	requestsPerSecond float64

	// gatherer backs /metrics. Nil disables the endpoint.
	gatherer prometheus.Gatherer

	// ctx is cancelled by Stop and bounds every request handler.
	ctx    context.Context
	cancel context.CancelFunc
}

// Client is one WebSocket connection.
type Client struct {
	conn *websocket.Conn

	// send is a buffered channel for outgoing messages.
	send chan Message

	// done is closed to signal the client should shut down.
	done chan struct{}

	// sendOnce ensures done is only closed once.
	sendOnce sync.Once

	server *Server

	// id prefixes the client's dispatch lanes.
	id string

	// limiter rejects requests above the configured rate.
	limiter *rate.Limiter
}

// NewServer creates a new WebSocket server that will listen on addr.
func NewServer(addr string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:           make(map[*Client]bool),
		broadcast:         make(chan Message, channelBufferSize),
		requestsPerSecond: DefaultRequestsPerSecond,
		ctx:               ctx,
		cancel:            cancel,
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

// SetWorkspace sets the backend for every request type.
func (s *Server) SetWorkspace(ws Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspace = ws
}

// SetTokenValidator configures authentication. When require is true,
// connections without a valid bearer token are rejected.
func (s *Server) SetTokenValidator(v TokenValidator, require bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenValidator = v
	s.requireAuth = require
}

// SetRequestsPerSecond sets the per-client rate limit for new connections.
// Values <= 0 restore the default.
func (s *Server) SetRequestsPerSecond(rps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	s.requestsPerSecond = rps
}

// SetMetricsGatherer exposes g at /metrics.
func (s *Server) SetMetricsGatherer(g prometheus.Gatherer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gatherer = g
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

package server

import (
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// createMux creates the HTTP mux with all endpoints.
func (s *Server) createMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.mu.RLock()
	gatherer := s.gatherer
	s.mu.RUnlock()

	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		log.Printf("server: metrics endpoint registered at /metrics")
	}

	return mux
}

// handleWebSocket authenticates and upgrades a connection to /ws, then
// sends the current changelist state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	requireAuth := s.requireAuth
	tokenValidator := s.tokenValidator
	rps := s.requestsPerSecond
	ws := s.workspace
	s.mu.RUnlock()

	if requireAuth {
		token := extractBearerToken(r)
		if token == "" {
			log.Printf("server: connection rejected: missing authorization token")
			http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
			return
		}
		if tokenValidator == nil {
			log.Printf("server: connection rejected: no token configured")
			http.Error(w, "Unauthorized: no token configured", http.StatusUnauthorized)
			return
		}
		if err := tokenValidator(token); err != nil {
			log.Printf("server: connection rejected: invalid token: %v", err)
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	client := &Client{
		conn:    conn,
		send:    make(chan Message, channelBufferSize),
		done:    make(chan struct{}),
		server:  s,
		id:      uuid.New().String(),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[client] = true
	s.mu.Unlock()

	log.Printf("server: client %s connected (%d total)", client.id, s.ClientCount())

	if ws != nil {
		client.send <- NewChangelistStateMessage("", ws.State())
	}

	go client.writePump()
	go client.readPump()
}

// extractBearerToken extracts the token from an Authorization header.
// Returns empty string if no valid bearer token is found.
// Supports both "Bearer <token>" header and "token" query parameter as fallback.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth != "" {
		const bearerPrefix = "Bearer "
		if len(auth) > len(bearerPrefix) {
			prefix := auth[:len(bearerPrefix)]
			if prefix == bearerPrefix || prefix == "bearer " {
				return auth[len(bearerPrefix):]
			}
		}
	}

	// Some WebSocket clients cannot set headers.
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	return ""
}

// checkOrigin admits browser connections only from loopback pages unless a
// bearer token is required. Requests without an Origin header are not from
// a browser page and are always admitted.
func (s *Server) checkOrigin(r *http.Request) bool {
	s.mu.RLock()
	requireAuth := s.requireAuth
	s.mu.RUnlock()

	origin := r.Header.Get("Origin")
	if requireAuth || isLoopbackOrigin(origin) {
		return true
	}
	log.Printf("server: connection rejected: origin %q is not local", origin)
	return false
}

func isLoopbackOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

package server

import (
	"log"

	"github.com/gitpanel/host/internal/changelist"
)

// Broadcast sends a message to all connected clients.
// This method is non-blocking; messages are queued for delivery.
// If the server has been stopped, this method does nothing.
func (s *Server) Broadcast(msg Message) {
	// Holding RLock through the send keeps Stop from closing the channel
	// underneath us.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return
	}

	select {
	case s.broadcast <- msg:
	default:
		log.Printf("server: broadcast channel full, dropping %s", msg.Type)
	}
}

// BroadcastRepoChanged tells clients to refresh status and open diffs.
func (s *Server) BroadcastRepoChanged() {
	s.Broadcast(NewRepoChangedMessage())
}

// BroadcastState sends the changelist state to all clients.
func (s *Server) BroadcastState(state *changelist.State) {
	s.Broadcast(NewChangelistStateMessage("", state))
}

// runBroadcaster reads from the broadcast channel and sends to all clients.
func (s *Server) runBroadcaster() {
	for msg := range s.broadcast {
		s.mu.RLock()
		for client := range s.clients {
			select {
			case <-client.done:
			case client.send <- msg:
			default:
				log.Printf("server: client %s send buffer full, dropping %s", client.id, msg.Type)
			}
		}
		s.mu.RUnlock()
	}
}

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/gitpanel/host/internal/errors"
)

// closeSend safely signals the client to shut down exactly once.
// Only done is closed, never send, so concurrent senders cannot panic.
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.done)
	})
}

// writePump sends queued messages to the WebSocket and pings every 30s.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("server: failed to marshal %s: %v", msg.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("server: write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads requests until the connection closes and routes each to
// its handler.
func (c *Client) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()

		c.closeSend()

		log.Printf("server: client %s disconnected (%d remaining)", c.id, c.server.ClientCount())
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Printf("server: read error: %v", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("server: failed to parse message: %v", err)
			c.sendError("", apperrors.InvalidMessage("invalid message format"))
			continue
		}

		if !c.limiter.Allow() {
			c.sendError(msg.ID, apperrors.RateLimited())
			continue
		}

		c.route(msg, data)
	}
}

// route dispatches one request by type.
func (c *Client) route(msg Message, data []byte) {
	ws := c.workspace()
	if ws == nil {
		c.sendError(msg.ID, apperrors.Internal("workspace not configured", nil))
		return
	}

	switch msg.Type {
	case MessageTypeDiffRequest:
		c.handleDiffRequest(ws, data)
	case MessageTypeChangelistList:
		c.reply(NewChangelistStateMessage(msg.ID, ws.State()))
	case MessageTypeChangelistCreate:
		c.handleChangelistCreate(ws, data)
	case MessageTypeChangelistRename:
		c.handleChangelistRename(ws, data)
	case MessageTypeChangelistDelete:
		c.handleChangelistDelete(ws, data)
	case MessageTypeChangelistActivate:
		c.handleChangelistActivate(ws, data)
	case MessageTypeChangelistAssignFiles:
		c.handleAssignFiles(ws, data)
	case MessageTypeChangelistUnassignFiles:
		c.handleUnassignFiles(ws, data)
	case MessageTypeHunksAssign:
		c.handleHunksAssign(ws, data)
	case MessageTypeHunksUnassign:
		c.handleHunksUnassign(ws, data)
	case MessageTypeHunksInvalid:
		c.handleHunksInvalid(ws, data)
	case MessageTypeCommitPreview:
		c.handleCommitPreview(ws, data)
	case MessageTypeRepoStatus:
		c.handleRepoStatus(ws, msg.ID)
	default:
		log.Printf("server: unknown message type %q", msg.Type)
		c.sendError(msg.ID, apperrors.InvalidMessage(fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

func (c *Client) workspace() Workspace {
	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	return c.server.workspace
}

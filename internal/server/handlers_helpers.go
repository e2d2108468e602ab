package server

import (
	"encoding/json"
	"log"
	"time"

	apperrors "github.com/gitpanel/host/internal/errors"
)

// replyTimeout bounds how long a handler waits on a slow client.
const replyTimeout = 5 * time.Second

// decodeRequest parses a request envelope with a typed payload.
func decodeRequest[T any](data []byte) (id string, payload T, err error) {
	var msg struct {
		ID      string `json:"id,omitempty"`
		Payload T      `json:"payload"`
	}
	err = json.Unmarshal(data, &msg)
	return msg.ID, msg.Payload, err
}

// reply queues msg for this client, giving up when the client goes away or
// stays full for replyTimeout.
func (c *Client) reply(msg Message) {
	select {
	case <-c.done:
	case c.send <- msg:
	case <-time.After(replyTimeout):
		log.Printf("server: timeout sending %s to client %s", msg.Type, c.id)
	}
}

// sendError answers request id with err's code and message.
func (c *Client) sendError(id string, err error) {
	code, message := apperrors.ToCodeAndMessage(err)
	c.reply(NewErrorMessage(id, code, message))
}

// invalidPayload answers a request whose payload could not be decoded.
func (c *Client) invalidPayload(id string, kind MessageType, err error) {
	log.Printf("server: failed to parse %s payload: %v", kind, err)
	c.sendError(id, apperrors.InvalidMessage("invalid "+string(kind)+" payload"))
}

package server

import (
	"context"
	"time"

	apperrors "github.com/gitpanel/host/internal/errors"
)

// requestTimeout bounds git work done for one request.
const requestTimeout = 30 * time.Second

// mutation runs fn and answers with the new state or the error.
func (c *Client) mutation(ws Workspace, id string, fn func() error) {
	if err := fn(); err != nil {
		c.sendError(id, err)
		return
	}
	c.reply(NewChangelistStateMessage(id, ws.State()))
}

func (c *Client) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.server.ctx, requestTimeout)
}

func (c *Client) handleChangelistCreate(ws Workspace, data []byte) {
	id, p, err := decodeRequest[ChangelistCreatePayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeChangelistCreate, err)
		return
	}
	c.mutation(ws, id, func() error {
		_, err := ws.CreateChangelist(p.Name)
		return err
	})
}

func (c *Client) handleChangelistRename(ws Workspace, data []byte) {
	id, p, err := decodeRequest[ChangelistRenamePayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeChangelistRename, err)
		return
	}
	c.mutation(ws, id, func() error {
		return ws.RenameChangelist(p.ID, p.Name)
	})
}

func (c *Client) handleChangelistDelete(ws Workspace, data []byte) {
	id, p, err := decodeRequest[ChangelistIDPayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeChangelistDelete, err)
		return
	}
	c.mutation(ws, id, func() error {
		return ws.DeleteChangelist(p.ID)
	})
}

func (c *Client) handleChangelistActivate(ws Workspace, data []byte) {
	id, p, err := decodeRequest[ChangelistIDPayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeChangelistActivate, err)
		return
	}
	c.mutation(ws, id, func() error {
		return ws.SetActive(p.ID)
	})
}

func (c *Client) handleAssignFiles(ws Workspace, data []byte) {
	id, p, err := decodeRequest[AssignFilesPayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeChangelistAssignFiles, err)
		return
	}
	if len(p.Paths) == 0 {
		c.sendError(id, apperrors.InvalidMessage("paths is required"))
		return
	}
	c.mutation(ws, id, func() error {
		return ws.AssignFiles(p.ID, p.Paths)
	})
}

func (c *Client) handleUnassignFiles(ws Workspace, data []byte) {
	id, p, err := decodeRequest[AssignFilesPayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeChangelistUnassignFiles, err)
		return
	}
	c.mutation(ws, id, func() error {
		return ws.UnassignFiles(p.Paths)
	})
}

func (c *Client) handleHunksAssign(ws Workspace, data []byte) {
	id, p, err := decodeRequest[HunksAssignPayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeHunksAssign, err)
		return
	}
	if p.Path == "" {
		c.sendError(id, apperrors.InvalidMessage("path is required"))
		return
	}
	ctx, cancel := c.requestContext()
	defer cancel()
	c.mutation(ws, id, func() error {
		return ws.AssignHunks(ctx, p.Path, p.ChangelistID, p.Hunks)
	})
}

func (c *Client) handleHunksUnassign(ws Workspace, data []byte) {
	id, p, err := decodeRequest[HunksUnassignPayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeHunksUnassign, err)
		return
	}
	c.mutation(ws, id, func() error {
		return ws.UnassignHunks(p.Path, p.HunkIDs)
	})
}

func (c *Client) handleHunksInvalid(ws Workspace, data []byte) {
	id, p, err := decodeRequest[HunksInvalidPayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeHunksInvalid, err)
		return
	}
	ctx, cancel := c.requestContext()
	defer cancel()

	invalid, err := ws.InvalidHunks(ctx, p.Path, p.ChangelistID)
	if err != nil {
		c.sendError(id, err)
		return
	}
	c.reply(Message{
		Type: MessageTypeHunksInvalidResult,
		ID:   id,
		Payload: HunksInvalidResultPayload{
			Path:         p.Path,
			ChangelistID: p.ChangelistID,
			Invalid:      invalid,
		},
	})
}

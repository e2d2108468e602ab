package server

import (
	"log"

	"github.com/gitpanel/host/internal/diff"
	apperrors "github.com/gitpanel/host/internal/errors"
	"github.com/gitpanel/host/internal/workspace"
)

// handleDiffRequest issues the request on the read loop, so lane order is
// the order messages arrived, then builds it off the loop so a newer request
// on the same lane can overtake it. Superseded results are dropped silently.
func (c *Client) handleDiffRequest(ws Workspace, data []byte) {
	id, p, err := decodeRequest[DiffRequestPayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeDiffRequest, err)
		return
	}
	if p.Path == "" {
		c.sendError(id, apperrors.InvalidMessage("path is required"))
		return
	}
	kind, err := diff.ParseKind(string(p.Kind))
	if err != nil {
		c.sendError(id, apperrors.InvalidMessage(err.Error()))
		return
	}

	lane := c.id
	if p.Lane != "" {
		lane += ":" + p.Lane
	}
	req := workspace.DiffRequest{
		Path:             p.Path,
		Kind:             kind,
		IncludeContents:  p.IncludeContents,
		InlineHighlights: p.InlineHighlights,
	}

	run := ws.IssueDiff(lane, req)
	go func() {
		ctx, cancel := c.requestContext()
		defer cancel()

		res, err := run(ctx)
		if apperrors.IsCode(err, apperrors.CodeDiffSuperseded) {
			log.Printf("server: diff request %s for %s superseded", id, p.Path)
			return
		}
		if err != nil {
			c.sendError(id, err)
			return
		}
		c.reply(Message{Type: MessageTypeDiffResult, ID: id, Payload: res})
	}()
}

func (c *Client) handleCommitPreview(ws Workspace, data []byte) {
	id, p, err := decodeRequest[ChangelistIDPayload](data)
	if err != nil {
		c.invalidPayload(id, MessageTypeCommitPreview, err)
		return
	}
	ctx, cancel := c.requestContext()
	defer cancel()

	preview, err := ws.Preview(ctx, p.ID)
	if err != nil {
		c.sendError(id, err)
		return
	}
	c.reply(Message{
		Type: MessageTypeCommitPreviewResult,
		ID:   id,
		Payload: CommitPreviewResultPayload{
			Preview: preview,
			Blocked: preview.Blocked(),
		},
	})
}

func (c *Client) handleRepoStatus(ws Workspace, id string) {
	ctx, cancel := c.requestContext()
	defer cancel()

	files, err := ws.Status(ctx)
	if err != nil {
		c.sendError(id, err)
		return
	}
	c.reply(Message{
		Type:    MessageTypeRepoStatusResult,
		ID:      id,
		Payload: RepoStatusResultPayload{Files: files},
	})
}

// Package server provides the WebSocket server the UI talks to. Requests
// form a closed set of message types, each decoded into a typed payload and
// answered on the requesting connection. Repository changes and changelist
// updates are broadcast to every client.
package server

import (
	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/diff"
	"github.com/gitpanel/host/internal/workspace"
)

// MessageType identifies the kind of message being sent over WebSocket.
// Each type has a specific payload structure defined below.
type MessageType string

// Requests sent by clients.
const (
	// Payload: DiffRequestPayload
	MessageTypeDiffRequest MessageType = "diff.request"

	// Payload: none
	MessageTypeChangelistList MessageType = "changelist.list"

	// Payload: ChangelistCreatePayload
	MessageTypeChangelistCreate MessageType = "changelist.create"

	// Payload: ChangelistRenamePayload
	MessageTypeChangelistRename MessageType = "changelist.rename"

	// Payload: ChangelistIDPayload
	MessageTypeChangelistDelete MessageType = "changelist.delete"

	// Payload: ChangelistIDPayload
	MessageTypeChangelistActivate MessageType = "changelist.activate"

	// Payload: AssignFilesPayload
	MessageTypeChangelistAssignFiles MessageType = "changelist.assign_files"

	// Payload: AssignFilesPayload (ID ignored)
	MessageTypeChangelistUnassignFiles MessageType = "changelist.unassign_files"

	// Payload: HunksAssignPayload
	MessageTypeHunksAssign MessageType = "hunks.assign"

	// Payload: HunksUnassignPayload
	MessageTypeHunksUnassign MessageType = "hunks.unassign"

	// Payload: HunksInvalidPayload
	MessageTypeHunksInvalid MessageType = "hunks.invalid"

	// Payload: ChangelistIDPayload
	MessageTypeCommitPreview MessageType = "commit.preview"

	// Payload: none
	MessageTypeRepoStatus MessageType = "repo.status"
)

// Messages sent by the server.
const (
	// MessageTypeDiffResult answers diff.request. Superseded requests get
	// no answer at all.
	// Payload: workspace.DiffResult
	MessageTypeDiffResult MessageType = "diff.result"

	// MessageTypeChangelistState answers every changelist mutation and is
	// broadcast whenever the state changes.
	// Payload: changelist.State
	MessageTypeChangelistState MessageType = "changelist.state"

	// Payload: HunksInvalidResultPayload
	MessageTypeHunksInvalidResult MessageType = "hunks.invalid_result"

	// Payload: CommitPreviewResultPayload
	MessageTypeCommitPreviewResult MessageType = "commit.preview_result"

	// Payload: RepoStatusResultPayload
	MessageTypeRepoStatusResult MessageType = "repo.status_result"

	// MessageTypeRepoChanged is broadcast when the working tree or index
	// changed on disk.
	// Payload: none
	MessageTypeRepoChanged MessageType = "repo.changed"

	// Payload: ErrorPayload
	MessageTypeError MessageType = "error"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	// Type identifies what kind of message this is.
	Type MessageType `json:"type"`

	// ID correlates a response with its request. Broadcasts have none.
	ID string `json:"id,omitempty"`

	// Payload contains the message-specific data.
	Payload interface{} `json:"payload"`
}

// ErrorPayload carries error information.
type ErrorPayload struct {
	// Code is a stable error code for programmatic handling.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// DiffRequestPayload asks for a file's renderable diff.
type DiffRequestPayload struct {
	Path             string    `json:"path"`
	Kind             diff.Kind `json:"kind"`
	IncludeContents  bool      `json:"include_contents"`
	InlineHighlights bool      `json:"inline_highlights"`

	// Lane separates independent views on the same connection. Within a
	// lane only the newest request is answered.
	Lane string `json:"lane,omitempty"`
}

// ChangelistCreatePayload names a new changelist.
type ChangelistCreatePayload struct {
	Name string `json:"name"`
}

// ChangelistRenamePayload renames a changelist.
type ChangelistRenamePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChangelistIDPayload names one changelist.
type ChangelistIDPayload struct {
	ID string `json:"id"`
}

// AssignFilesPayload moves whole files.
type AssignFilesPayload struct {
	ID    string   `json:"id"`
	Paths []string `json:"paths"`
}

// HunksAssignPayload selects hunks of one file for a changelist.
type HunksAssignPayload struct {
	Path         string              `json:"path"`
	ChangelistID string              `json:"changelist_id"`
	Hunks        []workspace.HunkRef `json:"hunks"`
}

// HunksUnassignPayload drops hunks from a file's selection.
type HunksUnassignPayload struct {
	Path    string   `json:"path"`
	HunkIDs []string `json:"hunk_ids"`
}

// HunksInvalidPayload asks which selected hunks of a file went stale.
type HunksInvalidPayload struct {
	Path         string `json:"path"`
	ChangelistID string `json:"changelist_id"`
}

// HunksInvalidResultPayload lists stale hunk selections.
type HunksInvalidResultPayload struct {
	Path         string                      `json:"path"`
	ChangelistID string                      `json:"changelist_id"`
	Invalid      []changelist.HunkAssignment `json:"invalid"`
}

// CommitPreviewResultPayload is a commit preview plus its verdict.
type CommitPreviewResultPayload struct {
	Preview *changelist.Preview `json:"preview"`
	Blocked bool                `json:"blocked"`
}

// RepoStatusResultPayload lists changed files with their changelists.
type RepoStatusResultPayload struct {
	Files []changelist.StatusFile `json:"files"`
}

// NewErrorMessage creates an error message answering request id.
func NewErrorMessage(id, code, message string) Message {
	return Message{
		Type: MessageTypeError,
		ID:   id,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// NewChangelistStateMessage creates a changelist.state message.
func NewChangelistStateMessage(id string, state *changelist.State) Message {
	return Message{Type: MessageTypeChangelistState, ID: id, Payload: state}
}

// NewRepoChangedMessage creates a repo.changed broadcast.
func NewRepoChangedMessage() Message {
	return Message{Type: MessageTypeRepoChanged, Payload: struct{}{}}
}

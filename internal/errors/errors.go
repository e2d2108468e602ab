// Package errors provides standardized error codes for the gitpanel host.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (diff, changelist, storage, server)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by UI clients for programmatic
// error handling. Human-readable messages are provided alongside codes.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes by domain.
const (
	// Diff domain - diff fetching, canonicalization and dispatch
	CodeDiffUnrenderable = "diff.unrenderable"  // Patch produced no renderable hunks
	CodeDiffParseFailed  = "diff.parse_failed"  // Both primary and fallback patches failed
	CodeDiffSuperseded   = "diff.superseded"    // A newer request replaced this one
	CodeDiffSourceFailed = "diff.source_failed" // The diff backend (git) failed

	// Changelist domain - bucket management and hunk assignment
	CodeChangelistUnknown          = "changelist.unknown"           // Changelist id does not exist
	CodeChangelistDefaultProtected = "changelist.default_protected" // Default changelist cannot be deleted
	CodeChangelistNoHunks          = "changelist.no_hunks"          // Empty hunk selection
	CodeChangelistHunkNotFound     = "changelist.hunk_not_found"    // Selected hunk id is not in the live diff
	CodeChangelistInvalidHunks     = "changelist.invalid_hunks"     // Stale hunk assignments block commit
	CodeChangelistEmpty            = "changelist.empty"             // Changelist has nothing to commit
	CodeChangelistConflicted       = "changelist.conflicted"        // Changelist contains conflicted files
	CodeChangelistInvalidName      = "changelist.invalid_name"      // Empty changelist name

	// Storage domain - database and persistence errors
	CodeStorageOpenFailed  = "storage.open_failed"  // Database open failed
	CodeStorageQueryFailed = "storage.query_failed" // Database query failed
	CodeStorageSaveFailed  = "storage.save_failed"  // Failed to save data

	// Server domain - WebSocket and network errors
	CodeServerUpgradeFailed  = "server.upgrade_failed"  // WebSocket upgrade failed
	CodeServerInvalidMessage = "server.invalid_message" // Malformed or invalid message
	CodeServerRateLimited    = "server.rate_limited"    // Too many requests per second

	// Auth domain
	CodeAuthRequired = "auth.required" // Authentication required
	CodeAuthInvalid  = "auth.invalid"  // Invalid token

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal server error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "diff.unrenderable")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to client responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// Unrenderable creates a "diff.unrenderable" error for a single patch attempt.
func Unrenderable(path, reason string) *CodedError {
	return New(CodeDiffUnrenderable, fmt.Sprintf("diff for %s could not be rendered: %s", path, reason))
}

// ParseFailed creates a "diff.parse_failed" error. The message joins every
// attempt's message so the caller sees why each source was rejected.
func ParseFailed(path string, attempts []string) *CodedError {
	msg := fmt.Sprintf("diff for %s could not be parsed", path)
	if len(attempts) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(attempts, "; "))
	}
	return New(CodeDiffParseFailed, msg)
}

// Superseded creates a "diff.superseded" error.
func Superseded(seq uint64) *CodedError {
	return New(CodeDiffSuperseded, fmt.Sprintf("diff request %d was superseded by a newer request", seq))
}

// SourceFailed creates a "diff.source_failed" error.
func SourceFailed(path string, cause error) *CodedError {
	return Wrap(CodeDiffSourceFailed, fmt.Sprintf("git diff failed for %s", path), cause)
}

// UnknownChangelist creates a "changelist.unknown" error.
func UnknownChangelist(id string) *CodedError {
	return New(CodeChangelistUnknown, fmt.Sprintf("unknown changelist id: %s", id))
}

// InvalidName creates a "changelist.invalid_name" error.
func InvalidName() *CodedError {
	return New(CodeChangelistInvalidName, "changelist name must not be empty")
}

// DefaultProtected creates a "changelist.default_protected" error.
func DefaultProtected() *CodedError {
	return New(CodeChangelistDefaultProtected, "cannot delete default changelist")
}

// NoHunks creates a "changelist.no_hunks" error.
func NoHunks(path string) *CodedError {
	return New(CodeChangelistNoHunks, fmt.Sprintf("no hunks provided for %s", path))
}

// HunkNotFound creates a "changelist.hunk_not_found" error.
// The hunk was selected in the UI but is gone from the current diff.
func HunkNotFound(path, hunkID string) *CodedError {
	return New(CodeChangelistHunkNotFound, fmt.Sprintf("hunk %s not found in %s, refresh and reselect", hunkID, path))
}

// InvalidHunks creates a "changelist.invalid_hunks" error.
// This blocks a commit until the user reselects the stale hunks.
func InvalidHunks(count int) *CodedError {
	return New(CodeChangelistInvalidHunks, fmt.Sprintf("%d hunk(s) need reselect before committing", count))
}

// EmptyChangelist creates a "changelist.empty" error.
func EmptyChangelist(id string) *CodedError {
	return New(CodeChangelistEmpty, fmt.Sprintf("changelist %s has no files", id))
}

// ConflictedChangelist creates a "changelist.conflicted" error.
func ConflictedChangelist(files []string) *CodedError {
	msg := "changelist contains conflicted files"
	if len(files) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(files, ", "))
	}
	return New(CodeChangelistConflicted, msg)
}

// InvalidMessage creates a "server.invalid_message" error.
func InvalidMessage(reason string) *CodedError {
	return New(CodeServerInvalidMessage, reason)
}

// RateLimited creates a "server.rate_limited" error.
func RateLimited() *CodedError {
	return New(CodeServerRateLimited, "too many requests, slow down")
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}

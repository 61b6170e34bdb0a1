package core

// # Error Codes Reference
//
// Operators see these codes in logs, in the status API and in the persisted
// lastError of a table. Quote the code when reporting a problem.
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Source unreachable: The accounting system did not answer
//	         Action: Check that the source application is running and its HTTP server is enabled
//	         Match: *SourceError not wrapping ErrSourceRejected, "tally", "source"
//
//	SRC002 - Source rejected request: The source answered with an error instead of data
//	         Action: Check the company name and that the company is open in the source
//	         Match: ErrSourceRejected
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Record skipped: A record could not be parsed and was left out
//	         Action: Review the record in the source; other records were synced
//	         Match: *RecordError
//
// # Remote Errors (RMT001-RMT099)
//
//	RMT001 - Remote unreachable: The remote service could not be reached
//	         Action: Check network connectivity and the remote base URL
//	         Match: ErrRemoteUnhealthy, "connection refused", "no such host"
//
//	RMT002 - Chunk rejected: The remote service refused a chunk
//	         Action: Check the remote service logs for the rejected table
//	         Match: ErrChunkRejected, *ChunkError
//
//	RMT003 - Circuit open: Calls to the remote service are paused after repeated failures
//	         Action: Wait for the cooldown to expire; the next cycle will probe again
//	         Match: ErrCircuitOpen
//
// # Persistence Errors (PST001-PST099)
//
//	PST001 - State not saved: Sync progress could not be written
//	         Action: Check the state backend; the table will be resent next cycle
//	         Match: *PersistError
//
// # Sync Errors (SYN001-SYN099)
//
//	SYN001 - Cycle in progress: Another sync cycle is still running
//	         Action: Wait for the running cycle to finish
//	         Match: ErrCycleInProgress, ErrTableBusy
//
//	SYN002 - Unknown table: The table is not configured for sync
//	         Action: Check SYNC_TABLES and the table name
//	         Match: ErrUnknownTable
//
//	SYN003 - Sync aborted: The cycle stopped before progress could be saved
//	         Action: None; the table will be retried next cycle
//	         Match: ErrSyncAborted, "context canceled", "context deadline exceeded"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Check the service logs for the original error

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides operator-facing error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgSourceUnreachable = UserMessage{
		Message: "The accounting system did not answer",
		Action:  "Check that the source application is running and its HTTP server is enabled",
		Code:    "SRC001",
	}
	msgSourceRejected = UserMessage{
		Message: "The source answered with an error instead of data",
		Action:  "Check the company name and that the company is open in the source",
		Code:    "SRC002",
	}
	msgRecordSkipped = UserMessage{
		Message: "A record could not be parsed and was left out",
		Action:  "Review the record in the source; other records were synced",
		Code:    "REC001",
	}
	msgRemoteUnreachable = UserMessage{
		Message: "The remote service could not be reached",
		Action:  "Check network connectivity and the remote base URL",
		Code:    "RMT001",
	}
	msgChunkRejected = UserMessage{
		Message: "The remote service refused a chunk",
		Action:  "Check the remote service logs for the rejected table",
		Code:    "RMT002",
	}
	msgCircuitOpen = UserMessage{
		Message: "Calls to the remote service are paused after repeated failures",
		Action:  "Wait for the cooldown to expire; the next cycle will probe again",
		Code:    "RMT003",
	}
	msgPersist = UserMessage{
		Message: "Sync progress could not be written",
		Action:  "Check the state backend; the table will be resent next cycle",
		Code:    "PST001",
	}
	msgBusy = UserMessage{
		Message: "Another sync is still running",
		Action:  "Wait for the running cycle to finish",
		Code:    "SYN001",
	}
	msgUnknownTable = UserMessage{
		Message: "The table is not configured for sync",
		Action:  "Check SYNC_TABLES and the table name",
		Code:    "SYN002",
	}
	msgAborted = UserMessage{
		Message: "The sync stopped before progress could be saved",
		Action:  "None; the table will be retried next cycle",
		Code:    "SYN003",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that reach MapError without a typed wrapper.
// Matching is case-insensitive via strings.Contains; first match wins.
var errorPatterns = []errorPattern{
	{pattern: "connection refused", msg: msgRemoteUnreachable},
	{pattern: "no such host", msg: msgRemoteUnreachable},
	{pattern: "context canceled", msg: msgAborted},
	{pattern: "context deadline exceeded", msg: msgAborted},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the service logs for the original error",
	Code:    "ERR000",
}

// MapError converts an error into an operator-facing message.
// Typed errors and sentinels are checked first, outermost wrapper winning,
// then the message text is matched against known patterns.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		persistErr *PersistError
		chunkErr   *ChunkError
		sourceErr  *SourceError
		recordErr  *RecordError
	)
	switch {
	case errors.Is(err, ErrCycleInProgress), errors.Is(err, ErrTableBusy):
		return msgBusy
	case errors.Is(err, ErrUnknownTable):
		return msgUnknownTable
	case errors.Is(err, ErrSyncAborted):
		return msgAborted
	case errors.As(err, &persistErr):
		return msgPersist
	case errors.Is(err, ErrCircuitOpen):
		return msgCircuitOpen
	case errors.Is(err, ErrChunkRejected), errors.As(err, &chunkErr):
		return msgChunkRejected
	case errors.Is(err, ErrRemoteUnhealthy):
		return msgRemoteUnreachable
	case errors.Is(err, ErrSourceRejected):
		return msgSourceRejected
	case errors.As(err, &sourceErr):
		return msgSourceUnreachable
	case errors.As(err, &recordErr):
		return msgRecordSkipped
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// ErrorCode returns just the code for err, or "" for nil.
func ErrorCode(err error) string {
	return MapError(err).Code
}

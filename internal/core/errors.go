package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCycleInProgress is returned when a cycle is requested while another runs.
	ErrCycleInProgress = errors.New("sync cycle already in progress")

	// ErrTableBusy is returned when a table is already being synced.
	ErrTableBusy = errors.New("table sync already in progress")

	// ErrUnknownTable is returned for table keys that are not registered.
	ErrUnknownTable = errors.New("unknown table")

	// ErrSourceRejected marks a source response that arrived but carried an
	// error instead of data.
	ErrSourceRejected = errors.New("source rejected export request")

	// ErrRemoteUnhealthy is returned when the pre-cycle health probe fails.
	ErrRemoteUnhealthy = errors.New("remote service unhealthy")

	// ErrChunkRejected is returned when the remote acknowledges a chunk with success=false.
	ErrChunkRejected = errors.New("chunk rejected by remote")

	// ErrCircuitOpen is returned by remote clients while the breaker is open.
	ErrCircuitOpen = errors.New("remote circuit open")

	// ErrSyncAborted is returned when the cycle context ends before commit.
	ErrSyncAborted = errors.New("sync aborted before commit")
)

// SourceError wraps a failure to extract a table from the source.
type SourceError struct {
	Table string
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Table, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// RecordError describes a single record dropped during normalization.
type RecordError struct {
	Table string
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d of %s skipped: %v", e.Index, e.Table, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ChunkError identifies the chunk at which transmission stopped.
// Chunks before Chunk were accepted; Chunk and later were not sent or failed.
type ChunkError struct {
	Table       string
	Chunk       int
	TotalChunks int
	Err         error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("transmit %s chunk %d/%d: %v", e.Table, e.Chunk, e.TotalChunks, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// PersistError wraps a failure to save the state document.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist sync state: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

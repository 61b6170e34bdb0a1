package core

import (
	"context"
	"time"
)

// Operation is the change classification attached to an outgoing record.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// SyncMode tells the remote whether a payload belongs to a bootstrap or an incremental run.
type SyncMode string

const (
	ModeFull        SyncMode = "FULL"
	ModeIncremental SyncMode = "INCREMENTAL"
)

// SyncPhase is the lifecycle stage of a single table.
type SyncPhase string

const (
	PhaseUninitialized SyncPhase = "UNINITIALIZED"
	PhaseBootstrapping SyncPhase = "BOOTSTRAPPING"
	PhaseSteadyState   SyncPhase = "STEADY_STATE"
)

// SyncRecord is one normalized record ready for change detection and transmission.
type SyncRecord struct {
	ID         string     `json:"id"`
	Data       *Object    `json:"data"`
	Digest     string     `json:"digest"`
	ModifiedAt *time.Time `json:"modifiedAt,omitempty"`
	Operation  Operation  `json:"operation"`
}

// SyncPayload is the wire body of a single chunk POSTed to the remote service.
type SyncPayload struct {
	TableName        string       `json:"tableName"`
	Records          []SyncRecord `json:"records"`
	SyncMode         SyncMode     `json:"syncMode"`
	ChunkNumber      int          `json:"chunkNumber"`
	TotalChunks      int          `json:"totalChunks"`
	TotalRecords     int          `json:"totalRecords"`
	Timestamp        time.Time    `json:"timestamp"`
	SourceIdentifier string       `json:"sourceIdentifier"`
}

// SendResult is the remote acknowledgement of one chunk.
type SendResult struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// DateRange is an inclusive extraction window.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Extractor fetches the raw export of one table from the source system.
// A nil window requests the complete table.
type Extractor interface {
	Extract(ctx context.Context, def TableDefinition, window *DateRange) ([]byte, error)
}

// Sender delivers one chunk to the remote service.
type Sender interface {
	Send(ctx context.Context, payload *SyncPayload) (*SendResult, error)
}

// HealthChecker probes remote reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Remote is the full remote contract used by the orchestrator.
type Remote interface {
	Sender
	HealthChecker
}

// StateStore persists the sync state document as a unit.
type StateStore interface {
	Load(ctx context.Context) (*StateDocument, error)
	Save(ctx context.Context, doc *StateDocument) error
}

// TableInfo contains display information about a table.
type TableInfo struct {
	Key        string // Unique identifier: "ledgers"
	Group      string // Source category: "Masters", "Inventory", "Transactions"
	Label      string // Display name: "Ledgers"
	Collection string // Source object type requested in the export: "Ledger"
	RecordTag  string // Element name of one record in the export: "LEDGER"
	Order      int    // Position in the per-cycle processing sequence
}

// TableDefinition contains everything needed to extract and normalize a table.
type TableDefinition struct {
	Info TableInfo

	// Fetch lists the source fields requested for each record.
	Fetch []string

	// Transactional tables fall back to a type+number composite identity.
	Transactional bool

	// DateFiltered tables are extracted within a date window.
	// Master tables are always extracted whole.
	DateFiltered bool
}

package core

import (
	"maps"
	"time"
)

// StateDocumentVersion is the schema version written into every saved document.
const StateDocumentVersion = "1.0.0"

// TableSyncState is the durable progress of one table.
type TableSyncState struct {
	TableName           string            `json:"tableName"`
	LastSyncTime        *time.Time        `json:"lastSyncTime"`
	InitialSyncComplete bool              `json:"initialSyncComplete"`
	DigestIndex         map[string]string `json:"digestIndex"`
	TotalRecordsSynced  int64             `json:"totalRecordsSynced"`
	LastError           string            `json:"lastError,omitempty"`
	LastErrorTime       *time.Time        `json:"lastErrorTime,omitempty"`
}

// NewTableSyncState returns the initial state of a table that was never synced.
func NewTableSyncState(table string) *TableSyncState {
	return &TableSyncState{
		TableName:   table,
		DigestIndex: make(map[string]string),
	}
}

// Clone returns a deep copy. The orchestrator mutates clones and swaps them
// in only after a successful commit.
func (s *TableSyncState) Clone() *TableSyncState {
	c := *s
	c.DigestIndex = maps.Clone(s.DigestIndex)
	if c.DigestIndex == nil {
		c.DigestIndex = make(map[string]string)
	}
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		c.LastSyncTime = &t
	}
	if s.LastErrorTime != nil {
		t := *s.LastErrorTime
		c.LastErrorTime = &t
	}
	return &c
}

// Phase derives the lifecycle stage from persisted fields.
func (s *TableSyncState) Phase() SyncPhase {
	switch {
	case s.InitialSyncComplete:
		return PhaseSteadyState
	case s.LastErrorTime != nil || len(s.DigestIndex) > 0:
		return PhaseBootstrapping
	default:
		return PhaseUninitialized
	}
}

// StateDocument is the single persisted unit holding all table states.
type StateDocument struct {
	Version          string                     `json:"version"`
	IsConfigured     bool                       `json:"isConfigured"`
	LastConfigUpdate *time.Time                 `json:"lastConfigUpdate,omitempty"`
	Tables           map[string]*TableSyncState `json:"tables"`
}

// NewStateDocument returns an empty document at the current schema version.
func NewStateDocument() *StateDocument {
	return &StateDocument{
		Version: StateDocumentVersion,
		Tables:  make(map[string]*TableSyncState),
	}
}

// Table returns the state for a table, creating it on first reference.
func (d *StateDocument) Table(name string) *TableSyncState {
	if d.Tables == nil {
		d.Tables = make(map[string]*TableSyncState)
	}
	st, ok := d.Tables[name]
	if !ok || st == nil {
		st = NewTableSyncState(name)
		d.Tables[name] = st
	}
	if st.DigestIndex == nil {
		st.DigestIndex = make(map[string]string)
	}
	return st
}

// Package core provides the sync engine that moves accounting records from
// the local source system to the remote aggregation service.
//
// This package holds all domain logic independent of the source protocol,
// the remote transport and the state backend. Those are injected through
// [Extractor], [Remote] and [StateStore], so the engine can be driven by the
// scheduler, the HTTP API or tests without modification.
//
// # Table Registry
//
// Tables are registered at init time using [Register]. Each [TableDefinition]
// says what to request from the source and how to recognize a record:
//
//	core.Register(TableDefinition{
//	    Info: TableInfo{Key: "ledgers", Group: "Masters", Collection: "Ledger", RecordTag: "LEDGER"},
//	    Fetch: []string{"GUID", "MASTERID", "NAME", "PARENT"},
//	})
//
// # Sync Cycle
//
// A cycle processes tables one at a time in registry order:
//
//  1. The remote health endpoint is probed; the cycle is skipped if it fails
//  2. The state document is loaded once
//  3. Each table is extracted, normalized with [Normalize] and compared with
//     its digest index using [DetectChanges]
//  4. Changed records are sent in chunks by the [Transmitter]
//  5. Only after every chunk was accepted is the new table state swapped in
//     and the whole document saved
//
// A table that fails at any step keeps its previous state, so the next cycle
// resends everything that was not committed. Delivery is at-least-once.
//
// # Phases
//
// A table with initialSyncComplete=false bootstraps: every record is sent as
// INSERT with syncMode FULL, and date-filtered tables are extracted over the
// lookback window. Afterwards the table is in steady state and only inserts
// and updates are sent, over a window starting at lastSyncTime minus overlap.
//
// # Error Handling
//
// Errors are mapped to operator-facing messages using [MapError].
// Each category has a code for support reference:
//
//   - SRC001-SRC002: Source errors (unreachable, rejected request)
//   - REC001: Record skipped during normalization
//   - RMT001-RMT003: Remote errors (unreachable, chunk rejected, circuit open)
//   - PST001: State could not be saved
//   - SYN001-SYN003: Cycle coordination (busy, unknown table, aborted)
package core

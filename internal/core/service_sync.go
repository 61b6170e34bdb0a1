package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RunCycle runs one sync cycle over every configured table and waits for it.
// Returns ErrCycleInProgress without doing anything if a cycle is running.
// Per-table failures are reported in the CycleReport, not as an error.
func (s *Service) RunCycle(ctx context.Context) (*CycleReport, error) {
	if err := s.acquireCycle(); err != nil {
		return nil, err
	}
	defer s.cycleGuard.Release()

	return s.runCycle(ctx, s.tables)
}

// TriggerCycle starts a sync cycle in the background.
// Returns ErrCycleInProgress if a cycle is already running.
func (s *Service) TriggerCycle(ctx context.Context) error {
	if err := s.acquireCycle(); err != nil {
		return err
	}

	go func() {
		defer s.cycleGuard.Release()
		_, _ = s.runCycle(context.WithoutCancel(ctx), s.tables)
	}()
	return nil
}

// SyncTable runs a cycle restricted to a single table and waits for it.
func (s *Service) SyncTable(ctx context.Context, key string) (*CycleReport, error) {
	def, err := s.definition(key)
	if err != nil {
		return nil, err
	}
	if err := s.acquireTable(key); err != nil {
		return nil, err
	}
	defer s.cycleGuard.Release()

	return s.runCycle(ctx, []TableDefinition{def})
}

// TriggerTable starts a single-table cycle in the background.
func (s *Service) TriggerTable(ctx context.Context, key string) error {
	def, err := s.definition(key)
	if err != nil {
		return err
	}
	if err := s.acquireTable(key); err != nil {
		return err
	}

	go func() {
		defer s.cycleGuard.Release()
		_, _ = s.runCycle(context.WithoutCancel(ctx), []TableDefinition{def})
	}()
	return nil
}

func (s *Service) acquireCycle() error {
	if s.abortCtx.Err() != nil {
		return ErrSyncAborted
	}
	if !s.cycleGuard.TryAcquire() {
		return ErrCycleInProgress
	}
	return nil
}

// acquireTable takes the cycle guard on behalf of a single-table request,
// reporting ErrTableBusy when that very table is the one running.
func (s *Service) acquireTable(key string) error {
	err := s.acquireCycle()
	if errors.Is(err, ErrCycleInProgress) && s.tableGuard(key).Held() {
		return ErrTableBusy
	}
	return err
}

// runCycle must be called with the cycle guard held.
func (s *Service) runCycle(ctx context.Context, defs []TableDefinition) (*CycleReport, error) {
	ctx, cancel := s.cycleContext(ctx)
	defer cancel()

	id := uuid.NewString()
	ctx = ContextWithCycleID(ctx, id)
	logger := s.logger.With("cycle_id", id)

	report := &CycleReport{ID: id, StartedAt: s.now()}
	defer func() {
		report.FinishedAt = s.now()
		s.recordCycle(report)
	}()

	logger.Info("sync cycle started", "tables", len(defs))

	if err := s.remote.Health(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrRemoteUnhealthy, err)
		report.fail(err)
		logger.Warn("sync cycle skipped: remote health check failed",
			"error", err,
			"code", report.ErrorCode,
		)
		return report, err
	}

	doc, err := s.store.Load(ctx)
	if err != nil {
		perr := &PersistError{Err: err}
		report.fail(perr)
		logger.Error("sync cycle aborted: load sync state", "error", err, "code", report.ErrorCode)
		return report, perr
	}
	if !doc.IsConfigured {
		now := s.now()
		doc.IsConfigured = true
		doc.LastConfigUpdate = &now
	}
	s.refreshStatus(doc)

	for _, def := range defs {
		if ctx.Err() != nil {
			logger.Warn("sync cycle interrupted", "remaining_from", def.Info.Key)
			break
		}
		report.Tables = append(report.Tables, s.syncTable(ctx, logger, doc, def))
	}

	logger.Info("sync cycle completed",
		"tables", len(report.Tables),
		"failed", report.Failed(),
		"duration_ms", s.now().Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}

// syncTable runs one table attempt against the in-memory document.
// The document entry for the table is replaced only after the transmission
// succeeded and the whole document was saved.
func (s *Service) syncTable(ctx context.Context, logger *slog.Logger, doc *StateDocument, def TableDefinition) TableReport {
	key := def.Info.Key
	logger = logger.With("table", key)
	ctx = ContextWithTable(ctx, key)
	report := TableReport{Table: key}

	guard := s.tableGuard(key)
	if !guard.TryAcquire() {
		report.Err = ErrTableBusy
		report.Error, report.ErrorCode = report.Err.Error(), ErrorCode(report.Err)
		logger.Warn("table sync skipped: already running")
		return report
	}
	defer guard.Release()

	cycleStart := s.now()
	prev := doc.Table(key)
	report.Mode = ModeIncremental
	if !prev.InitialSyncComplete {
		report.Mode = ModeFull
	}
	s.markRunning(key, report.Mode, cycleStart)

	fail := func(err error) TableReport {
		return s.failTable(logger, doc, key, report, err, cycleStart)
	}

	window := s.window(def, prev, cycleStart)
	raw, err := s.extract(ctx, def, window)
	if err != nil {
		return fail(err)
	}

	norm := Normalize(raw, def)
	for _, rerr := range norm.Skipped {
		logger.Warn("record skipped", "error", rerr, "code", ErrorCode(rerr))
	}
	if norm.Duplicates > 0 {
		logger.Warn("duplicate record ids in export, last occurrence kept", "duplicates", norm.Duplicates)
	}
	report.Extracted = len(norm.Records)
	report.SkippedRecords = len(norm.Skipped)

	var changed []SyncRecord
	if report.Mode == ModeFull {
		changed = MarkAll(norm.Records, OpInsert)
		report.Inserts = len(changed)
	} else {
		cs := DetectChanges(norm.Records, prev.DigestIndex)
		changed = cs.Changed
		report.Inserts, report.Updates, report.Unchanged = cs.Inserts, cs.Updates, cs.Unchanged
	}
	changed = append(changed, DetectDeletions(norm.Records, prev.DigestIndex)...)

	next := prev.Clone()
	for _, rec := range changed {
		if rec.Operation == OpDelete {
			delete(next.DigestIndex, rec.ID)
			continue
		}
		next.DigestIndex[rec.ID] = rec.Digest
	}

	if len(changed) > 0 {
		res, err := s.transmitter.Transmit(ctx, key, changed, report.Mode)
		report.Sent = res.RecordsSent
		if err != nil {
			return fail(err)
		}
	}

	next.LastSyncTime = &cycleStart
	next.InitialSyncComplete = true
	next.TotalRecordsSynced += int64(len(changed))
	next.LastError = ""
	next.LastErrorTime = nil

	if err := s.commit(ctx, doc, key, prev, next); err != nil {
		return fail(err)
	}

	report.DurationMS = s.now().Sub(cycleStart).Milliseconds()
	s.markDone(key, report, cycleStart)
	logger.Info("table synced",
		"mode", report.Mode,
		"extracted", report.Extracted,
		"inserts", report.Inserts,
		"updates", report.Updates,
		"unchanged", report.Unchanged,
		"sent", report.Sent,
		"duration_ms", report.DurationMS,
	)
	return report
}

// window returns the extraction window for a table attempt.
// Master tables are always extracted whole.
func (s *Service) window(def TableDefinition, st *TableSyncState, now time.Time) *DateRange {
	if !def.DateFiltered {
		return nil
	}
	if !st.InitialSyncComplete || st.LastSyncTime == nil {
		return &DateRange{From: now.Add(-s.lookback), To: now}
	}
	return &DateRange{From: st.LastSyncTime.Add(-s.overlap), To: now}
}

func (s *Service) extract(ctx context.Context, def TableDefinition, window *DateRange) ([]byte, error) {
	if s.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sourceTimeout)
		defer cancel()
	}
	raw, err := s.extractor.Extract(ctx, def, window)
	if err != nil {
		return nil, &SourceError{Table: def.Info.Key, Err: err}
	}
	return raw, nil
}

// commit swaps next into the document and saves it. On save failure the
// previous entry is restored so memory matches what is on disk.
func (s *Service) commit(ctx context.Context, doc *StateDocument, key string, prev, next *TableSyncState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSyncAborted, err)
	}

	doc.Tables[key] = next
	if err := s.store.Save(ctx, doc); err != nil {
		doc.Tables[key] = prev
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrSyncAborted, ctxErr)
		}
		return &PersistError{Err: err}
	}
	return nil
}

// failTable records err on the in-memory table state. The error is not saved
// on its own; it reaches the store with the next successful commit.
func (s *Service) failTable(logger *slog.Logger, doc *StateDocument, key string, report TableReport, err error, at time.Time) TableReport {
	now := s.now()
	st := doc.Table(key)
	st.LastError = err.Error()
	st.LastErrorTime = &now

	report.Err = err
	report.Error = err.Error()
	report.ErrorCode = ErrorCode(err)
	report.DurationMS = now.Sub(at).Milliseconds()
	s.markDone(key, report, at)

	logger.Error("table sync failed",
		"mode", report.Mode,
		"error", err,
		"code", report.ErrorCode,
		"sent", report.Sent,
	)
	return report
}

package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service orchestrates sync cycles: extract, normalize, detect, transmit, commit.
type Service struct {
	tables      []TableDefinition
	extractor   Extractor
	remote      Remote
	store       StateStore
	transmitter *Transmitter

	lookback      time.Duration
	overlap       time.Duration
	sourceTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger

	cycleGuard *CycleGuard

	guardsMu    sync.Mutex
	tableGuards map[string]*CycleGuard

	// abortCtx is cancelled when shutdown gives up waiting for a running cycle.
	abortCtx context.Context
	abort    context.CancelFunc

	mu        sync.RWMutex
	status    map[string]*TableStatus
	lastCycle *CycleReport
}

const (
	// DefaultLookback bounds the bootstrap window of date-filtered tables.
	DefaultLookback = 365 * 24 * time.Hour

	// DefaultOverlap is subtracted from lastSyncTime to absorb clock skew
	// and late-committed source edits.
	DefaultOverlap = 5 * time.Minute

	// DefaultSourceTimeout bounds a single table extraction.
	DefaultSourceTimeout = 60 * time.Second
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTransmitter replaces the default transmitter built over the remote.
func WithTransmitter(t *Transmitter) ServiceOption {
	return func(s *Service) { s.transmitter = t }
}

// WithWindow sets the bootstrap lookback and the incremental overlap.
// Panics on negative durations.
func WithWindow(lookback, overlap time.Duration) ServiceOption {
	if lookback < 0 || overlap < 0 {
		panic(fmt.Sprintf("core: window durations must not be negative (lookback %s, overlap %s)", lookback, overlap))
	}
	return func(s *Service) {
		s.lookback = lookback
		s.overlap = overlap
	}
}

// WithSourceTimeout bounds each extraction. Zero disables the bound.
func WithSourceTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.sourceTimeout = d }
}

// WithClock overrides the clock used for cycle timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service syncing tables in the given order.
func NewService(tables []TableDefinition, extractor Extractor, remote Remote, store StateStore, opts ...ServiceOption) *Service {
	abortCtx, abort := context.WithCancel(context.Background())
	s := &Service{
		tables:        tables,
		extractor:     extractor,
		remote:        remote,
		store:         store,
		lookback:      DefaultLookback,
		overlap:       DefaultOverlap,
		sourceTimeout: DefaultSourceTimeout,
		now:           time.Now,
		logger:        slog.Default(),
		cycleGuard:    NewCycleGuard(),
		tableGuards:   make(map[string]*CycleGuard),
		abortCtx:      abortCtx,
		abort:         abort,
		status:        make(map[string]*TableStatus),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transmitter == nil {
		s.transmitter = NewTransmitter(remote, WithTransmitLogger(s.logger))
	}
	for _, def := range tables {
		s.status[def.Info.Key] = &TableStatus{
			Table: def.Info.Key,
			Label: def.Info.Label,
			Phase: PhaseUninitialized,
		}
	}
	return s
}

// ListTables returns information about the tables this service syncs.
func (s *Service) ListTables() []TableInfo {
	infos := make([]TableInfo, len(s.tables))
	for i, def := range s.tables {
		infos[i] = def.Info
	}
	return infos
}

// definition returns the configured definition for key.
func (s *Service) definition(key string) (TableDefinition, error) {
	for _, def := range s.tables {
		if def.Info.Key == key {
			return def, nil
		}
	}
	return TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownTable, key)
}

// TableState loads the persisted state of one table.
func (s *Service) TableState(ctx context.Context, key string) (*TableSyncState, error) {
	if _, err := s.definition(key); err != nil {
		return nil, err
	}
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, &PersistError{Err: err}
	}
	return doc.Table(key).Clone(), nil
}

// Exclusive runs fn while holding the cycle guard, so fn never overlaps a
// sync cycle. Returns ErrCycleInProgress if a cycle is running.
// Table status is refreshed from the store afterwards.
func (s *Service) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.cycleGuard.TryAcquire() {
		return ErrCycleInProgress
	}
	defer s.cycleGuard.Release()

	if err := fn(ctx); err != nil {
		return err
	}
	if doc, err := s.store.Load(ctx); err == nil {
		s.refreshStatus(doc)
	}
	return nil
}

// Shutdown waits for a running cycle to finish until ctx is done. If the
// grace period expires the cycle is cancelled; it will not commit.
// After Shutdown no new cycle can start.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.cycleGuard.WaitForDrain(ctx)
	s.abort()
	if err != nil {
		s.logger.Warn("shutdown grace period expired, sync cycle aborted",
			"running_since", s.cycleGuard.HeldSince(),
		)
		return fmt.Errorf("wait for sync cycle: %w", err)
	}
	return nil
}

// cycleContext derives a context that is also cancelled by an aborting shutdown.
func (s *Service) cycleContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.abortCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Service) tableGuard(key string) *CycleGuard {
	s.guardsMu.Lock()
	defer s.guardsMu.Unlock()

	g, ok := s.tableGuards[key]
	if !ok {
		g = NewCycleGuard()
		s.tableGuards[key] = g
	}
	return g
}

package core

import (
	"time"
)

// TableStatus is the live view of one table, kept in memory.
type TableStatus struct {
	Table           string     `json:"table"`
	Label           string     `json:"label"`
	Phase           SyncPhase  `json:"phase"`
	Running         bool       `json:"running"`
	LastAttempt     *time.Time `json:"lastAttempt,omitempty"`
	LastSuccess     *time.Time `json:"lastSuccess,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
	LastErrorCode   string     `json:"lastErrorCode,omitempty"`
	LastRecordsSent int        `json:"lastRecordsSent"`
}

// TableReport is the outcome of one table attempt within a cycle.
type TableReport struct {
	Table          string   `json:"table"`
	Mode           SyncMode `json:"mode,omitempty"`
	Extracted      int      `json:"extracted"`
	SkippedRecords int      `json:"skippedRecords"`
	Inserts        int      `json:"inserts"`
	Updates        int      `json:"updates"`
	Unchanged      int      `json:"unchanged"`
	Sent           int      `json:"sent"`
	DurationMS     int64    `json:"durationMs"`
	Error          string   `json:"error,omitempty"`
	ErrorCode      string   `json:"errorCode,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether the attempt did not commit.
func (r TableReport) Failed() bool { return r.Err != nil }

// CycleReport is the outcome of one sync cycle.
type CycleReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Tables     []TableReport `json:"tables"`
	Error      string        `json:"error,omitempty"`
	ErrorCode  string        `json:"errorCode,omitempty"`
}

// Failed returns the number of tables that did not commit.
func (r *CycleReport) Failed() int {
	n := 0
	for _, t := range r.Tables {
		if t.Failed() {
			n++
		}
	}
	return n
}

func (r *CycleReport) fail(err error) {
	r.Error = err.Error()
	r.ErrorCode = ErrorCode(err)
}

// ServiceStatus is a snapshot of the service for monitoring.
type ServiceStatus struct {
	CycleRunning   bool          `json:"cycleRunning"`
	CycleStartedAt *time.Time    `json:"cycleStartedAt,omitempty"`
	LastCycle      *CycleReport  `json:"lastCycle,omitempty"`
	Tables         []TableStatus `json:"tables"`
}

// Status returns the current in-memory status in table order.
func (s *Service) Status() ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := ServiceStatus{
		CycleRunning: s.cycleGuard.Held(),
		LastCycle:    s.lastCycle,
		Tables:       make([]TableStatus, 0, len(s.tables)),
	}
	if since := s.cycleGuard.HeldSince(); !since.IsZero() {
		st.CycleStartedAt = &since
	}
	for _, def := range s.tables {
		if ts, ok := s.status[def.Info.Key]; ok {
			st.Tables = append(st.Tables, *ts)
		}
	}
	return st
}

// refreshStatus aligns phases and persisted errors with a loaded document.
func (s *Service) refreshStatus(doc *StateDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, ts := range s.status {
		st, ok := doc.Tables[key]
		if !ok || st == nil {
			ts.Phase = PhaseUninitialized
			continue
		}
		ts.Phase = st.Phase()
		if st.LastSyncTime != nil {
			t := *st.LastSyncTime
			ts.LastSuccess = &t
		}
		if st.LastError != "" && ts.LastError == "" {
			ts.LastError = st.LastError
		}
	}
}

func (s *Service) markRunning(key string, mode SyncMode, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.status[key]
	if !ok {
		return
	}
	ts.Running = true
	ts.LastAttempt = &at
	if mode == ModeFull {
		ts.Phase = PhaseBootstrapping
	}
}

func (s *Service) markDone(key string, report TableReport, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.status[key]
	if !ok {
		return
	}
	ts.Running = false
	ts.LastRecordsSent = report.Sent
	if report.Err != nil {
		ts.LastError = report.Error
		ts.LastErrorCode = report.ErrorCode
		return
	}
	ts.Phase = PhaseSteadyState
	ts.LastSuccess = &at
	ts.LastError = ""
	ts.LastErrorCode = ""
}

func (s *Service) recordCycle(report *CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCycle = report
}

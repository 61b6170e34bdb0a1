package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/OnlyOnCloud/TallySyncService/internal/admin"
	"github.com/OnlyOnCloud/TallySyncService/internal/core"
	"github.com/OnlyOnCloud/TallySyncService/internal/logging"
)

type statusResponse struct {
	core.ServiceStatus
	Circuit string `json:"circuit,omitempty"`
}

type tableResponse struct {
	Key        string `json:"key"`
	Group      string `json:"group"`
	Label      string `json:"label"`
	Collection string `json:"collection"`
	Order      int    `json:"order"`
}

type tableStateResponse struct {
	*core.TableSyncState
	Phase       core.SyncPhase `json:"phase"`
	DigestCount int            `json:"digestCount"`
}

type acceptedResponse struct {
	Status string `json:"status"`
	Table  string `json:"table,omitempty"`
}

type resetResponse struct {
	Reset []string `json:"reset"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{ServiceStatus: s.service.Status()}
	if s.circuit != nil {
		resp.Circuit = s.circuit.CircuitState()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	infos := s.service.ListTables()
	tables := make([]tableResponse, len(infos))
	for i, info := range infos {
		tables[i] = tableResponse{
			Key:        info.Key,
			Group:      info.Group,
			Label:      info.Label,
			Collection: info.Collection,
			Order:      info.Order,
		}
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleTableState(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")

	st, err := s.service.TableState(r.Context(), tableKey)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	// The digest index can hold one entry per source record.
	resp := tableStateResponse{
		TableSyncState: st,
		Phase:          st.Phase(),
		DigestCount:    len(st.DigestIndex),
	}
	if r.URL.Query().Get("digests") != "true" {
		trimmed := *st
		trimmed.DigestIndex = nil
		resp.TableSyncState = &trimmed
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	if err := s.service.TriggerCycle(r.Context()); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	logging.FromContext(r.Context()).Info("sync cycle triggered")
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
}

func (s *Server) handleSyncTable(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")

	if err := s.service.TriggerTable(r.Context(), tableKey); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	logging.FromContext(r.Context()).Info("table sync triggered", "table", tableKey)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Table: tableKey})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")
	if !s.configured(tableKey) {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownTable, tableKey), 0)
		return
	}
	s.reset(w, r, tableKey)
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	s.reset(w, r)
}

// reset clears state while no cycle can run.
func (s *Server) reset(w http.ResponseWriter, r *http.Request, names ...string) {
	var reset []string
	err := s.service.Exclusive(r.Context(), func(ctx context.Context) error {
		var err error
		reset, err = admin.ResetTables(ctx, s.store, names...)
		return err
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if reset == nil {
		reset = []string{}
	}
	writeJSON(w, http.StatusOK, resetResponse{Reset: reset})
}

func (s *Server) configured(key string) bool {
	for _, info := range s.service.ListTables() {
		if info.Key == key {
			return true
		}
	}
	return false
}

package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OnlyOnCloud/TallySyncService/internal/config"
	"github.com/OnlyOnCloud/TallySyncService/internal/core"
	"github.com/OnlyOnCloud/TallySyncService/internal/state"
)

const ledgerExport = `<ENVELOPE><BODY><DATA><COLLECTION>
<LEDGER NAME="Cash"><GUID>g-1</GUID><PARENT>Cash-in-Hand</PARENT></LEDGER>
<LEDGER NAME="Bank"><GUID>g-2</GUID><PARENT>Bank Accounts</PARENT></LEDGER>
</COLLECTION></DATA></BODY></ENVELOPE>`

var testLedgers = core.TableDefinition{
	Info: core.TableInfo{Key: "ledgers", Group: "Masters", Label: "Ledgers", Collection: "Ledger", RecordTag: "LEDGER", Order: 10},
}

// gatedExtractor blocks every extraction until release is closed.
type gatedExtractor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedExtractor(open bool) *gatedExtractor {
	g := &gatedExtractor{started: make(chan struct{}, 16), release: make(chan struct{})}
	if open {
		g.open()
	}
	return g
}

func (g *gatedExtractor) open() { g.once.Do(func() { close(g.release) }) }

func (g *gatedExtractor) Extract(ctx context.Context, def core.TableDefinition, window *core.DateRange) ([]byte, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return []byte(ledgerExport), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type okRemote struct{}

func (okRemote) Send(ctx context.Context, p *core.SyncPayload) (*core.SendResult, error) {
	return &core.SendResult{Success: true, Processed: len(p.Records)}, nil
}

func (okRemote) Health(ctx context.Context) error { return nil }

type fixedCircuit string

func (c fixedCircuit) CircuitState() string { return string(c) }

type testEnv struct {
	server    *Server
	service   *core.Service
	store     *state.Store
	extractor *gatedExtractor
}

func newTestEnv(t *testing.T, extractorOpen bool, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, RequestTimeout: 5 * time.Second},
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := state.NewStore(state.NewFileBackendFS(memfs.New(), "state.json"), logger)
	ext := newGatedExtractor(extractorOpen)
	svc := core.NewService([]core.TableDefinition{testLedgers}, ext, okRemote{}, store,
		core.WithTransmitter(core.NewTransmitter(okRemote{}, core.WithChunkDelay(0), core.WithTransmitLogger(logger))),
		core.WithLogger(logger),
	)
	t.Cleanup(func() {
		ext.open()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	return &testEnv{
		server:    NewServer(svc, store, cfg, WithCircuit(fixedCircuit("closed"))),
		service:   svc,
		store:     store,
		extractor: ext,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !e.service.Status().CycleRunning
	}, 5*time.Second, 10*time.Millisecond)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, true, nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestListTables(t *testing.T) {
	env := newTestEnv(t, true, nil)

	rec := env.do(t, http.MethodGet, "/api/tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tables := decode[[]tableResponse](t, rec)
	require.Len(t, tables, 1)
	assert.Equal(t, "ledgers", tables[0].Key)
	assert.Equal(t, "Ledger", tables[0].Collection)
}

func TestStatus_IncludesCircuit(t *testing.T) {
	env := newTestEnv(t, true, nil)

	rec := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "closed", body["circuit"])
	assert.Equal(t, false, body["cycleRunning"])
	assert.Len(t, body["tables"], 1)
}

func TestSyncAll_RunsCycleAndUpdatesState(t *testing.T) {
	env := newTestEnv(t, true, nil)

	rec := env.do(t, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.waitIdle(t)

	rec = env.do(t, http.MethodGet, "/api/tables/ledgers/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[map[string]any](t, rec)
	assert.Equal(t, string(core.PhaseSteadyState), st["phase"])
	assert.EqualValues(t, 2, st["digestCount"])
	assert.Nil(t, st["digestIndex"])

	rec = env.do(t, http.MethodGet, "/api/tables/ledgers/state?digests=true", nil)
	st = decode[map[string]any](t, rec)
	assert.Len(t, st["digestIndex"], 2)
}

func TestSync_ConflictWhileRunning(t *testing.T) {
	env := newTestEnv(t, false, nil)

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/sync", nil).Code)
	<-env.extractor.started

	rec := env.do(t, http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SYN001", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/tables/ledgers/sync", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/tables/ledgers/reset", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.extractor.open()
	env.waitIdle(t)
}

func TestUnknownTable(t *testing.T) {
	env := newTestEnv(t, true, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/tables/stock_items/state"},
		{http.MethodPost, "/api/tables/stock_items/sync"},
		{http.MethodPost, "/api/tables/stock_items/reset"},
	} {
		rec := env.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
		assert.Equal(t, "SYN002", decode[ErrorResponse](t, rec).Code, tc.path)
	}
}

func TestReset(t *testing.T) {
	env := newTestEnv(t, true, nil)

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/tables/ledgers/sync", nil).Code)
	env.waitIdle(t)

	rec := env.do(t, http.MethodPost, "/api/tables/ledgers/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reset":["ledgers"]}`, rec.Body.String())

	doc, err := env.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.PhaseUninitialized, doc.Tables["ledgers"].Phase())

	rec = env.do(t, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reset":["ledgers"]}`, rec.Body.String())
}

func TestAPIKeyAuth(t *testing.T) {
	env := newTestEnv(t, true, func(cfg *config.Config) {
		cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}
	})

	tests := []struct {
		name   string
		header http.Header
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", http.Header{"X-Api-Key": {"nope"}}, http.StatusForbidden},
		{"header", http.Header{"X-Api-Key": {"k2"}}, http.StatusOK},
		{"bearer", http.Header{"Authorization": {"Bearer k1"}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/tables", tt.header)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusOK {
				assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
			}
		})
	}

	// Liveness is not behind auth.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(core.ErrUnknownTable))
	assert.Equal(t, http.StatusConflict, statusFor(core.ErrTableBusy))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(core.ErrSyncAborted))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&core.PersistError{Err: io.ErrShortWrite}))
}

package tally

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
)

var (
	ledgerDef = core.TableDefinition{
		Info:  core.TableInfo{Key: "ledgers", Collection: "Ledger", RecordTag: "LEDGER"},
		Fetch: []string{"GUID", "NAME", "PARENT"},
	}
	voucherDef = core.TableDefinition{
		Info:          core.TableInfo{Key: "vouchers", Collection: "Voucher", RecordTag: "VOUCHER"},
		Fetch:         []string{"GUID", "DATE"},
		Transactional: true,
		DateFiltered:  true,
	}
)

const ledgerExport = `<ENVELOPE><BODY><DATA><COLLECTION>` +
	`<LEDGER NAME="Cash"><GUID>g-1</GUID><PARENT>Cash-in-Hand</PARENT></LEDGER>` +
	`</COLLECTION></DATA></BODY></ENVELOPE>`

func TestBuildRequest(t *testing.T) {
	t.Run("master table without window", func(t *testing.T) {
		b, err := buildRequest(ledgerDef, "Acme Traders", nil)
		require.NoError(t, err)

		var env envelope
		require.NoError(t, xml.Unmarshal(b, &env))

		assert.Equal(t, "Export", env.Header.TallyRequest)
		assert.Equal(t, "Collection", env.Header.Type)
		assert.Equal(t, "TallySyncLedgerCollection", env.Header.ID)
		assert.Equal(t, "$$SysName:XML", env.Body.Desc.Static.ExportFormat)
		assert.Equal(t, "Acme Traders", env.Body.Desc.Static.Company)
		assert.Nil(t, env.Body.Desc.Static.FromDate)
		assert.Nil(t, env.Body.Desc.Static.ToDate)
		assert.Equal(t, "Ledger", env.Body.Desc.TDL.Message.Collection.Type)
		assert.Equal(t, env.Header.ID, env.Body.Desc.TDL.Message.Collection.Name)
		assert.Equal(t, "GUID, NAME, PARENT", env.Body.Desc.TDL.Message.Collection.Fetch)
	})

	t.Run("windowed table", func(t *testing.T) {
		window := &core.DateRange{
			From: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC),
		}
		b, err := buildRequest(voucherDef, "", window)
		require.NoError(t, err)

		assert.Contains(t, string(b), `<SVFROMDATE TYPE="Date">20240401</SVFROMDATE>`)
		assert.Contains(t, string(b), `<SVTODATE TYPE="Date">20250331</SVTODATE>`)
		assert.NotContains(t, string(b), "SVCURRENTCOMPANY")
	})
}

func TestClient_Extract(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(ledgerExport))
	}))
	defer srv.Close()

	c := New(Options{URL: srv.URL, Company: "Acme"})
	out, err := c.Extract(context.Background(), ledgerDef, nil)
	require.NoError(t, err)

	assert.Equal(t, ledgerExport, string(out))
	assert.Contains(t, string(gotBody), "<TYPE>Ledger</TYPE>")

	res := core.Normalize(out, ledgerDef)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "g-1", res.Records[0].ID)
}

func TestClient_ExtractUTF16(t *testing.T) {
	tests := []struct {
		name string
		enc  func(string) ([]byte, error)
	}{
		{
			name: "little endian with bom",
			enc: func(s string) ([]byte, error) {
				return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
			},
		},
		{
			name: "little endian without bom",
			enc: func(s string) ([]byte, error) {
				return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
			},
		},
		{
			name: "big endian with bom",
			enc: func(s string) ([]byte, error) {
				return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
			},
		},
	}

	doc := `<?xml version="1.0" encoding="UTF-16"?>` + ledgerExport

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := tt.enc(doc)
			require.NoError(t, err)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(payload)
			}))
			defer srv.Close()

			out, err := New(Options{URL: srv.URL}).Extract(context.Background(), ledgerDef, nil)
			require.NoError(t, err)
			assert.Contains(t, string(out), `encoding="UTF-8"`)

			res := core.Normalize(out, ledgerDef)
			require.Empty(t, res.Skipped)
			require.Len(t, res.Records, 1)
			assert.Equal(t, "g-1", res.Records[0].ID)
		})
	}
}

func TestClient_ExtractRejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "line error envelope",
			status:  http.StatusOK,
			body:    `<ENVELOPE><HEADER><STATUS>0</STATUS></HEADER><BODY><DATA><LINEERROR>Could not find Report 'Foo'!</LINEERROR></DATA></BODY></ENVELOPE>`,
			wantMsg: "Could not find Report 'Foo'!",
		},
		{
			name:    "response envelope",
			status:  http.StatusOK,
			body:    "<RESPONSE>Unknown Request, cannot be processed</RESPONSE>",
			wantMsg: "Unknown Request, cannot be processed",
		},
		{
			name:    "html page",
			status:  http.StatusOK,
			body:    "<!DOCTYPE html><html><body>Proxy login</body></html>",
			wantMsg: "HTML",
		},
		{
			name:    "empty body",
			status:  http.StatusOK,
			body:    "  ",
			wantMsg: "empty response",
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    "oops",
			wantMsg: "status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(Options{URL: srv.URL}).Extract(context.Background(), ledgerDef, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrSourceRejected), "err = %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			wrapped := &core.SourceError{Table: "ledgers", Err: err}
			assert.Equal(t, "SRC002", core.MapError(wrapped).Code)
		})
	}
}

func TestClient_ExtractControlBytesAccepted(t *testing.T) {
	body := "<ENVELOPE><LEDGER><GUID>g-1</GUID><NARRATION>a\x04b</NARRATION></LEDGER></ENVELOPE>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	out, err := New(Options{URL: srv.URL}).Extract(context.Background(), ledgerDef, nil)
	require.NoError(t, err)
	assert.Equal(t, body, string(out))
}

func TestClient_ExtractUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Options{URL: url, Timeout: time.Second}).Extract(context.Background(), ledgerDef, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrSourceRejected))

	wrapped := &core.SourceError{Table: "ledgers", Err: err}
	assert.Equal(t, "SRC001", core.MapError(wrapped).Code)
}

func TestClient_ExtractCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(Options{URL: srv.URL}).Extract(ctx, ledgerDef, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_PanicsWithoutURL(t *testing.T) {
	assert.Panics(t, func() { New(Options{}) })
}

// Package server provides unit tests for the HTTP handlers and routing.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/converter"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/event"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/schema"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/service"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/storage"
)

const recordID = "c56b70ce-4ef6-47ef-8bc3-c470bafa0b8c"

// unreachableStore fails every ping, for readiness tests.
type unreachableStore struct {
	storage.Store
}

func (unreachableStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestMux(t *testing.T, store storage.Store) http.Handler {
	t.Helper()
	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}
	m := metrics.NewMetrics()
	conv := converter.New(converter.WithClock(func() time.Time {
		return time.Date(2013, 1, 2, 3, 4, 5, 0, time.UTC)
	}))
	svc := service.New(store, conv, event.NewNoop(), m, service.Options{Validator: validator})
	return NewMux(svc, m, []string{"https://editor.example.org"})
}

func bibRecordBody(t *testing.T, version string) []byte {
	t.Helper()
	qm := model.QuickMarc{
		ID:                   recordID,
		MarcFormat:           model.FormatBibliographic,
		RelatedRecordVersion: version,
		Fields: []model.FieldItem{
			{Tag: "001", Content: model.TextContent("in00001")},
			{Tag: "245", Indicators: `10`, Content: model.TextContent("$a Moby Dick $c Melville")},
		},
	}
	body, err := json.Marshal(qm)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func serve(h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code          string `json:"code"`
		Message       string `json:"message"`
		CorrelationID string `json:"correlationId"`
		Tag           string `json:"tag"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, rr.Body.String())
	}
	return env
}

// TestHealthzEndpoint verifies that /healthz returns 200 OK with body "ok".
func TestHealthzEndpoint(t *testing.T) {
	mux := newTestMux(t, storage.NewMemory())

	rr := serve(mux, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), "ok")
	}
}

func TestReadyzEndpoint(t *testing.T) {
	tests := []struct {
		name  string
		store storage.Store
		want  int
	}{
		{"reachable store", storage.NewMemory(), http.StatusOK},
		{"unreachable store", unreachableStore{Store: storage.NewMemory()}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(newTestMux(t, tt.store), http.MethodGet, "/readyz", nil)
			if rr.Code != tt.want {
				t.Errorf("got status %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := serve(newTestMux(t, storage.NewMemory()), http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", rr.Code)
	}
}

func TestRecordLifecycle(t *testing.T) {
	mux := newTestMux(t, storage.NewMemory())

	rr := serve(mux, http.MethodPost, "/records-editor/records", bibRecordBody(t, ""))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got status %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/records-editor/records/"+recordID {
		t.Errorf("create: unexpected Location %q", loc)
	}

	rr = serve(mux, http.MethodGet, "/records-editor/records/"+recordID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got status %d: %s", rr.Code, rr.Body.String())
	}
	var qm model.QuickMarc
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &qm); err != nil {
		t.Fatal(err)
	}
	if qm.RelatedRecordVersion != "1" {
		t.Errorf("get: version = %q, want 1", qm.RelatedRecordVersion)
	}
	titles := qm.FieldsByTag("245")
	if len(titles) != 1 || len(titles[0].Content.Subfields()) != 2 {
		t.Fatalf("get: unexpected 245 %+v", titles)
	}
	if got := titles[0].Content.Subfields()[1]; got != (model.Subfield{Code: "c", Value: "Melville"}) {
		t.Errorf("get: unexpected subfield %+v", got)
	}

	rr = serve(mux, http.MethodPut, "/records-editor/records/"+recordID, bibRecordBody(t, "1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("update: got status %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(mux, http.MethodPut, "/records-editor/records/"+recordID, bibRecordBody(t, "1"))
	if rr.Code != http.StatusConflict {
		t.Fatalf("stale update: got status %d, want 409", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error == nil || env.Error.Code != "QM_CONFLICT" {
		t.Errorf("stale update: unexpected body %s", rr.Body.String())
	}

	rr = serve(mux, http.MethodGet, "/records-editor/records?recordType=MARC_BIB&limit=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: got status %d: %s", rr.Code, rr.Body.String())
	}
	var page model.ListRecordsResult
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Records) != 1 || page.Records[0].RelatedRecordVersion != "2" {
		t.Errorf("list: unexpected page %+v", page)
	}
}

func TestConvertEndpoint(t *testing.T) {
	store := storage.NewMemory()
	mux := newTestMux(t, store)

	rr := serve(mux, http.MethodPost, "/records-editor/convert", bibRecordBody(t, ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rr.Code, rr.Body.String())
	}
	var dto model.ParsedRecordDto
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &dto); err != nil {
		t.Fatal(err)
	}
	if dto.RecordType != model.RecordTypeBib {
		t.Errorf("recordType = %q", dto.RecordType)
	}
	if _, err := store.GetRecord(context.Background(), recordID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("convert must not store the record, got %v", err)
	}
}

func TestErrorResponses(t *testing.T) {
	mux := newTestMux(t, storage.NewMemory())

	tests := []struct {
		name   string
		method string
		path   string
		body   []byte
		status int
		code   string
		tag    string
	}{
		{"malformed id", http.MethodGet, "/records-editor/records/abc", nil, http.StatusBadRequest, "QM_BAD_REQUEST", ""},
		{"unknown record", http.MethodGet, "/records-editor/records/" + recordID, nil, http.StatusNotFound, "QM_NOT_FOUND", ""},
		{"invalid json", http.MethodPost, "/records-editor/convert", []byte("{"), http.StatusBadRequest, "QM_BAD_REQUEST", ""},
		{"schema violation", http.MethodPost, "/records-editor/convert", []byte(`{"marcFormat":"SERIAL","fields":[]}`), http.StatusBadRequest, "QM_VALIDATION", ""},
		{"bad leader", http.MethodPost, "/records-editor/convert", []byte(`{"marcFormat":"AUTHORITY","leader":"00000nam a2200000   4500","fields":[]}`), http.StatusUnprocessableEntity, "QM_CONVERSION", "LDR"},
		{"bad limit", http.MethodGet, "/records-editor/records?limit=x", nil, http.StatusBadRequest, "QM_BAD_REQUEST", ""},
		{"bad record type", http.MethodGet, "/records-editor/records?recordType=MARC_SERIAL", nil, http.StatusBadRequest, "QM_BAD_REQUEST", ""},
		{"bad cursor", http.MethodGet, "/records-editor/records?cursor=%25%25", nil, http.StatusBadRequest, "QM_BAD_REQUEST", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(mux, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("got status %d, want %d: %s", rr.Code, tt.status, rr.Body.String())
			}
			env := decodeEnvelope(t, rr)
			if env.Error == nil {
				t.Fatalf("missing error envelope: %s", rr.Body.String())
			}
			if env.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.code)
			}
			if env.Error.Tag != tt.tag {
				t.Errorf("tag = %q, want %q", env.Error.Tag, tt.tag)
			}
			if env.Error.CorrelationID == "" || env.Error.CorrelationID != rr.Header().Get(CorrelationHeader) {
				t.Errorf("correlation id %q does not match header %q", env.Error.CorrelationID, rr.Header().Get(CorrelationHeader))
			}
		})
	}
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	mux := newTestMux(t, storage.NewMemory())

	req := httptest.NewRequest(http.MethodGet, "/records-editor/records/"+recordID, nil)
	req.Header.Set(CorrelationHeader, "corr-123")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if got := rr.Header().Get(CorrelationHeader); got != "corr-123" {
		t.Errorf("got correlation header %q", got)
	}
	if env := decodeEnvelope(t, rr); env.Error == nil || env.Error.CorrelationID != "corr-123" {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	mux := newTestMux(t, storage.NewMemory())

	tests := []struct {
		origin string
		want   string
	}{
		{"https://editor.example.org", "https://editor.example.org"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/records-editor/records/"+recordID, nil)
		req.Header.Set("Origin", tt.origin)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("%s: got status %d", tt.origin, rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("%s: allow-origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

// Package conformance provides a test harness that checks a running quickMARC
// service for round-trip fidelity and the record editor API contract.
package conformance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/converter"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/event"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marc"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/schema"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/server"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/service"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/storage"
)

// Harness serves the quickMARC API from an httptest server.
type Harness struct {
	server *httptest.Server
	store  storage.Store
	pub    event.Publisher
}

// Config holds configuration for the conformance test harness.
type Config struct {
	// DatabaseDSN selects the PostgreSQL store; empty uses the in-memory store
	DatabaseDSN string

	// NATSURL selects the JetStream publisher; empty uses the no-op publisher
	NATSURL string
}

// NewHarness creates a new conformance test harness.
func NewHarness(cfg Config) (*Harness, error) {
	store := storage.NewMemory()
	if cfg.DatabaseDSN != "" {
		var err error
		store, err = storage.NewPostgres(context.Background(), cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	pub := event.NewNoop()
	if cfg.NATSURL != "" {
		pub = event.NewPublisher(cfg.NATSURL)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema validator: %w", err)
	}

	m := metrics.NewMetrics()
	svc := service.New(store, converter.New(), pub, m, service.Options{Validator: validator})

	return &Harness{
		server: httptest.NewServer(server.NewMux(svc, m, nil)),
		store:  store,
		pub:    pub,
	}, nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the test server and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
	_ = h.pub.Close()
	h.store.Close()
}

// Fixture is one edited record the suite sends through the API.
type Fixture struct {
	Name   string
	Record model.QuickMarc
}

// DefaultFixtures returns one representative record per MARC format.
func DefaultFixtures() []Fixture {
	return []Fixture{
		{
			Name: "bibliographic",
			Record: model.QuickMarc{
				ID:         "c56b70ce-4ef6-47ef-8bc3-c470bafa0b8c",
				MarcFormat: model.FormatBibliographic,
				Leader:     `00000nam\a2200000\i\4500`,
				Fields: []model.FieldItem{
					{Tag: "001", Content: model.TextContent("in00000000001")},
					{Tag: "007", Content: model.TextContent("ta")},
					{Tag: "008", Content: model.TextContent("130102s2013    nyu" + strings.Repeat("|", 17) + "eng d")},
					{Tag: "245", Indicators: "10", Content: model.TextContent("$a Moby Dick / $c Herman Melville.")},
					{Tag: "650", Indicators: `\0`, Content: model.SubfieldContent(
						model.Subfield{Code: "a", Value: "Whaling"},
						model.Subfield{Code: "v", Value: "Fiction."},
					)},
				},
			},
		},
		{
			Name: "authority",
			Record: model.QuickMarc{
				ID:         "2f0e0a6d-91d1-4c9b-9f6a-7c2d5c1e8b11",
				MarcFormat: model.FormatAuthority,
				Leader:     `00000nz\\a2200000n\\4500`,
				Fields: []model.FieldItem{
					{Tag: "001", Content: model.TextContent("n80012345")},
					{Tag: "008", Content: model.TextContent("860211n| azannaabn" + strings.Repeat(" ", 10) + "|a aaa" + strings.Repeat(" ", 6))},
					{Tag: "100", Indicators: `1\`, Content: model.TextContent("$a Melville, Herman, $d 1819-1891")},
				},
			},
		},
		{
			Name: "holdings",
			Record: model.QuickMarc{
				ID:         "5d7b3e0c-4a3f-4f0e-8d52-1b6f0a9c2e77",
				MarcFormat: model.FormatHoldings,
				Leader:     `00000nx\\a2200000zn\4500`,
				Fields: []model.FieldItem{
					{Tag: "001", Content: model.TextContent("ho00000000001")},
					{Tag: "008", Content: model.TextContent("1301020u    8   4001aueng0130102")},
					{Tag: "852", Indicators: `0\`, Content: model.TextContent("$b MAIN $h PS2384 $i .M6")},
				},
			},
		},
	}
}

// RunConformanceTests runs every conformance check against the service.
func (h *Harness) RunConformanceTests(t *testing.T, fixtures []Fixture) {
	t.Run("HealthEndpoints", h.testHealthEndpoints)
	for _, f := range fixtures {
		f := f
		t.Run("RoundTrip/"+f.Name, func(t *testing.T) { h.testRoundTrip(t, f.Record) })
		t.Run("Wire/"+f.Name, func(t *testing.T) { h.testWireRecord(t, f.Record) })
	}
	if len(fixtures) > 0 {
		t.Run("Versioning", func(t *testing.T) { h.testVersioning(t, fixtures[0].Record) })
	}
	t.Run("Pagination", h.testPagination)
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(h.URL() + path)
		if err != nil {
			t.Fatalf("failed to GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

// testRoundTrip stores qm, reads the editing view back and converts it again:
// the wire content must be unchanged apart from the 005 timestamp.
func (h *Harness) testRoundTrip(t *testing.T, qm model.QuickMarc) {
	first := h.convert(t, qm)

	var created model.QuickMarc
	h.mustDo(t, http.MethodPost, "/records-editor/records", qm, http.StatusCreated, &created)

	var fetched model.QuickMarc
	h.mustDo(t, http.MethodGet, "/records-editor/records/"+created.ID, nil, http.StatusOK, &fetched)

	fetched.RelatedRecordVersion = qm.RelatedRecordVersion
	second := h.convert(t, fetched)

	a, b := parseContent(t, first), parseContent(t, second)
	if a.Leader != b.Leader {
		t.Errorf("leader changed across round trip: %q != %q", a.Leader, b.Leader)
	}
	if !reflect.DeepEqual(withoutTag(a.Fields, "005"), withoutTag(b.Fields, "005")) {
		t.Errorf("fields changed across round trip:\n%+v\n%+v", a.Fields, b.Fields)
	}
}

// testWireRecord checks the structural invariants of converted content.
func (h *Harness) testWireRecord(t *testing.T, qm model.QuickMarc) {
	dto := h.convert(t, qm)
	rec := parseContent(t, dto)

	if n := len(rec.Leader); n != marc.LeaderLength {
		t.Fatalf("leader has %d characters", n)
	}
	iso, err := rec.MarshalISO2709()
	if err != nil {
		t.Fatalf("content does not serialize: %v", err)
	}
	if got, _ := strconv.Atoi(rec.Leader[:5]); got != len(iso) {
		t.Errorf("leader record length %d, serialized length %d", got, len(iso))
	}
	if n := len(rec.FieldsByTag("005")); n != 1 {
		t.Errorf("expected exactly one 005 field, got %d", n)
	}
	want, _ := strconv.Atoi(qm.RelatedRecordVersion)
	if got, _ := strconv.Atoi(dto.RelatedRecordVersion); got != want+1 {
		t.Errorf("relatedRecordVersion %q is not one more than %q", dto.RelatedRecordVersion, qm.RelatedRecordVersion)
	}
}

// testVersioning updates a record twice and replays a stale edit.
func (h *Harness) testVersioning(t *testing.T, qm model.QuickMarc) {
	qm.ID = ""
	var current model.QuickMarc
	h.mustDo(t, http.MethodPost, "/records-editor/records", qm, http.StatusCreated, &current)
	stale := current

	for want := 2; want <= 3; want++ {
		h.mustDo(t, http.MethodPut, "/records-editor/records/"+current.ID, current, http.StatusOK, &current)
		if current.RelatedRecordVersion != strconv.Itoa(want) {
			t.Fatalf("expected version %d, got %q", want, current.RelatedRecordVersion)
		}
	}
	h.mustDo(t, http.MethodPut, "/records-editor/records/"+stale.ID, stale, http.StatusConflict, nil)
}

// testPagination walks the record listing with a small page size.
func (h *Harness) testPagination(t *testing.T) {
	seen := make(map[string]bool)
	cursor := ""
	for pages := 0; pages < 100; pages++ {
		var page model.ListRecordsResult
		h.mustDo(t, http.MethodGet, "/records-editor/records?limit=2&cursor="+cursor, nil, http.StatusOK, &page)
		if len(page.Records) > 2 {
			t.Fatalf("page holds %d records, limit is 2", len(page.Records))
		}
		for _, r := range page.Records {
			if seen[r.ID] {
				t.Fatalf("record %s listed twice", r.ID)
			}
			seen[r.ID] = true
		}
		if page.NextCursor == "" {
			return
		}
		cursor = page.NextCursor
	}
	t.Fatal("pagination did not terminate")
}

func (h *Harness) convert(t *testing.T, qm model.QuickMarc) model.ParsedRecordDto {
	t.Helper()
	var dto model.ParsedRecordDto
	h.mustDo(t, http.MethodPost, "/records-editor/convert", qm, http.StatusOK, &dto)
	return dto
}

// mustDo sends body as JSON, expects status and decodes the data member into out.
func (h *Harness) mustDo(t *testing.T, method, path string, body interface{}, status int, out interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.URL()+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error json.RawMessage `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode != status {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, status, resp.StatusCode, env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("%s %s: cannot decode response: %v", method, path, err)
		}
	}
}

func parseContent(t *testing.T, dto model.ParsedRecordDto) *marc.Record {
	t.Helper()
	rec, err := marc.ParseJSON(dto.ParsedRecord.Content)
	if err != nil {
		t.Fatalf("converted content is not MARC-in-JSON: %v", err)
	}
	return rec
}

func withoutTag(fields []marc.Field, tag string) []marc.Field {
	out := make([]marc.Field, 0, len(fields))
	for _, f := range fields {
		if !strings.EqualFold(f.Tag, tag) {
			out = append(out, f)
		}
	}
	return out
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vessel-cbm-monitor/internal/db"
	"vessel-cbm-monitor/internal/export"
	"vessel-cbm-monitor/internal/ingest"
	"vessel-cbm-monitor/internal/models"
	"vessel-cbm-monitor/internal/parser"
	"vessel-cbm-monitor/internal/store"
)

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    *meta           `json:"meta"`
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	st := store.New()
	n := parser.NewNormalizer(parser.NewResolver(time.UTC), parser.DefaultOptions(), nil).
		WithClock(func() time.Time { return fixedNow })
	p := ingest.New(st, n, nil)
	opts = append(opts, WithClock(func() time.Time { return fixedNow }))
	return NewServer(st, p, Config{PageSize: 20, StalenessDays: 30}, nil, opts...), st
}

const fleetPayload = `{"files": [
	{"name": "CBM Aurora.xlsx", "rows": [
		{"MP_NUMBER": "ME-01", "COMP_NAME": "Main Engine", "DATE": "2024-05-28", "Vel, Rms (RMS)": 3.1, "RPM1": 900},
		{"MP_NUMBER": "ME-01", "COMP_NAME": "Main Engine", "DATE": "2024-05-29", "Vel, Rms (RMS)": 7.4, "RPM1": 905},
		{"MP_NUMBER": "BP-03", "COMP_NAME": "Ballast Pump", "DATE": "2024-03-01", "Vel, Rms (RMS)": 2.0}
	]},
	{"name": "upload", "vessel": "Borealis", "rows": [
		{"MP_NUMBER": "FP-04", "COMP_NAME": "Fire Pump", "DATE": "2024-05-30", "RPM1": 1450}
	]}
]}`

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func seeded(t *testing.T, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	s, st := newTestServer(t, opts...)
	rec := do(t, s, http.MethodPost, "/api/v1/ingest/rows", fleetPayload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return s, st
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, decode(t, rec).Success)
}

func TestIngestRows(t *testing.T) {
	s, st := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/v1/ingest/rows", fleetPayload)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result models.BatchResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, 2, result.ProcessedFiles)
	assert.Equal(t, 6, result.Records)
	assert.Equal(t, []string{"Aurora", "Borealis"}, st.Vessels())

	rec = do(t, s, http.MethodPost, "/api/v1/ingest/rows", `{"files": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/ingest/rows", `{"files": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptions(t *testing.T) {
	s, _ := seeded(t)

	var got []string
	rec := do(t, s, http.MethodGet, "/api/v1/options/equipmentCode?vessel=Aurora", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, []string{"BP-03", "ME-01"}, got)

	rec = do(t, s, http.MethodGet, "/api/v1/options/vessel?component=Fire+Pump&changed=component", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, []string{"Borealis"}, got)

	rec = do(t, s, http.MethodGet, "/api/v1/options/colour", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRawPagination(t *testing.T) {
	s, _ := seeded(t)

	rec := do(t, s, http.MethodGet, "/api/v1/raw?page=2&pageSize=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 6, env.Meta.Total)
	assert.Equal(t, 2, env.Meta.Page)
	assert.Equal(t, 2, env.Meta.TotalPages)

	var items []models.Reading
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 2)

	rec = do(t, s, http.MethodGet, "/api/v1/raw?page=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEquipmentSeriesRequiresSelection(t *testing.T) {
	s, _ := seeded(t)
	rec := do(t, s, http.MethodGet, "/api/v1/equipment/series?vessel=Aurora", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/equipment/series?vessel=Aurora&equipmentCode=ME-01&parameter=RPM1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode(t, rec).Meta.Total)
}

func TestTrendDisplay(t *testing.T) {
	s, _ := seeded(t)

	rec := do(t, s, http.MethodGet, "/api/v1/trend?parameter=RPM1&range=30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Display map[string]string `json:"display"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &resp))
	assert.Equal(t, "1085.00 rpm", resp.Display["average"])

	rec = do(t, s, http.MethodGet, "/api/v1/trend", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingUsesConfiguredThreshold(t *testing.T) {
	s, _ := seeded(t)

	rec := do(t, s, http.MethodGet, "/api/v1/missing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []models.MissingEquipment
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "BP-03", items[0].EquipmentCode)
	assert.Equal(t, 92, items[0].DaysSinceLastReading)

	rec = do(t, s, http.MethodGet, "/api/v1/missing?threshold=0", "")
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &items))
	assert.Len(t, items, 3)
}

func TestExportCSV(t *testing.T) {
	s, _ := seeded(t)

	rec := do(t, s, http.MethodGet, "/api/v1/export/raw?vessel=Aurora", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="raw_data_2024-06-01.csv"`, rec.Header().Get("Content-Disposition"))

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Timestamp,Vessel,Equipment Code,Component,Parameter,Value", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-03-01 00:00:00,Aurora,BP-03,"), lines[1])
}

func TestExportFormats(t *testing.T) {
	s, _ := seeded(t)

	rec := do(t, s, http.MethodGet, "/api/v1/export/missing?format=pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = do(t, s, http.MethodGet, "/api/v1/export/trend?parameter=RPM1&format=xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, rec.Body.Len())

	rec = do(t, s, http.MethodGet, "/api/v1/export/raw?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/export/everything", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/v1/export/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, export.ErrNothingToExport.Error(), decode(t, rec).Error)
}

func TestSaveState(t *testing.T) {
	s, _ := seeded(t)
	rec := do(t, s, http.MethodPost, "/api/v1/state/save", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	kv := db.NewMemoryKV()
	s, _ = seeded(t, WithPersistence(db.NewPersistence(kv, nil)))
	rec = do(t, s, http.MethodPost, "/api/v1/state/save", "")
	require.Equal(t, http.StatusOK, rec.Code)

	restored := store.New()
	require.True(t, db.NewPersistence(kv, nil).Load(context.Background(), restored))
	assert.Equal(t, 6, restored.Len())
}

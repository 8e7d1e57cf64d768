package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/service/gpx"
	"argus-rideplan/internal/service/pipeline"
	"argus-rideplan/internal/service/planner"
	"argus-rideplan/internal/service/sim"
	"argus-rideplan/internal/service/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>Morning Loop</name>
    <trkseg>
      <trkpt lat="45.00" lon="7.0"><ele>100</ele></trkpt>
      <trkpt lat="45.01" lon="7.0"><ele>110</ele></trkpt>
      <trkpt lat="45.02" lon="7.0"><ele>105</ele></trkpt>
    </trkseg>
  </trk>
</gpx>`

var testNow = time.Date(2025, 6, 1, 8, 52, 0, 0, time.UTC)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store, err := storage.NewService(filepath.Join(t.TempDir(), "api.db"),
		domain.BikeProfile{Name: "Cyclist", BikeSetup: sim.DefaultSetup(), Power: 120}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	p := planner.New(sim.DefaultSetup(), 120, pipeline.DefaultOptions(), nil, store, zap.NewNop()).
		WithClock(func() time.Time { return testNow })
	return NewRouter(NewHandlers(p, store, gpx.NewService(), time.UTC), nil)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) Response[T] {
	t.Helper()
	var resp Response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func ele(v float64) *float64 { return &v }

func points() []pointPayload {
	return []pointPayload{
		{Latitude: 45.00, Longitude: 7, Elevation: ele(100)},
		{Latitude: 45.01, Longitude: 7, Elevation: ele(110)},
		{Latitude: 45.02, Longitude: 7, Elevation: ele(105)},
	}
}

func TestHealthAndModels(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/api/v1/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	models := decode[modelsResponse](t, rec)
	assert.Equal(t, "best_match", models.Data.Default)
	assert.NotEmpty(t, models.Data.Models)
}

func TestPlanLifecycle(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/plans", planRequest{
		Name:   "Hill",
		Points: points(),
		Power:  150,
		Start:  "2025-06-01 09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Plan](t, rec)
	require.NotNil(t, created.Data)
	plan := created.Data
	assert.Equal(t, "Hill", plan.RouteName)
	assert.Equal(t, 150.0, plan.Power)
	require.Len(t, plan.Segments, 3)
	assert.True(t, plan.Segments[0].PassageTime.Equal(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))

	rec = do(t, h, http.MethodGet, "/api/v1/plans/"+plan.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.Plan](t, rec)
	assert.Equal(t, plan.ID, got.Data.ID)
	assert.Len(t, got.Data.Segments, 3)

	rec = do(t, h, http.MethodGet, "/api/v1/plans?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]domain.PlanInfo](t, rec)
	require.Len(t, *list.Data, 1)
	assert.Equal(t, plan.ID, (*list.Data)[0].ID)

	rec = do(t, h, http.MethodGet, "/api/v1/plans?month=2025-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, *decode[[]domain.PlanInfo](t, rec).Data, 1)

	rec = do(t, h, http.MethodGet, "/api/v1/plans/"+plan.ID+"/csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Hill.csv"`)
	assert.Equal(t, 4, strings.Count(strings.TrimSpace(rec.Body.String()), "\n")+1)

	rec = do(t, h, http.MethodGet, "/api/v1/plans/"+plan.ID+"/kml", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/plans/"+plan.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/plans/"+plan.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/v1/plans/"+plan.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePlanFromUpload(t *testing.T) {
	h := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("gpx", "loop.gpx")
	require.NoError(t, err)
	_, err = fw.Write([]byte(sampleGPX))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("power", "200"))
	require.NoError(t, mw.WriteField("window_minutes", "10"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	plan := decode[domain.Plan](t, rec).Data
	assert.Equal(t, "Morning Loop", plan.RouteName)
	assert.Equal(t, 200.0, plan.Power)
	// Default start is the next quarter hour after now + 5 min.
	assert.True(t, plan.Summary.Start.Equal(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
}

func TestCreatePlanRejectsBadInput(t *testing.T) {
	h := newTestServer(t)

	cases := []struct {
		name string
		body any
		code int
	}{
		{"no points", planRequest{Name: "empty"}, http.StatusUnprocessableEntity},
		{"bad start", planRequest{Points: points(), Start: "tomorrow"}, http.StatusBadRequest},
		{"negative power", planRequest{Points: points(), Power: -5}, http.StatusBadRequest},
		{"zero window", planRequest{Points: points(), WindowMinutes: new(float64)}, http.StatusBadRequest},
		{"weather disabled", planRequest{Points: points(), Weather: true}, http.StatusBadRequest},
		{"not json", "{", http.StatusBadRequest},
		{"point without ele", json.RawMessage(`{"points":[{"lat":45,"lon":7,"ele":100},{"lat":45.01,"lon":7}]}`), http.StatusUnprocessableEntity},
		{"point with null ele", json.RawMessage(`{"points":[{"lat":45,"lon":7,"ele":null},{"lat":45.01,"lon":7,"ele":0}]}`), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/plans", tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			resp := decode[any](t, rec)
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Error)
			assert.Nil(t, resp.Data)
			assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)
		})
	}
}

func TestUploadWithoutElevation(t *testing.T) {
	h := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("gpx", "flat.gpx")
	require.NoError(t, err)
	_, err = fw.Write([]byte(strings.ReplaceAll(sampleGPX, "<ele>110</ele>", "")))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestZeroElevationIsAccepted(t *testing.T) {
	h := newTestServer(t)

	body := json.RawMessage(`{"points":[{"lat":45,"lon":7,"ele":0},{"lat":45.01,"lon":7,"ele":0}]}`)
	rec := do(t, h, http.MethodPost, "/api/v1/plans", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	plan := decode[domain.Plan](t, rec).Data
	assert.Zero(t, plan.Segments[0].Elevation)
}

func TestRequestIDInEnvelope(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/missing", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[any](t, rec)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, "plan not found", resp.Error)
}

func TestListPlansValidation(t *testing.T) {
	h := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/plans?limit=zero", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/plans?month=June", nil).Code)

	rec := do(t, h, http.MethodGet, "/api/v1/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, *decode[[]domain.PlanInfo](t, rec).Data)
}

func TestProfile(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := *decode[domain.BikeProfile](t, rec).Data
	assert.Equal(t, "Cyclist", profile.Name)
	assert.Equal(t, 120.0, profile.Power)

	bad := profile
	bad.RiderMass = 0
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/v1/profile", bad).Code)

	profile.RiderMass = 75
	profile.Power = 180
	rec = do(t, h, http.MethodPut, "/api/v1/profile", profile)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := *decode[domain.BikeProfile](t, rec).Data
	assert.Equal(t, 75.0, saved.RiderMass)
	assert.Equal(t, 180.0, saved.Power)

	// New plans pick up the stored profile.
	rec = do(t, h, http.MethodPost, "/api/v1/plans", planRequest{Points: points()})
	require.Equal(t, http.StatusCreated, rec.Code)
	plan := decode[domain.Plan](t, rec).Data
	assert.Equal(t, 180.0, plan.Power)
	assert.Equal(t, 75.0, plan.Setup.RiderMass)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a_b.fit", fileName(&domain.Plan{RouteName: "a/b"}, ".fit"))
	assert.Equal(t, "id-1.csv", fileName(&domain.Plan{ID: "id-1"}, ".csv"))
}

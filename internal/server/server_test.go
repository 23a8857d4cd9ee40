package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/riskmap/internal/analytics"
	"github.com/sells-group/riskmap/internal/dashboard"
	"github.com/sells-group/riskmap/internal/enrich"
	"github.com/sells-group/riskmap/internal/metrics"
	"github.com/sells-group/riskmap/internal/region"
	"github.com/sells-group/riskmap/internal/resilience"
	"github.com/sells-group/riskmap/pkg/prediction"
	"github.com/sells-group/riskmap/pkg/prediction/mocks"
)

func newTestServer(t *testing.T, src *mocks.MockSource) *httptest.Server {
	t.Helper()

	regions := []region.Region{
		{Name: "Westlands", Geometry: geom.NewPointFlat(geom.XY, []float64{36.8, -1.26}), Properties: map[string]any{"shapeName": "Westlands"}},
		{Name: "Embakasi South", Geometry: geom.NewPointFlat(geom.XY, []float64{36.9, -1.32}), Properties: map[string]any{"shapeName": "Embakasi South"}},
	}

	cfg := enrich.DefaultConfig()
	cfg.RegionTimeout = time.Second
	cfg.Retry = resilience.RetryConfig{MaxAttempts: 1}
	rec := metrics.New()
	e := enrich.New(src, nil, cfg, enrich.WithMetrics(rec))

	svc := dashboard.NewService(regions, e, src, dashboard.Options{
		Models:      []string{"rf", "xgb", "mlp"},
		MinYear:     2019,
		MaxYear:     2023,
		Metric:      "Rent",
		Summary:     analytics.DefaultSummaryOptions(),
		DefaultTopN: 5,
	}, rec)

	srv := httptest.NewServer(New(svc, nil, rec, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url, token string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockSource(t))
	resp, body := get(t, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestRegions(t *testing.T) {
	src := mocks.NewMockSource(t)
	src.On("Prediction", mock.Anything, "westlands", "xgb", 2022, prediction.Credential("tok")).
		Return(&prediction.Prediction{Score: 0.2, RiskCategory: "High", SampleCount: 9}, nil)
	src.On("Prediction", mock.Anything, "embakasi", "xgb", 2022, prediction.Credential("tok")).
		Return(nil, prediction.ErrNotFound)

	srv := newTestServer(t, src)
	resp, body := get(t, srv.URL+"/api/regions?model=XGB&year=2022", "tok")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "FeatureCollection", body["type"])
	features := body["features"].([]any)
	require.Len(t, features, 2)

	first := features[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "Westlands", first["shapeName"])
	assert.Equal(t, "High", first["riskCategory"])
	assert.Equal(t, 0.2, first["score"])
	assert.Equal(t, 9.0, first["sampleCount"])
	assert.Equal(t, true, first["existsInDataset"])

	second := features[1].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "Unknown", second["riskCategory"])
	assert.Nil(t, second["score"])
	assert.Equal(t, false, second["existsInDataset"])
}

func TestRegions_BadRequests(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockSource(t))

	for name, query := range map[string]string{
		"missing year":  "/api/regions?model=rf",
		"year not int":  "/api/regions?model=rf&year=twenty",
		"unknown model": "/api/regions?model=svm&year=2023",
		"year range":    "/api/regions?model=rf&year=2031",
	} {
		t.Run(name, func(t *testing.T) {
			resp, body := get(t, srv.URL+query, "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSummaryAndSnapshot(t *testing.T) {
	src := mocks.NewMockSource(t)
	src.On("Prediction", mock.Anything, "westlands", "rf", 2023, mock.Anything).
		Return(&prediction.Prediction{Score: 0.2, RiskCategory: "High", FeaturesUsed: map[string]float64{"Rent": 1100}}, nil)
	src.On("Prediction", mock.Anything, "westlands", "rf", 2021, mock.Anything).
		Return(&prediction.Prediction{Score: 0.1, RiskCategory: "High", FeaturesUsed: map[string]float64{"Rent": 1000}}, nil)
	src.On("Prediction", mock.Anything, "embakasi", "rf", mock.Anything, mock.Anything).
		Return(nil, prediction.ErrNotFound)

	srv := newTestServer(t, src)

	resp, _ := get(t, srv.URL+"/api/snapshot", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := get(t, srv.URL+"/api/summary?model=rf&year=2023&previous_year=2021", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2021.0, body["previousYear"])
	assert.NotEmpty(t, body["runId"])

	summary := body["summary"].(map[string]any)
	assert.Equal(t, 1.0, summary["highRiskCount"])
	assert.Equal(t, []any{"Westlands"}, summary["highRiskRegionNames"])
	assert.InDelta(t, 5.0, summary["averagePercentChange"], 1e-9)

	resp, body = get(t, srv.URL+"/api/snapshot", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2023.0, body["year"])
}

func TestImportance(t *testing.T) {
	src := mocks.NewMockSource(t)
	src.On("FeatureImportance", mock.Anything, "rf", mock.Anything).
		Return(&prediction.Importance{FeatureNames: []string{"A", "B"}, Values: []float64{3, 1}}, nil)

	srv := newTestServer(t, src)
	resp, body := get(t, srv.URL+"/api/importance?models=rf&top_n=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := body["rf"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "A", first["featureName"])
	assert.InDelta(t, 75.0, first["importancePercent"], 1e-9)

	resp, _ = get(t, srv.URL+"/api/importance?models=rf&top_n=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/importance?models=svm", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompare(t *testing.T) {
	src := mocks.NewMockSource(t)
	cred := prediction.Credential("tok")
	src.On("Prediction", mock.Anything, "westlands", "rf", 2021, cred).Return(&prediction.Prediction{Score: 0.3, RiskCategory: "High"}, nil)
	src.On("Prediction", mock.Anything, "westlands", "mlp", 2021, cred).Return(&prediction.Prediction{Score: -0.3, RiskCategory: "Low"}, nil)
	src.On("Prediction", mock.Anything, "embakasi", "rf", 2021, cred).Return(nil, prediction.ErrNotFound)
	src.On("Prediction", mock.Anything, "embakasi", "mlp", 2021, cred).Return(&prediction.Prediction{Score: 0.2, RiskCategory: "High"}, nil)

	srv := newTestServer(t, src)
	resp, body := get(t, srv.URL+"/api/compare?models=RF,%20mlp&year=2021", "tok")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []any{"rf", "mlp"}, body["models"])
	regions, ok := body["regions"].([]any)
	require.True(t, ok)
	require.Len(t, regions, 2)

	west := regions[0].(map[string]any)
	assert.Equal(t, "westlands", west["key"])
	models := west["models"].(map[string]any)
	assert.Equal(t, "High", models["rf"].(map[string]any)["riskCategory"])
	assert.Equal(t, "Low", models["mlp"].(map[string]any)["riskCategory"])

	emb := regions[1].(map[string]any)["models"].(map[string]any)
	assert.Equal(t, false, emb["rf"].(map[string]any)["existsInDataset"])
	assert.Nil(t, emb["rf"].(map[string]any)["score"])

	assert.Equal(t, map[string]any{"rf": 1.0, "mlp": 1.0}, body["highRiskCounts"])
}

func TestCompare_BadRequests(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockSource(t))
	for _, q := range []string{"", "?year=abc", "?year=2021&models=svm", "?year=2031"} {
		resp, body := get(t, srv.URL+"/api/compare"+q, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.NotEmpty(t, body["error"], q)
	}
}

func TestCanonicalize(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockSource(t))
	resp, body := get(t, srv.URL+"/api/canonicalize?name=Embakasi%20Central", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "embakasi", body["key"])
	assert.Equal(t, "Embakasi", body["displayName"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockSource(t))
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, mocks.NewMockSource(t))
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/regions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCredentialFrom(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, prediction.Credential(""), credentialFrom(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, prediction.Credential("abc"), credentialFrom(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, prediction.Credential(""), credentialFrom(r))
}

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatusProvider struct {
	status StatusReport
	stats  StatsReport
	err    error
}

func (f *fakeStatusProvider) Status(ctx context.Context) (StatusReport, error) {
	return f.status, f.err
}

func (f *fakeStatusProvider) Stats(ctx context.Context) (StatsReport, error) {
	return f.stats, f.err
}

func newTestServer(status StatusProvider) *Server {
	return New(Config{Addr: "127.0.0.1:0"}, status, zerolog.Nop())
}

func TestHealthReturnsOK(t *testing.T) {
	s := newTestServer(&fakeStatusProvider{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusReturnsProviderData(t *testing.T) {
	provider := &fakeStatusProvider{status: StatusReport{Uptime: "1h0m0s", ActiveActors: 3, ExchangeHealthy: true}}
	s := newTestServer(provider)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body StatusReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body.ActiveActors)
	assert.True(t, body.ExchangeHealthy)
}

func TestStatsReturnsProviderData(t *testing.T) {
	provider := &fakeStatusProvider{stats: StatsReport{SignalsEmittedToday: 7, ClassifierTrained: true, ClassifierSamples: 42}}
	s := newTestServer(provider)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)

	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body StatsReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 7, body.SignalsEmittedToday)
	assert.Equal(t, 42, body.ClassifierSamples)
}

func TestMetricsEndpointExposesPrometheusFormat(t *testing.T) {
	s := newTestServer(&fakeStatusProvider{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownRouteReturns404JSON(t *testing.T) {
	s := newTestServer(&fakeStatusProvider{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)

	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	s := newTestServer(&fakeStatusProvider{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	s.router.ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridian-network/node/pkg/health"
	"github.com/meridian-network/node/pkg/types"
	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	verdict health.Verdict
}

func (f *fakeChecker) Check(ctx context.Context) health.Verdict { return f.verdict }

func TestHealthEndpointHealthy(t *testing.T) {
	checker := &fakeChecker{verdict: health.Verdict{Healthy: true, Snapshot: types.HealthSnapshot{SOLBalance: 1}}}
	mux := NewMux(checker)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	checker := &fakeChecker{verdict: health.Verdict{Healthy: false, Reasons: []string{"no signer key"}}}
	mux := NewMux(checker)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no signer key")
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	checker := &fakeChecker{}
	mux := NewMux(checker)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meridian_")
}

package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitd/internal/domain"
	"transitd/internal/provider"
)

type fakeAdapter struct{}

func (f *fakeAdapter) Name() string                 { return "fake" }
func (f *fakeAdapter) Config() domain.ProviderConfig { return domain.ProviderConfig{Name: "fake"} }
func (f *fakeAdapter) WaitingTimes(ctx context.Context, stopID string) (provider.WaitingTimesResult, error) {
	return provider.WaitingTimesResult{StopsData: map[string]provider.StopWaitingTimes{
		stopID: {Name: "Test Stop"},
	}}, nil
}

func newTestHandler() *Handler {
	registry := provider.NewRegistry()
	registry.Register("fake", &fakeAdapter{})
	return NewHandler(registry, slog.Default())
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
}

func TestHandleDispatchWaitingTimes(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest("GET", "/api/fake/waiting_times/stop-1", nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)

	var body provider.WaitingTimesResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Test Stop", body.StopsData["stop-1"].Name)
}

func TestHandleDispatchUnknownProviderReturns404(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest("GET", "/api/nope/waiting_times/stop-1", nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	assert.Equal(t, 404, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NotFound", body.Error)
	assert.Contains(t, body.Available, "fake")
}

func TestHandleProvidersListsDocs(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest("GET", "/api/providers", nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "waiting_times")
}

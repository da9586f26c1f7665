package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitd/internal/apperr"
	"transitd/internal/domain"
)

// fakeAdapter implements Adapter plus WaitingTimesProvider only, so
// Endpoints/Dispatch can be exercised without a real operator backend.
type fakeAdapter struct {
	cfg domain.ProviderConfig
}

func (f *fakeAdapter) Name() string                   { return "fake" }
func (f *fakeAdapter) Config() domain.ProviderConfig   { return f.cfg }
func (f *fakeAdapter) WaitingTimes(ctx context.Context, stopID string) (WaitingTimesResult, error) {
	return WaitingTimesResult{StopsData: map[string]StopWaitingTimes{
		stopID: {Name: "Test Stop"},
	}}, nil
}

func TestEndpointsDetectsOnlyImplementedCapabilities(t *testing.T) {
	a := &fakeAdapter{}
	assert.Equal(t, []string{"waiting_times"}, Endpoints(a))
}

func TestDispatchUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), "nope", "waiting_times", nil)
	require.Error(t, err)
}

func TestDispatchUnknownEndpoint(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", &fakeAdapter{})
	_, err := r.Dispatch(context.Background(), "fake", "vehicles", nil)
	require.Error(t, err)
}

func TestDispatchRoutesToWaitingTimes(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", &fakeAdapter{})
	result, err := r.Dispatch(context.Background(), "fake", "waiting_times", []string{"stop-1"})
	require.NoError(t, err)
	wt, ok := result.(WaitingTimesResult)
	require.True(t, ok)
	assert.Equal(t, "Test Stop", wt.StopsData["stop-1"].Name)
}

// routeFakeAdapter adds the Route capability to fakeAdapter, so the route
// endpoint reaches its line-parameter check.
type routeFakeAdapter struct{ fakeAdapter }

func (f *routeFakeAdapter) Route(ctx context.Context, line string) ([]RouteVariantView, error) {
	return nil, nil
}

func TestDispatchRequiresLineParamForRoute(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", &routeFakeAdapter{})
	_, err := r.Dispatch(context.Background(), "fake", "route", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidParameter, apperr.As(err).Kind)
}

func TestDocsListsRegisteredProviders(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", &fakeAdapter{})
	docs := r.Docs()
	assert.Contains(t, docs, "fake")
	assert.Equal(t, []string{"waiting_times"}, docs["fake"].Endpoints)
}

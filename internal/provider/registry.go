package provider

import (
	"context"
	"sort"
	"strconv"

	"transitd/internal/apperr"
)

// Registry holds every enabled adapter, keyed by its short name
// ("stib", "delijn", "sncb", "bkk", ...), per spec.md §4.10.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under name; called once per enabled provider at
// startup (cmd/transitd/main.go), mirroring the teacher's explicit
// wiring-in-main style rather than reflection-based package discovery.
func (r *Registry) Register(name string, a Adapter) {
	r.adapters[name] = a
}

// Names returns the registered provider names, sorted, for the
// available-providers hint on an unknown-provider error.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Dispatch implements spec.md §4.10: validates the provider/endpoint pair
// and routes to the adapter's capability, or returns a structured
// apperr.KindNotFound listing valid alternatives.
func (r *Registry) Dispatch(ctx context.Context, providerName, endpoint string, params []string) (interface{}, error) {
	adapter, ok := r.adapters[providerName]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "unknown provider: "+providerName).WithAvailable(r.Names())
	}

	available := Endpoints(adapter)
	found := false
	for _, e := range available {
		if e == endpoint {
			found = true
			break
		}
	}
	if !found {
		return nil, apperr.New(apperr.KindNotFound, "unknown endpoint: "+endpoint).WithAvailable(available)
	}

	param := func(i int) string {
		if i < len(params) {
			return params[i]
		}
		return ""
	}

	switch endpoint {
	case "waiting_times":
		p, ok := adapter.(WaitingTimesProvider)
		if !ok {
			break
		}
		return p.WaitingTimes(ctx, param(0))

	case "vehicles":
		p, ok := adapter.(VehiclesProvider)
		if !ok {
			break
		}
		return p.Vehicles(ctx, param(0), param(1))

	case "service_messages":
		p, ok := adapter.(ServiceMessagesProvider)
		if !ok {
			break
		}
		return p.ServiceMessages(ctx, adapter.Config().MonitoredLines, adapter.Config().StopIDs)

	case "route":
		p, ok := adapter.(RouteProvider)
		if !ok {
			break
		}
		if param(0) == "" {
			return nil, apperr.New(apperr.KindInvalidParameter, "route requires a line parameter")
		}
		return p.Route(ctx, param(0))

	case "colors":
		p, ok := adapter.(ColorsProvider)
		if !ok {
			break
		}
		if param(0) == "" {
			return nil, apperr.New(apperr.KindInvalidParameter, "colors requires a line parameter")
		}
		return p.Colors(ctx, param(0))

	case "nearest_stop":
		p, ok := adapter.(NearestStopProvider)
		if !ok {
			break
		}
		lat, errLat := strconv.ParseFloat(param(0), 64)
		lon, errLon := strconv.ParseFloat(param(1), 64)
		if errLat != nil || errLon != nil {
			return nil, apperr.New(apperr.KindInvalidParameter, "nearest_stop requires numeric lat,lon")
		}
		return p.NearestStop(ctx, lat, lon, 10, 2.0)

	case "stop_by_name":
		p, ok := adapter.(StopByNameProvider)
		if !ok {
			break
		}
		if param(0) == "" {
			return nil, apperr.New(apperr.KindInvalidParameter, "stop_by_name requires a query parameter")
		}
		return p.StopByName(ctx, param(0), 10)
	}

	return nil, apperr.New(apperr.KindNotFound, "endpoint not implemented by provider").WithAvailable(available)
}

// Docs introspects every registered adapter to publish the machine-readable
// catalog for `GET /api/docs`, per spec.md §4.10 step 3.
func (r *Registry) Docs() map[string]ProviderDoc {
	out := make(map[string]ProviderDoc, len(r.adapters))
	for name, adapter := range r.adapters {
		out[name] = ProviderDoc{
			Endpoints: Endpoints(adapter),
		}
	}
	return out
}

// ProviderDoc is the `GET /api/providers` entry shape from spec.md §6.
type ProviderDoc struct {
	Endpoints []string `json:"endpoints"`
}

// Package delijn adapts De Lijn (Flanders bus/tram): a JSON waiting-times
// and vehicle-position API, multilingual by design (Dutch/French/English),
// making it the adapter that exercises C6's translation fallback chain end
// to end. Grounded on original_source/app/transit_providers/be/delijn and
// the teacher's pkg/warsawapi/client.go client shape.
package delijn

import (
	"context"
	"fmt"

	"transitd/internal/domain"
	"transitd/internal/gtfs"
	"transitd/internal/provider"
	"transitd/internal/vehicleposition"
)

type Adapter struct {
	*provider.Base
	RequestedLanguage string // e.g. "fr"; empty means the provider default
}

func New(base *provider.Base, requestedLanguage string) *Adapter {
	return &Adapter{Base: base, RequestedLanguage: requestedLanguage}
}

var (
	_ provider.Adapter                 = (*Adapter)(nil)
	_ provider.WaitingTimesProvider     = (*Adapter)(nil)
	_ provider.VehiclesProvider         = (*Adapter)(nil)
	_ provider.ServiceMessagesProvider  = (*Adapter)(nil)
)

type upstreamPassage struct {
	LineNumber    string `json:"lineNumber"`
	Destination   string `json:"destination"`
	RealtimeArrival string `json:"realtimeArrivalTime"`
	ScheduledArrival string `json:"scheduledArrivalTime"`
	DelaySeconds  *int   `json:"delaySeconds"`
}

type upstreamWaitingTimes struct {
	Stops map[string][]upstreamPassage `json:"doorkomsten"`
}

// WaitingTimes implements provider.WaitingTimesProvider. De Lijn's own
// payload never carries stop names or coordinates, so both are always
// resolved from GTFS (source "gtfs"), and stop names run through C6's
// ResolveLanguage using the adapter's configured language and the
// provider's declared AvailableLanguages preference order.
func (a *Adapter) WaitingTimes(ctx context.Context, stopID string) (provider.WaitingTimesResult, error) {
	if stopID == "" {
		return provider.WaitingTimesResult{}, fmt.Errorf("delijn: stop_id required")
	}

	url := fmt.Sprintf("%s/haltes/%s/real-time", a.Cfg.APIURL, stopID)
	var upstream upstreamWaitingTimes
	cached, err := a.GetJSON(ctx, url, "waiting_times:"+stopID, a.Cfg.GTFSCacheTTL, &upstream)
	if err != nil {
		return provider.WaitingTimesResult{}, err
	}

	snap, state := a.Feed.Current()
	result := provider.WaitingTimesResult{StopsData: make(map[string]provider.StopWaitingTimes)}

	passages, ok := upstream.Stops[stopID]
	if !ok {
		return result, nil
	}

	name := stopID
	var coords *domain.Coordinates
	meta := &domain.Metadata{Source: "gtfs"}
	var langMeta *domain.LanguageMetadata
	translations := make(map[string]string)

	if state == gtfs.StateReady && snap != nil {
		if s, ok := snap.Stops[stopID]; ok {
			coords = s.Coordinates
			resolved, lm := gtfs.ResolveLanguage(s, a.RequestedLanguage, a.Cfg.AvailableLanguages, a.Cfg.DefaultLanguage)
			name = resolved
			langMeta = lm
			translations = s.Translations
		}
	}
	if cached {
		meta.Cached = true
	}
	if langMeta != nil && langMeta.Warning != "" {
		meta.Warning = langMeta.Warning
	}

	lines := make(map[string]map[string][]domain.WaitingTime)
	for _, p := range passages {
		if lines[p.LineNumber] == nil {
			lines[p.LineNumber] = make(map[string][]domain.WaitingTime)
		}
		wt := domain.WaitingTime{
			Provider: "delijn", StopID: stopID, RouteID: p.LineNumber, Headsign: p.Destination,
			ScheduledTime: p.ScheduledArrival, RealtimeTime: p.RealtimeArrival,
			IsRealtime: p.RealtimeArrival != "", DelaySeconds: p.DelaySeconds, LanguageMeta: langMeta,
		}
		lines[p.LineNumber][p.Destination] = append(lines[p.LineNumber][p.Destination], wt)
	}

	result.StopsData[stopID] = provider.StopWaitingTimes{
		Name: name, Coordinates: coords, Translations: translations, Metadata: meta, Lines: lines,
	}
	return result, nil
}

type upstreamVehicle struct {
	LineNumber   string  `json:"lineNumber"`
	Direction    string  `json:"direction"` // destination stop id
	NextStopID   string  `json:"volgendeHalteId"`
	DistanceM    float64 `json:"afstandTotVolgendeHalte"`
}

// Vehicles implements provider.VehiclesProvider, reducing De Lijn's
// telemetry to the same next-stop/distance shape STIB uses before handing
// off to C8's shared reconstructor.
func (a *Adapter) Vehicles(ctx context.Context, line, direction string) ([]domain.VehiclePosition, error) {
	url := fmt.Sprintf("%s/lijnen/%s/voertuigen", a.Cfg.APIURL, line)
	var upstream []upstreamVehicle
	_, err := a.GetJSON(ctx, url, "vehicles:"+line, a.Cfg.GTFSCacheTTL, &upstream)
	if err != nil {
		return nil, err
	}

	snap, state := a.Feed.Current()
	if state != gtfs.StateReady || snap == nil {
		return nil, nil
	}

	var positions []domain.VehiclePosition
	for _, uv := range upstream {
		if direction != "" && uv.Direction != direction {
			continue
		}
		variant := findVariantByTerminus(snap, uv.LineNumber, uv.Direction)
		if variant == nil {
			continue
		}
		shape := snap.Shapes[variant.ShapeID]
		stopLookup := vehicleposition.StopLookup(func(id string) (*domain.Coordinates, bool) {
			s, ok := snap.Stops[id]
			if !ok {
				return nil, false
			}
			return s.Coordinates, s.Coordinates != nil
		})
		telemetry := domain.VehicleTelemetry{
			Provider: "delijn", Line: uv.LineNumber, DirectionKey: uv.Direction,
			NextStopID: uv.NextStopID, DistanceToNextMeters: uv.DistanceM,
		}
		pos := vehicleposition.Reconstruct(variant, shape, stopLookup, telemetry)
		positions = append(positions, *pos)
	}
	return positions, nil
}

func findVariantByTerminus(snap *gtfs.Snapshot, routeID, terminusStopID string) *domain.RouteVariant {
	for i := range snap.Variants {
		v := &snap.Variants[i]
		if v.RouteID != routeID || len(v.StopIDs) == 0 {
			continue
		}
		if v.StopIDs[len(v.StopIDs)-1] == terminusStopID {
			return v
		}
	}
	return nil
}

type upstreamMessage struct {
	Title    string   `json:"titel"`
	Lines    []string `json:"lijnen"`
	Stops    []string `json:"haltes"`
	Priority int      `json:"prioriteit"`
}

// ServiceMessages implements provider.ServiceMessagesProvider.
func (a *Adapter) ServiceMessages(ctx context.Context, monitoredLines, monitoredStops []string) ([]domain.ServiceMessage, error) {
	url := a.Cfg.APIURL + "/omleidingen"
	var upstream []upstreamMessage
	_, err := a.GetJSON(ctx, url, "service_messages", a.Cfg.GTFSCacheTTL, &upstream)
	if err != nil {
		return nil, err
	}

	lineSet := make(map[string]bool, len(monitoredLines))
	for _, l := range monitoredLines {
		lineSet[l] = true
	}
	stopSet := make(map[string]bool, len(monitoredStops))
	for _, s := range monitoredStops {
		stopSet[s] = true
	}

	snap, state := a.Feed.Current()
	out := make([]domain.ServiceMessage, 0, len(upstream))
	for _, m := range upstream {
		monitored := false
		for _, l := range m.Lines {
			if lineSet[l] {
				monitored = true
			}
		}
		var stopNames []string
		for _, stopID := range m.Stops {
			if stopSet[stopID] {
				monitored = true
			}
			if state == gtfs.StateReady && snap != nil {
				if s, ok := snap.Stops[stopID]; ok {
					resolved, _ := gtfs.ResolveLanguage(s, a.RequestedLanguage, a.Cfg.AvailableLanguages, a.Cfg.DefaultLanguage)
					stopNames = append(stopNames, resolved)
				}
			}
		}
		out = append(out, domain.ServiceMessage{
			Text: m.Title, AffectedLines: m.Lines, AffectedStopIDs: m.Stops,
			AffectedStopNames: stopNames, Priority: m.Priority, Type: "disruption", IsMonitored: monitored,
		})
	}
	return out, nil
}

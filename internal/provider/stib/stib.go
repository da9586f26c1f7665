// Package stib adapts the Brussels STIB/MIVB operator: a JSON waiting-times
// API plus GTFS static for stops/routes/shapes. Grounded on
// original_source/app/transit_providers/be/stib (waiting-times normalization,
// locate_vehicles.py's next-stop/distance-to-next telemetry shape -- the
// direct model for C8) and the teacher's pkg/warsawapi/client.go for the
// single-provider JSON client structure.
package stib

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"transitd/internal/domain"
	"transitd/internal/gtfs"
	"transitd/internal/provider"
	"transitd/internal/vehicleposition"
)

// Adapter implements provider.Adapter plus every optional capability STIB
// supports per spec.md §4.9/§4.12.
type Adapter struct {
	*provider.Base
}

func New(base *provider.Base) *Adapter {
	return &Adapter{Base: base}
}

var (
	_ provider.Adapter              = (*Adapter)(nil)
	_ provider.WaitingTimesProvider = (*Adapter)(nil)
	_ provider.VehiclesProvider     = (*Adapter)(nil)
	_ provider.ServiceMessagesProvider = (*Adapter)(nil)
	_ provider.RouteProvider        = (*Adapter)(nil)
	_ provider.ColorsProvider       = (*Adapter)(nil)
	_ provider.NearestStopProvider  = (*Adapter)(nil)
	_ provider.StopByNameProvider   = (*Adapter)(nil)
)

// upstreamWaitingTimes mirrors the STIB "PassingTimeByPoint" response shape.
type upstreamWaitingTimes struct {
	Points []struct {
		PointID       string `json:"pointId"`
		PassingTimes []struct {
			LineID          string  `json:"lineId"`
			Destination     string  `json:"destination"`
			ExpectedTime    string  `json:"expectedArrivalTime"`
			GPSCoordinates  *[2]float64 `json:"gpscoordinates"`
		} `json:"passingTimes"`
	} `json:"points"`
}

// WaitingTimes implements provider.WaitingTimesProvider.
func (a *Adapter) WaitingTimes(ctx context.Context, stopID string) (provider.WaitingTimesResult, error) {
	if stopID == "" {
		return provider.WaitingTimesResult{}, fmt.Errorf("stib: stop_id required")
	}

	url := fmt.Sprintf("%s/stops/%s/waiting-times", a.Cfg.APIURL, stopID)
	var upstream upstreamWaitingTimes
	cached, err := a.GetJSON(ctx, url, "waiting_times:"+stopID, a.Cfg.GTFSCacheTTL, &upstream)
	if err != nil {
		return provider.WaitingTimesResult{}, err
	}

	snap, state := a.Feed.Current()
	result := provider.WaitingTimesResult{StopsData: make(map[string]provider.StopWaitingTimes)}

	for _, p := range upstream.Points {
		canonicalID := stripStibSuffix(p.PointID)
		stopMeta := &domain.Metadata{Source: "api"}
		var coords *domain.Coordinates
		name := canonicalID

		if state == gtfs.StateReady && snap != nil {
			if s, ok := snap.Stops[canonicalID]; ok {
				name = s.Name
			}
		}
		if coords == nil && state == gtfs.StateReady && snap != nil {
			if s, ok := snap.Stops[canonicalID]; ok && s.Coordinates != nil {
				coords = s.Coordinates
				stopMeta.Source = "gtfs"
			}
		}
		if cached {
			stopMeta.Cached = true
		}

		lines := make(map[string]map[string][]domain.WaitingTime)
		for _, pt := range p.PassingTimes {
			if lines[pt.LineID] == nil {
				lines[pt.LineID] = make(map[string][]domain.WaitingTime)
			}
			wt := domain.WaitingTime{
				Provider: "stib", StopID: canonicalID, RouteID: pt.LineID,
				Headsign: pt.Destination, RealtimeTime: pt.ExpectedTime, IsRealtime: true,
			}
			lines[pt.LineID][pt.Destination] = append(lines[pt.LineID][pt.Destination], wt)
		}

		result.StopsData[canonicalID] = provider.StopWaitingTimes{
			Name: name, Coordinates: coords, Metadata: stopMeta, Lines: lines,
		}
	}

	return result, nil
}

// stripStibSuffix implements the §4.8/§9 open question: strip trailing
// non-digits from platform-suffixed stop ids (5710F -> 5710).
func stripStibSuffix(id string) string {
	i := len(id)
	for i > 0 && (id[i-1] < '0' || id[i-1] > '9') {
		i--
	}
	return id[:i]
}

// upstreamVehicle mirrors STIB's locate_vehicles.py telemetry shape:
// next-stop id plus distance-to-next in meters.
type upstreamVehicle struct {
	LineID       string `json:"lineId"`
	DirectionKey string `json:"directionId"`
	NextStopID   string `json:"pointId"`
	Distance     float64 `json:"distance"`
}

// Vehicles implements provider.VehiclesProvider.
func (a *Adapter) Vehicles(ctx context.Context, line, direction string) ([]domain.VehiclePosition, error) {
	url := fmt.Sprintf("%s/vehicles?line=%s", a.Cfg.APIURL, line)
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
		if direction != "" && uv.DirectionKey != direction {
			continue
		}
		variant := findVariant(snap, uv.LineID, uv.DirectionKey)
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
			Provider: "stib", Line: uv.LineID, DirectionKey: uv.DirectionKey,
			NextStopID: uv.NextStopID, DistanceToNextMeters: uv.Distance,
		}
		pos := vehicleposition.Reconstruct(variant, shape, stopLookup, telemetry)
		positions = append(positions, *pos)
	}
	return positions, nil
}

func findVariant(snap *gtfs.Snapshot, routeID, directionKey string) *domain.RouteVariant {
	dirID, err := strconv.Atoi(directionKey)
	for i := range snap.Variants {
		v := &snap.Variants[i]
		if v.RouteID != routeID {
			continue
		}
		if err == nil && v.DirectionID == dirID {
			return v
		}
		if strings.EqualFold(v.Headsign, directionKey) {
			return v
		}
	}
	return nil
}

type upstreamMessage struct {
	Text    string   `json:"text"`
	Lines   []string `json:"lines"`
	Points  []string `json:"points"`
	Type    string   `json:"type"`
	Priority int     `json:"priority"`
}

// ServiceMessages implements provider.ServiceMessagesProvider.
func (a *Adapter) ServiceMessages(ctx context.Context, monitoredLines, monitoredStops []string) ([]domain.ServiceMessage, error) {
	url := a.Cfg.APIURL + "/service-messages"
	var upstream []upstreamMessage
	_, err := a.GetJSON(ctx, url, "service_messages", a.Cfg.GTFSCacheTTL, &upstream)
	if err != nil {
		return nil, err
	}

	lineSet := toSet(monitoredLines)
	stopSet := toSet(monitoredStops)

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
		for _, p := range m.Points {
			if stopSet[p] {
				monitored = true
			}
			if state == gtfs.StateReady && snap != nil {
				if s, ok := snap.Stops[p]; ok {
					stopNames = append(stopNames, s.Name)
				}
			}
		}
		out = append(out, domain.ServiceMessage{
			Text: m.Text, AffectedLines: m.Lines, AffectedStopIDs: m.Points,
			AffectedStopNames: stopNames, Priority: m.Priority, Type: m.Type, IsMonitored: monitored,
		})
	}
	return out, nil
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, i := range items {
		s[i] = true
	}
	return s
}

// Route implements provider.RouteProvider, reading purely from GTFS.
func (a *Adapter) Route(ctx context.Context, line string) ([]provider.RouteVariantView, error) {
	snap, state := a.Feed.Current()
	if state != gtfs.StateReady || snap == nil {
		return nil, fmt.Errorf("stib: feed not ready")
	}
	var out []provider.RouteVariantView
	for _, v := range snap.Variants {
		if v.RouteID != line {
			continue
		}
		view := provider.RouteVariantView{
			DirectionID: v.DirectionID, Headsign: v.Headsign, StopIDs: v.StopIDs,
		}
		if len(v.StopIDs) > 0 {
			if s, ok := snap.Stops[v.StopIDs[len(v.StopIDs)-1]]; ok {
				view.Destination = s.Name
			}
		}
		if shape, ok := snap.Shapes[v.ShapeID]; ok {
			view.Shape = shape.Points2D()
		}
		out = append(out, view)
	}
	return out, nil
}

// Colors implements provider.ColorsProvider; STIB's API does not carry
// colors so this falls back to GTFS route_color/route_text_color, with
// the spec.md §7 default when absent.
func (a *Adapter) Colors(ctx context.Context, line string) (provider.Colors, error) {
	snap, state := a.Feed.Current()
	if state != gtfs.StateReady || snap == nil {
		return provider.Colors{Background: "000000", Text: "FFFFFF"}, nil
	}
	route, ok := snap.Routes[line]
	if !ok || route.Color == "" {
		return provider.Colors{Background: "000000", BackgroundBorder: "000000", Text: "FFFFFF", TextBorder: "FFFFFF"}, nil
	}
	textColor := route.TextColor
	if textColor == "" {
		textColor = "FFFFFF"
	}
	return provider.Colors{Background: route.Color, BackgroundBorder: route.Color, Text: textColor, TextBorder: textColor}, nil
}

// NearestStop implements provider.NearestStopProvider via C12's StopIndex.
func (a *Adapter) NearestStop(ctx context.Context, lat, lon float64, limit int, maxDistanceKM float64) ([]*domain.Stop, error) {
	if a.StopIndex == nil {
		return nil, fmt.Errorf("stib: stop index not built yet")
	}
	results, err := a.StopIndex.Nearest(lat, lon, maxDistanceKM*1000, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Stop, len(results))
	for i, r := range results {
		out[i] = r.Stop
	}
	return out, nil
}

// StopByName implements provider.StopByNameProvider via C12's StopIndex.
func (a *Adapter) StopByName(ctx context.Context, query string, limit int) ([]*domain.Stop, error) {
	if a.StopIndex == nil {
		return nil, fmt.Errorf("stib: stop index not built yet")
	}
	return a.StopIndex.SearchByName(query, limit), nil
}

// Package sncb adapts Belgian rail (SNCB/NMBS): waiting times and vehicle
// positions sourced from a GTFS-Realtime feed (TripUpdate + VehiclePosition
// entities) rather than a bespoke JSON API, making it the adapter that
// exercises the protobuf dependency the rest of the pack pulls in. Grounded
// on kuitang-nyc-subway/backend/main.go's fetchGTFS/proto.Unmarshal pattern
// and original_source/app/transit_providers/be/sncb.
package sncb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"transitd/internal/apperr"
	"transitd/internal/domain"
	"transitd/internal/gtfs"
	"transitd/internal/provider"
	"transitd/internal/vehicleposition"
)

type Adapter struct {
	*provider.Base
}

func New(base *provider.Base) *Adapter {
	return &Adapter{Base: base}
}

var (
	_ provider.Adapter             = (*Adapter)(nil)
	_ provider.WaitingTimesProvider = (*Adapter)(nil)
	_ provider.VehiclesProvider     = (*Adapter)(nil)
)

// fetchFeed performs the rate-limited GET and protobuf-decodes the result,
// the GTFS-RT analog of provider.Base.GetJSON (which assumes a JSON body).
func (a *Adapter) fetchFeed(ctx context.Context, url string) (*gtfsrt.FeedMessage, error) {
	if wait := a.Limiter.BeforeCall(); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.KindClientDisconnected, "request cancelled while waiting for rate limiter", ctx.Err())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "build request", err)
	}
	if a.Cfg.GTFSRealtimeAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.Cfg.GTFSRealtimeAPIKey)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "upstream GTFS-RT request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindUpstreamSchema, "GTFS-RT feed returned unexpected status")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "read GTFS-RT body", err)
	}

	var feed gtfsrt.FeedMessage
	if err := proto.Unmarshal(body, &feed); err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedFeed, "decode GTFS-RT feed", err)
	}
	return &feed, nil
}

// WaitingTimes implements provider.WaitingTimesProvider by scanning
// TripUpdate entities for StopTimeUpdates at the requested stop.
func (a *Adapter) WaitingTimes(ctx context.Context, stopID string) (provider.WaitingTimesResult, error) {
	if stopID == "" {
		return provider.WaitingTimesResult{}, fmt.Errorf("sncb: stop_id required")
	}

	feed, err := a.fetchFeed(ctx, a.Cfg.APIURL+"/gtfs/realtime/tripupdates")
	if err != nil {
		return provider.WaitingTimesResult{}, err
	}

	snap, state := a.Feed.Current()
	var coords *domain.Coordinates
	name := stopID
	if state == gtfs.StateReady && snap != nil {
		if s, ok := snap.Stops[stopID]; ok {
			name = s.Name
			coords = s.Coordinates
		}
	}

	lines := make(map[string]map[string][]domain.WaitingTime)
	now := time.Now()
	for _, ent := range feed.GetEntity() {
		tu := ent.GetTripUpdate()
		if tu == nil {
			continue
		}
		routeID := tu.GetTrip().GetRouteId()
		var headsign string
		if state == gtfs.StateReady && snap != nil {
			if t, ok := snap.Trips[tu.GetTrip().GetTripId()]; ok {
				headsign = t.Headsign
			}
		}

		for _, stu := range tu.GetStopTimeUpdate() {
			if stu.GetStopId() != stopID {
				continue
			}
			var arrivalUnix int64
			var delay *int
			if arr := stu.GetArrival(); arr != nil {
				arrivalUnix = arr.GetTime()
				if arr.Delay != nil {
					d := int(arr.GetDelay())
					delay = &d
				}
			}
			if arrivalUnix == 0 {
				continue
			}
			arrivalTime := time.Unix(arrivalUnix, 0)
			wt := domain.WaitingTime{
				Provider: "sncb", StopID: stopID, RouteID: routeID, Headsign: headsign,
				RealtimeTime: arrivalTime.Format("15:04"), IsRealtime: true, DelaySeconds: delay,
				MinutesUntil: int(arrivalTime.Sub(now).Minutes()),
			}
			if lines[routeID] == nil {
				lines[routeID] = make(map[string][]domain.WaitingTime)
			}
			lines[routeID][headsign] = append(lines[routeID][headsign], wt)
		}
	}

	return provider.WaitingTimesResult{
		StopsData: map[string]provider.StopWaitingTimes{
			stopID: {Name: name, Coordinates: coords, Metadata: &domain.Metadata{Source: "api"}, Lines: lines},
		},
	}, nil
}

// Vehicles implements provider.VehiclesProvider from VehiclePosition
// entities, reducing the feed's stop_id+current_status to C8's next-stop
// telemetry shape. GTFS-RT VehiclePosition carries no distance-to-next
// field, so DistanceToNextMeters is left at zero: the reconstructor then
// places the vehicle at the next stop's vertex exactly, the correct
// degenerate case when no progress-along-segment figure is available.
// RawPosition is still attached to the telemetry for downstream debugging
// even though the reconstructor itself only consumes next-stop+distance.
func (a *Adapter) Vehicles(ctx context.Context, line, direction string) ([]domain.VehiclePosition, error) {
	feed, err := a.fetchFeed(ctx, a.Cfg.APIURL+"/gtfs/realtime/vehiclepositions")
	if err != nil {
		return nil, err
	}

	snap, state := a.Feed.Current()
	if state != gtfs.StateReady || snap == nil {
		return nil, nil
	}

	var positions []domain.VehiclePosition
	for _, ent := range feed.GetEntity() {
		vp := ent.GetVehicle()
		if vp == nil {
			continue
		}
		trip := snap.Trips[vp.GetTrip().GetTripId()]
		if trip == nil || trip.RouteID != line && line != "" {
			continue
		}
		if trip == nil {
			continue
		}

		variant := findVariantForTrip(snap, trip)
		if variant == nil {
			continue
		}
		if direction != "" && variant.Headsign != direction {
			continue
		}

		stopLookup := vehicleposition.StopLookup(func(id string) (*domain.Coordinates, bool) {
			s, ok := snap.Stops[id]
			if !ok {
				return nil, false
			}
			return s.Coordinates, s.Coordinates != nil
		})

		var rawPos *domain.Coordinates
		if pos := vp.GetPosition(); pos != nil {
			rawPos = &domain.Coordinates{Lat: float64(pos.GetLatitude()), Lon: float64(pos.GetLongitude())}
		}

		telemetry := domain.VehicleTelemetry{
			Provider: "sncb", Line: trip.RouteID, DirectionKey: variant.Headsign,
			NextStopID: vp.GetStopId(), RawPosition: rawPos,
		}
		shape := snap.Shapes[variant.ShapeID]
		pos := vehicleposition.Reconstruct(variant, shape, stopLookup, telemetry)
		positions = append(positions, *pos)
	}
	return positions, nil
}

func findVariantForTrip(snap *gtfs.Snapshot, trip *domain.Trip) *domain.RouteVariant {
	for i := range snap.Variants {
		v := &snap.Variants[i]
		if v.RouteID != trip.RouteID {
			continue
		}
		if trip.DirectionID != nil && v.DirectionID == *trip.DirectionID {
			return v
		}
	}
	return nil
}

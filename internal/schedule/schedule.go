// Package schedule implements the Schedule Query Engine (C11): all
// operations are read-only against an immutable gtfs.Snapshot, grounded on
// the teacher's store.go read-path (borrowed references, no locking needed
// once a snapshot is published) and tidbyt-gtfs's trip/stop model for the
// stop-sequence walking logic.
package schedule

import (
	"sort"
	"time"

	"transitd/internal/apperr"
	"transitd/internal/domain"
	"transitd/internal/gtfs"
)

// Engine answers schedule queries against a single feed snapshot.
type Engine struct {
	snap *gtfs.Snapshot
}

func NewEngine(snap *gtfs.Snapshot) *Engine {
	return &Engine{snap: snap}
}

// TripSegment is one result of FindTripsBetween.
type TripSegment struct {
	TripID      string
	RouteID     string
	Stops       []domain.StopTime
	Reversed    bool
	DurationSec int
}

// FindTripsBetween implements spec.md §4.11: for every trip whose
// stop_times include both startID and endID with seq(start) < seq(end) (or
// the reverse, flagged via Reversed), filtered by date if supplied, return
// the stop sub-sequence and duration.
func (e *Engine) FindTripsBetween(startID, endID string, date *time.Time) []TripSegment {
	var results []TripSegment

	for tripID, sts := range e.snap.StopTimesByTrip {
		trip := e.snap.Trips[tripID]
		if trip == nil {
			continue
		}
		if date != nil && !e.snap.OperatesOn(trip.ServiceID, *date) {
			continue
		}

		startSeq, endSeq := -1, -1
		for i, st := range sts {
			if st.StopID == startID && startSeq == -1 {
				startSeq = i
			}
			if st.StopID == endID {
				endSeq = i
			}
		}
		if startSeq == -1 || endSeq == -1 || startSeq == endSeq {
			continue
		}

		reversed := startSeq > endSeq
		lo, hi := startSeq, endSeq
		if reversed {
			lo, hi = endSeq, startSeq
		}
		segment := sts[lo : hi+1]
		duration := segment[len(segment)-1].Arrival.TotalSeconds() - segment[0].Departure.TotalSeconds()

		results = append(results, TripSegment{
			TripID: tripID, RouteID: trip.RouteID, Stops: segment,
			Reversed: reversed, DurationSec: duration,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].TripID < results[j].TripID })
	return results
}

// StationsInBBox implements spec.md §4.11: linear scan, optionally
// count-only.
func (e *Engine) StationsInBBox(minLat, minLon, maxLat, maxLon float64, countOnly bool) ([]*domain.Stop, int) {
	var out []*domain.Stop
	count := 0
	for _, s := range e.snap.Stops {
		if s.Coordinates == nil {
			continue
		}
		if s.Coordinates.Lat < minLat || s.Coordinates.Lat > maxLat ||
			s.Coordinates.Lon < minLon || s.Coordinates.Lon > maxLon {
			continue
		}
		count++
		if !countOnly {
			out = append(out, s)
		}
	}
	return out, count
}

// RoutesThroughStop returns the set of route IDs with a trip visiting stopID.
func (e *Engine) RoutesThroughStop(stopID string) map[string]bool {
	routes := make(map[string]bool)
	for tripID, sts := range e.snap.StopTimesByTrip {
		for _, st := range sts {
			if st.StopID == stopID {
				if trip := e.snap.Trips[tripID]; trip != nil {
					routes[trip.RouteID] = true
				}
				break
			}
		}
	}
	return routes
}

// DestinationsFrom returns every stop reachable forward (later stop_sequence)
// from stopID along any trip through it.
func (e *Engine) DestinationsFrom(stopID string) []*domain.Stop {
	return e.reachableStops(stopID, true)
}

// OriginsTo returns every stop reachable backward (earlier stop_sequence)
// to stopID along any trip through it.
func (e *Engine) OriginsTo(stopID string) []*domain.Stop {
	return e.reachableStops(stopID, false)
}

func (e *Engine) reachableStops(stopID string, forward bool) []*domain.Stop {
	seen := make(map[string]bool)
	var out []*domain.Stop
	for _, sts := range e.snap.StopTimesByTrip {
		idx := -1
		for i, st := range sts {
			if st.StopID == stopID {
				idx = i
				break
			}
		}
		if idx == -1 {
			continue
		}
		var span []domain.StopTime
		if forward {
			span = sts[idx+1:]
		} else if idx > 0 {
			span = sts[:idx]
		}
		for _, st := range span {
			if seen[st.StopID] {
				continue
			}
			seen[st.StopID] = true
			if s, ok := e.snap.Stops[st.StopID]; ok {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RouteSummary is a `routes_serving` result entry, spec.md §4.11.
type RouteSummary struct {
	RouteID            string
	ShortName          string
	LongName           string
	FirstStopName      string
	LastStopName       string
	DirectionID        int
	ServiceDaysString  string
}

// RoutesServing implements spec.md §4.11.
func (e *Engine) RoutesServing(stopID string) []RouteSummary {
	routeIDs := e.RoutesThroughStop(stopID)

	var out []RouteSummary
	for _, v := range e.snap.Variants {
		if !routeIDs[v.RouteID] {
			continue
		}
		route := e.snap.Routes[v.RouteID]
		if route == nil || len(v.StopIDs) == 0 {
			continue
		}
		first := e.snap.Stops[v.StopIDs[0]]
		last := e.snap.Stops[v.StopIDs[len(v.StopIDs)-1]]
		summary := RouteSummary{
			RouteID: v.RouteID, ShortName: route.ShortName, LongName: route.LongName,
			DirectionID: v.DirectionID,
			ServiceDaysString: gtfs.ServiceDaysString(e.snap.ValidCalendarDays(v.RouteID)),
		}
		if first != nil {
			summary.FirstStopName = first.Name
		}
		if last != nil {
			summary.LastStopName = last.Name
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })
	return out
}

// ScheduledArrival is one entry of WaitingTimesFromSchedule, pre-rendering.
type ScheduledArrival struct {
	RouteID      string
	Headsign     string
	Arrival      domain.GTFSTime
	MinutesUntil int
}

// WaitingTimesFromSchedule implements spec.md §4.11: compute minutes_until
// from scheduled arrival times, returned as one flat list sorted ascending by
// minutes_until and limited to limit entries; entries are not grouped by
// route or headsign. Agency timezone drives "now";
// missing timezone defaults to UTC with a warning via the bool return.
func (e *Engine) WaitingTimesFromSchedule(stopID string, at time.Time, routeID string, limit int) ([]ScheduledArrival, bool) {
	loc := time.UTC
	usedUTCFallback := e.snap.AgencyTimezone == ""
	if !usedUTCFallback {
		if l, err := time.LoadLocation(e.snap.AgencyTimezone); err == nil {
			loc = l
		} else {
			usedUTCFallback = true
		}
	}
	nowLocal := at.In(loc)
	nowSeconds := nowLocal.Hour()*3600 + nowLocal.Minute()*60 + nowLocal.Second()

	var out []ScheduledArrival
	for tripID, sts := range e.snap.StopTimesByTrip {
		trip := e.snap.Trips[tripID]
		if trip == nil {
			continue
		}
		if routeID != "" && trip.RouteID != routeID {
			continue
		}
		for _, st := range sts {
			if st.StopID != stopID {
				continue
			}
			minutesUntil := (st.Arrival.TotalSeconds() - nowSeconds) / 60
			if minutesUntil < -2 {
				continue
			}
			out = append(out, ScheduledArrival{
				RouteID: trip.RouteID, Headsign: trip.Headsign,
				Arrival: st.Arrival, MinutesUntil: minutesUntil,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MinutesUntil < out[j].MinutesUntil })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, usedUTCFallback
}

// Ready reports whether the engine has a usable snapshot, for the
// "feed not yet loaded" 503 surfaced by the HTTP layer.
func (e *Engine) Ready() error {
	if e.snap == nil {
		return apperr.New(apperr.KindNotFound, "feed not yet loaded")
	}
	return nil
}

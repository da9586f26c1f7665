package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitd/internal/domain"
	"transitd/internal/gtfs"
)

// buildSnapshot constructs a minimal feed exercising the midnight-crossing
// scenario from spec.md §8.5: trip departs 23:50:00, arrives 25:10:00.
func buildSnapshot(t *testing.T) *gtfs.Snapshot {
	t.Helper()
	snap := &gtfs.Snapshot{
		Stops: map[string]*domain.Stop{
			"A": {ID: "A", Name: "Start", Coordinates: &domain.Coordinates{Lat: 50.0, Lon: 4.0}},
			"B": {ID: "B", Name: "End", Coordinates: &domain.Coordinates{Lat: 50.1, Lon: 4.1}},
		},
		Routes: map[string]*domain.Route{
			"r1": {ID: "r1", ShortName: "N1", TripIDs: []string{"t1"}},
		},
		Trips: map[string]*domain.Trip{
			"t1": {ID: "t1", RouteID: "r1", ServiceID: "daily", Headsign: "End"},
		},
		TripsByRoute: map[string][]string{"r1": {"t1"}},
		StopTimesByTrip: map[string][]domain.StopTime{
			"t1": {
				{StopID: "A", StopSequence: 0, Arrival: domain.GTFSTime{Hours: 23, Minutes: 50}, Departure: domain.GTFSTime{Hours: 23, Minutes: 50}},
				{StopID: "B", StopSequence: 1, Arrival: domain.GTFSTime{Hours: 25, Minutes: 10}, Departure: domain.GTFSTime{Hours: 25, Minutes: 10}},
			},
		},
		Calendars: map[string]*domain.Calendar{
			"daily": {ServiceID: "daily", Weekday: [7]bool{true, true, true, true, true, true, true}, StartDate: "20260101", EndDate: "20261231"},
		},
		CalendarDates: map[string][]domain.CalendarDate{},
		Variants: []domain.RouteVariant{
			{RouteID: "r1", DirectionID: 0, StopIDs: []string{"A", "B"}, Headsign: "End", TripID: "t1"},
		},
	}
	snap.Trips["t1"].StopTimes = snap.StopTimesByTrip["t1"]
	return snap
}

func TestFindTripsBetweenMidnightCrossing(t *testing.T) {
	snap := buildSnapshot(t)
	e := NewEngine(snap)

	results := e.FindTripsBetween("A", "B", nil)
	require.Len(t, results, 1)

	seg := results[0]
	assert.False(t, seg.Reversed)
	assert.Equal(t, 80*60, seg.DurationSec) // 1h20m
}

func TestFindTripsBetweenReversedDirection(t *testing.T) {
	snap := buildSnapshot(t)
	e := NewEngine(snap)

	results := e.FindTripsBetween("B", "A", nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Reversed)
}

func TestStationsInBBoxCountMatchesListLength(t *testing.T) {
	snap := buildSnapshot(t)
	e := NewEngine(snap)

	list, count := e.StationsInBBox(49.0, 3.0, 51.0, 5.0, false)
	_, countOnly := e.StationsInBBox(49.0, 3.0, 51.0, 5.0, true)

	assert.Equal(t, count, countOnly)
	assert.Len(t, list, count)
	for _, s := range list {
		assert.GreaterOrEqual(t, s.Coordinates.Lat, 49.0)
		assert.LessOrEqual(t, s.Coordinates.Lat, 51.0)
	}
}

func TestRoutesServingIncludesServiceDays(t *testing.T) {
	snap := buildSnapshot(t)
	e := NewEngine(snap)

	summaries := e.RoutesServing("A")
	require.Len(t, summaries, 1)
	assert.Equal(t, "r1", summaries[0].RouteID)
	assert.NotEmpty(t, summaries[0].ServiceDaysString)
}

func TestWaitingTimesFromScheduleMidnightRendersWallClock(t *testing.T) {
	snap := buildSnapshot(t)
	e := NewEngine(snap)

	// "now" is 23:55 the same day the trip departs; stop B's 25:10 arrival
	// should render 01:10 the next calendar day via GTFSTime.WallClock.
	now := time.Date(2026, 7, 29, 23, 55, 0, 0, time.UTC)
	arrivals, fellBackToUTC := e.WaitingTimesFromSchedule("B", now, "", 10)

	require.Len(t, arrivals, 1)
	assert.Equal(t, "01:10", arrivals[0].Arrival.WallClock())
	assert.True(t, fellBackToUTC) // AgencyTimezone is unset in this fixture
}

func TestWaitingTimesFromScheduleDropsStaleArrivals(t *testing.T) {
	snap := buildSnapshot(t)
	e := NewEngine(snap)

	// "now" is well past both scheduled times.
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	arrivals, _ := e.WaitingTimesFromSchedule("A", now, "", 10)
	assert.Empty(t, arrivals)
}

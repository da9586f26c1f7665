package gtfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"transitd/internal/domain"
)

func buildSampleSnapshot() *Snapshot {
	snap := &Snapshot{
		Hash:   "deadbeef",
		Stops:  map[string]*domain.Stop{},
		Routes: map[string]*domain.Route{},
		Trips:  map[string]*domain.Trip{},
		Shapes: map[string]*domain.Shape{},

		TripsByRoute:    map[string][]string{},
		StopTimesByTrip: map[string][]domain.StopTime{},
		Calendars:       map[string]*domain.Calendar{},
		CalendarDates:   map[string][]domain.CalendarDate{},

		AgencyTimezone: "Europe/Brussels",
	}

	snap.Stops["S1"] = &domain.Stop{ID: "S1", Name: "Gare Centrale", Coordinates: &domain.Coordinates{Lat: 50.845, Lon: 4.357}}
	snap.Stops["S2"] = &domain.Stop{ID: "S2", Name: "Gare du Midi", Coordinates: &domain.Coordinates{Lat: 50.835, Lon: 4.336}}
	snap.Routes["R1"] = &domain.Route{ID: "R1", ShortName: "1", Type: domain.RouteTypeTram, Color: "FF0000"}

	for i := 0; i < 100; i++ {
		tripID := "T" + string(rune('A'+i%26)) + string(rune('0'+i/26))
		snap.Trips[tripID] = &domain.Trip{ID: tripID, RouteID: "R1", ServiceID: "WEEKDAY"}
		snap.TripsByRoute["R1"] = append(snap.TripsByRoute["R1"], tripID)
		stopTimes := []domain.StopTime{
			{StopID: "S1", StopSequence: 1, Departure: domain.GTFSTime{Hours: 8, Minutes: 0}},
			{StopID: "S2", StopSequence: 2, Arrival: domain.GTFSTime{Hours: 8, Minutes: 10}},
		}
		snap.StopTimesByTrip[tripID] = stopTimes
		snap.Trips[tripID].StopTimes = stopTimes
	}

	snap.Calendars["WEEKDAY"] = &domain.Calendar{
		ServiceID: "WEEKDAY", Weekday: [7]bool{true, true, true, true, true, false, false},
		StartDate: "20260101", EndDate: "20261231",
	}
	snap.Variants = []domain.RouteVariant{
		{RouteID: "R1", DirectionID: 0, StopIDs: []string{"S1", "S2"}, Headsign: "Midi"},
	}
	return snap
}

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	snap := buildSampleSnapshot()

	blob, err := EncodeSnapshot(snap)
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(blob)
	require.NoError(t, err)

	require.Len(t, decoded.Stops, len(snap.Stops))
	require.Len(t, decoded.Routes, len(snap.Routes))
	require.Len(t, decoded.Trips, len(snap.Trips))
	require.Len(t, decoded.Variants, len(snap.Variants))

	require.Equal(t, snap.Stops["S1"].Name, decoded.Stops["S1"].Name)
	require.Equal(t, snap.Stops["S1"].Coordinates.Lat, decoded.Stops["S1"].Coordinates.Lat)
	require.Equal(t, snap.Routes["R1"].Color, decoded.Routes["R1"].Color)

	sample, ok := decoded.StopTimesByTrip["TA0"]
	require.True(t, ok)
	require.Len(t, sample, 2)
	require.Equal(t, "S1", sample[0].StopID)
	require.Equal(t, 8, sample[1].Arrival.Hours)
}

func TestHashDirDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stops.txt", "stop_id,stop_name,stop_lat,stop_lon\nS1,Test,50.8,4.3\n")
	writeFile(t, dir, "routes.txt", "route_id,route_short_name,route_type\nR1,1,0\n")

	h1, err := HashDir(dir)
	require.NoError(t, err)
	h2, err := HashDir(dir)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

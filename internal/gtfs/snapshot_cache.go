package gtfs

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"transitd/internal/domain"
)

// CacheVersion is prefixed to the hash input so a future change to the
// parsing/index logic invalidates every existing snapshot, per spec.md §4.4
// step 1.
const CacheVersion = "transitd-gtfs-v1"

// gtfsFileOrder is the fixed order files are hashed in, so the hash is
// stable across directory-listing order.
var gtfsFileOrder = []string{
	"agency.txt", "stops.txt", "routes.txt", "trips.txt", "stop_times.txt",
	"calendar.txt", "calendar_dates.txt", "shapes.txt", "translations.txt", "feed_info.txt",
}

// HashDir computes the SHA-256 cache key over the concatenation of the
// present GTFS files in gtfsFileOrder, prefixed with CacheVersion.
func HashDir(dir string) (string, error) {
	h := sha256.New()
	h.Write([]byte(CacheVersion))

	for _, name := range gtfsFileOrder {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", errors.Wrapf(err, "gtfs: hash %s", name)
		}
		_, copyErr := io.Copy(h, f)
		f.Close()
		if copyErr != nil {
			return "", errors.Wrapf(copyErr, "gtfs: hash %s", name)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// gobSnapshot is the flattened, gob-encodable mirror of Snapshot: gob
// cannot encode map[string]*T with pointer cycles safely across versions,
// so values are stored densely and indices rebuilt on load. This mirrors
// the teacher's parse_cache.go gob+gzip snapshot shape.
type gobSnapshot struct {
	Hash           string
	Stops          []gobStop
	Routes         []gobRoute
	Trips          []gobTrip
	Shapes         []gobShape
	Calendars      []gobCalendar
	CalendarDates  []gobCalendarDate
	Variants       []gobVariant
	AgencyTimezone string
}

type gobStop struct {
	ID, Name, ParentStation, PlatformCode, Timezone string
	HasCoords                                       bool
	Lat, Lon                                        float64
	LocationType                                    int
	Translations                                    map[string]string
}

type gobRoute struct {
	ID, ShortName, LongName, Color, TextColor string
	Type                                      int
	TripIDs                                   []string
}

type gobTrip struct {
	ID, RouteID, ServiceID, Headsign, ShapeID string
	HasDirection                              bool
	DirectionID                               int
	StopTimes                                 []gobStopTime
}

type gobStopTime struct {
	StopID                       string
	StopSequence                 int
	ArrH, ArrM, ArrS, DepH, DepM, DepS int
}

type gobShape struct {
	ID     string
	Points []gobShapePoint
}

type gobShapePoint struct {
	Lat, Lon float64
	Sequence int
}

type gobCalendar struct {
	ServiceID string
	Weekday   [7]bool
	StartDate, EndDate string
}

type gobCalendarDate struct {
	ServiceID, Date string
	Type            int
}

type gobVariant struct {
	RouteID     string
	DirectionID int
	StopIDs     []string
	ShapeID     string
	Headsign    string
	TripID      string
}

func toGob(s *Snapshot) *gobSnapshot {
	g := &gobSnapshot{Hash: s.Hash, AgencyTimezone: s.AgencyTimezone}

	stopIDs := sortedKeys(s.Stops)
	for _, id := range stopIDs {
		st := s.Stops[id]
		gs := gobStop{
			ID: st.ID, Name: st.Name, ParentStation: st.ParentStation,
			PlatformCode: st.PlatformCode, Timezone: st.Timezone,
			LocationType: int(st.LocationType), Translations: st.Translations,
		}
		if st.Coordinates != nil {
			gs.HasCoords = true
			gs.Lat, gs.Lon = st.Coordinates.Lat, st.Coordinates.Lon
		}
		g.Stops = append(g.Stops, gs)
	}

	for _, id := range sortedKeys(s.Routes) {
		r := s.Routes[id]
		g.Routes = append(g.Routes, gobRoute{
			ID: r.ID, ShortName: r.ShortName, LongName: r.LongName,
			Color: r.Color, TextColor: r.TextColor, Type: int(r.Type), TripIDs: r.TripIDs,
		})
	}

	for _, id := range sortedKeys(s.Trips) {
		t := s.Trips[id]
		gt := gobTrip{ID: t.ID, RouteID: t.RouteID, ServiceID: t.ServiceID, Headsign: t.Headsign, ShapeID: t.ShapeID}
		if t.DirectionID != nil {
			gt.HasDirection = true
			gt.DirectionID = *t.DirectionID
		}
		for _, st := range t.StopTimes {
			gt.StopTimes = append(gt.StopTimes, gobStopTime{
				StopID: st.StopID, StopSequence: st.StopSequence,
				ArrH: st.Arrival.Hours, ArrM: st.Arrival.Minutes, ArrS: st.Arrival.Seconds,
				DepH: st.Departure.Hours, DepM: st.Departure.Minutes, DepS: st.Departure.Seconds,
			})
		}
		g.Trips = append(g.Trips, gt)
	}

	for _, id := range sortedKeys(s.Shapes) {
		sh := s.Shapes[id]
		var pts []gobShapePoint
		for _, p := range sh.Points {
			pts = append(pts, gobShapePoint{Lat: p.Lat, Lon: p.Lon, Sequence: p.Sequence})
		}
		g.Shapes = append(g.Shapes, gobShape{ID: sh.ID, Points: pts})
	}

	for _, id := range sortedKeys(s.Calendars) {
		c := s.Calendars[id]
		g.Calendars = append(g.Calendars, gobCalendar{
			ServiceID: c.ServiceID, Weekday: c.Weekday, StartDate: c.StartDate, EndDate: c.EndDate,
		})
	}

	cdKeys := make([]string, 0, len(s.CalendarDates))
	for k := range s.CalendarDates {
		cdKeys = append(cdKeys, k)
	}
	sort.Strings(cdKeys)
	for _, k := range cdKeys {
		for _, cd := range s.CalendarDates[k] {
			g.CalendarDates = append(g.CalendarDates, gobCalendarDate{ServiceID: cd.ServiceID, Date: cd.Date, Type: int(cd.Type)})
		}
	}

	for _, v := range s.Variants {
		g.Variants = append(g.Variants, gobVariant{
			RouteID: v.RouteID, DirectionID: v.DirectionID, StopIDs: v.StopIDs, ShapeID: v.ShapeID,
			Headsign: v.Headsign, TripID: v.TripID,
		})
	}

	return g
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fromGob(g *gobSnapshot) *Snapshot {
	s := &Snapshot{
		Hash:            g.Hash,
		AgencyTimezone:  g.AgencyTimezone,
		Stops:           make(map[string]*domain.Stop),
		Routes:          make(map[string]*domain.Route),
		Trips:           make(map[string]*domain.Trip),
		Shapes:          make(map[string]*domain.Shape),
		TripsByRoute:    make(map[string][]string),
		StopTimesByTrip: make(map[string][]domain.StopTime),
		Calendars:       make(map[string]*domain.Calendar),
		CalendarDates:   make(map[string][]domain.CalendarDate),
		Variants:        make([]domain.RouteVariant, 0, len(g.Variants)),
	}

	for _, gs := range g.Stops {
		st := &domain.Stop{
			ID: gs.ID, Name: gs.Name, ParentStation: gs.ParentStation,
			PlatformCode: gs.PlatformCode, Timezone: gs.Timezone,
			LocationType: domain.LocationType(gs.LocationType), Translations: gs.Translations,
		}
		if gs.HasCoords {
			st.Coordinates = &domain.Coordinates{Lat: gs.Lat, Lon: gs.Lon}
		}
		s.Stops[st.ID] = st
	}

	for _, gr := range g.Routes {
		s.Routes[gr.ID] = &domain.Route{
			ID: gr.ID, ShortName: gr.ShortName, LongName: gr.LongName,
			Color: gr.Color, TextColor: gr.TextColor, Type: domain.RouteType(gr.Type), TripIDs: gr.TripIDs,
		}
	}

	for _, gt := range g.Trips {
		t := &domain.Trip{ID: gt.ID, RouteID: gt.RouteID, ServiceID: gt.ServiceID, Headsign: gt.Headsign, ShapeID: gt.ShapeID}
		if gt.HasDirection {
			d := gt.DirectionID
			t.DirectionID = &d
		}
		for _, gst := range gt.StopTimes {
			t.StopTimes = append(t.StopTimes, domain.StopTime{
				StopID: gst.StopID, StopSequence: gst.StopSequence,
				Arrival:   domain.GTFSTime{Hours: gst.ArrH, Minutes: gst.ArrM, Seconds: gst.ArrS},
				Departure: domain.GTFSTime{Hours: gst.DepH, Minutes: gst.DepM, Seconds: gst.DepS},
			})
		}
		s.Trips[t.ID] = t
		s.TripsByRoute[t.RouteID] = append(s.TripsByRoute[t.RouteID], t.ID)
		s.StopTimesByTrip[t.ID] = t.StopTimes
	}

	for _, gsh := range g.Shapes {
		var pts []domain.ShapePoint
		for _, p := range gsh.Points {
			pts = append(pts, domain.ShapePoint{Lat: p.Lat, Lon: p.Lon, Sequence: p.Sequence})
		}
		s.Shapes[gsh.ID] = &domain.Shape{ID: gsh.ID, Points: pts}
	}

	for _, gc := range g.Calendars {
		s.Calendars[gc.ServiceID] = &domain.Calendar{
			ServiceID: gc.ServiceID, Weekday: gc.Weekday, StartDate: gc.StartDate, EndDate: gc.EndDate,
		}
	}

	for _, gcd := range g.CalendarDates {
		cd := domain.CalendarDate{ServiceID: gcd.ServiceID, Date: gcd.Date, Type: domain.ExceptionType(gcd.Type)}
		s.CalendarDates[cd.ServiceID] = append(s.CalendarDates[cd.ServiceID], cd)
	}

	for _, gv := range g.Variants {
		s.Variants = append(s.Variants, domain.RouteVariant{
			RouteID: gv.RouteID, DirectionID: gv.DirectionID, StopIDs: gv.StopIDs,
			ShapeID: gv.ShapeID, Headsign: gv.Headsign, TripID: gv.TripID,
		})
	}

	return s
}

// EncodeSnapshot serializes a Snapshot as gob+gzip, matching the teacher's
// parse_cache.go compression choice (gzip over the Go-native gob encoding,
// rather than spec.md §4.4's MessagePack+LZMA suggestion -- "or equivalent
// length-prefixed binary" is satisfied by gob; the compressor is the
// standard library's compress/gzip).
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(toGob(s)); err != nil {
		return nil, errors.Wrap(err, "gtfs: encode snapshot")
	}
	if err := gz.Close(); err != nil {
		return nil, errors.Wrap(err, "gtfs: flush snapshot gzip")
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "gtfs: open snapshot gzip")
	}
	defer gz.Close()

	var g gobSnapshot
	if err := gob.NewDecoder(gz).Decode(&g); err != nil {
		return nil, errors.Wrap(err, "gtfs: decode snapshot")
	}
	return fromGob(&g), nil
}

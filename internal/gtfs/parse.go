package gtfs

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"transitd/internal/apperr"
	"transitd/internal/domain"
)

// BOM-stripping, lazily-quoted CSV reading registered once per tidbyt-gtfs's
// parse/parse.go convention, rather than per file.
func init() {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})
}

// requiredFiles are the GTFS tables without which a bundle cannot be
// parsed at all, per spec.md §4.4. calendar.txt/calendar_dates.txt are
// checked separately: at least one of the two is required.
var requiredFiles = []string{"stops.txt", "routes.txt", "trips.txt", "stop_times.txt"}

// ParseDir parses a directory of extracted GTFS CSV files into a Snapshot.
// BOM-stripping and lenient CSV reading follow tidbyt-gtfs's
// parse/parse.go (gocsv.SetCSVReader + bom.NewReader). Missing required
// files fail here with MalformedFeed; the CACHE_VERSION-prefixed hash
// belongs to the caller (Loader), not this function.
func ParseDir(dir string, log *slog.Logger) (*Snapshot, error) {
	for _, f := range requiredFiles {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			return nil, apperr.New(apperr.KindMalformedFeed, "missing required GTFS file: "+f)
		}
	}
	hasCalendar := fileExists(filepath.Join(dir, "calendar.txt"))
	hasCalendarDates := fileExists(filepath.Join(dir, "calendar_dates.txt"))
	if !hasCalendar && !hasCalendarDates {
		return nil, apperr.New(apperr.KindMalformedFeed, "neither calendar.txt nor calendar_dates.txt present")
	}

	snap := &Snapshot{
		Stops:           make(map[string]*domain.Stop),
		Routes:          make(map[string]*domain.Route),
		Trips:           make(map[string]*domain.Trip),
		Shapes:          make(map[string]*domain.Shape),
		TripsByRoute:    make(map[string][]string),
		StopTimesByTrip: make(map[string][]domain.StopTime),
		Calendars:       make(map[string]*domain.Calendar),
		CalendarDates:   make(map[string][]domain.CalendarDate),
	}

	if err := parseStops(dir, snap); err != nil {
		return nil, err
	}
	if err := parseRoutes(dir, snap); err != nil {
		return nil, err
	}
	if err := parseTrips(dir, snap); err != nil {
		return nil, err
	}
	if err := parseStopTimes(dir, snap, log); err != nil {
		return nil, err
	}
	if hasCalendar {
		if err := parseCalendar(dir, snap); err != nil {
			return nil, err
		}
	}
	if hasCalendarDates {
		if err := parseCalendarDates(dir, snap); err != nil {
			return nil, err
		}
	}
	if fileExists(filepath.Join(dir, "shapes.txt")) {
		if err := parseShapes(dir, snap); err != nil {
			return nil, err
		}
	}
	if fileExists(filepath.Join(dir, "agency.txt")) {
		parseAgency(dir, snap, log)
	} else {
		snap.AgencyTimezone = ""
	}
	if err := LoadTranslations(dir, snap); err != nil {
		return nil, err
	}

	sortStopTimes(snap)
	deriveRouteVariants(snap)

	return snap, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func openCSV(dir, name string, out interface{}) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return errors.Wrapf(err, "gtfs: open %s", name)
	}
	defer f.Close()

	if err := gocsv.Unmarshal(f, out); err != nil {
		return errors.Wrapf(err, "gtfs: parse %s", name)
	}
	return nil
}

func parseStops(dir string, snap *Snapshot) error {
	var rows []stopRow
	if err := openCSV(dir, "stops.txt", &rows); err != nil {
		return err
	}
	for _, r := range rows {
		s := &domain.Stop{
			ID:            r.ID,
			Name:          r.Name,
			ParentStation: r.ParentStation,
			PlatformCode:  r.PlatformCode,
			Timezone:      r.Timezone,
			LocationType:  parseLocationType(r.LocationType),
		}
		if r.Lat != "" && r.Lon != "" {
			lat, errLat := strconv.ParseFloat(r.Lat, 64)
			lon, errLon := strconv.ParseFloat(r.Lon, 64)
			if errLat == nil && errLon == nil {
				s.Coordinates = &domain.Coordinates{Lat: lat, Lon: lon}
			}
		}
		snap.Stops[s.ID] = s
	}
	return nil
}

func parseLocationType(v string) domain.LocationType {
	switch v {
	case "1":
		return domain.LocationTypeStation
	case "2":
		return domain.LocationTypeEntrance
	default:
		return domain.LocationTypeStop
	}
}

func parseRoutes(dir string, snap *Snapshot) error {
	var rows []routeRow
	if err := openCSV(dir, "routes.txt", &rows); err != nil {
		return err
	}
	for _, r := range rows {
		typ, _ := strconv.Atoi(r.Type)
		snap.Routes[r.ID] = &domain.Route{
			ID:        r.ID,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Type:      domain.RouteType(typ),
			Color:     normalizeColor(r.Color),
			TextColor: normalizeColor(r.TextColor),
		}
	}
	return nil
}

// normalizeColor uppercases a 6-hex color and strips a leading '#', per
// spec.md §3; missing input defaults are left to the caller (adapters
// default to black/white per spec.md §7).
func normalizeColor(c string) string {
	c = strings.TrimPrefix(strings.TrimSpace(c), "#")
	return strings.ToUpper(c)
}

func parseTrips(dir string, snap *Snapshot) error {
	var rows []tripRow
	if err := openCSV(dir, "trips.txt", &rows); err != nil {
		return err
	}
	for _, r := range rows {
		t := &domain.Trip{
			ID:        r.ID,
			RouteID:   r.RouteID,
			ServiceID: r.ServiceID,
			Headsign:  r.Headsign,
			ShapeID:   r.ShapeID,
		}
		if r.DirectionID != "" {
			if d, err := strconv.Atoi(r.DirectionID); err == nil {
				t.DirectionID = &d
			}
		}
		snap.Trips[t.ID] = t
		if route, ok := snap.Routes[t.RouteID]; ok {
			route.TripIDs = append(route.TripIDs, t.ID)
		}
		snap.TripsByRoute[t.RouteID] = append(snap.TripsByRoute[t.RouteID], t.ID)
	}
	return nil
}

func parseStopTimes(dir string, snap *Snapshot, log *slog.Logger) error {
	var rows []stopTimeRow
	if err := openCSV(dir, "stop_times.txt", &rows); err != nil {
		return err
	}
	dropped := 0
	for _, r := range rows {
		seq, err := strconv.Atoi(r.StopSequence)
		if err != nil || seq < 0 {
			dropped++
			continue
		}
		if !validOptionalNonNegative(r.PickupType) || !validOptionalNonNegative(r.DropOffType) {
			dropped++
			continue
		}
		arr, okArr := parseGTFSTime(r.Arrival)
		dep, okDep := parseGTFSTime(r.Departure)
		if !okArr {
			arr = dep
		}
		if !okDep {
			dep = arr
		}

		st := domain.StopTime{StopID: r.StopID, StopSequence: seq, Arrival: arr, Departure: dep}
		snap.StopTimesByTrip[r.TripID] = append(snap.StopTimesByTrip[r.TripID], st)
	}
	if dropped > 0 && log != nil {
		log.Warn("dropped malformed stop_times rows", "count", dropped)
	}
	return nil
}

func validOptionalNonNegative(v string) bool {
	if v == "" {
		return true
	}
	n, err := strconv.Atoi(v)
	return err == nil && n >= 0
}

func sortStopTimes(snap *Snapshot) {
	for tripID, sts := range snap.StopTimesByTrip {
		sort.Slice(sts, func(i, j int) bool { return sts[i].StopSequence < sts[j].StopSequence })
		snap.StopTimesByTrip[tripID] = sts
		if t, ok := snap.Trips[tripID]; ok {
			t.StopTimes = sts
		}
	}
}

// parseGTFSTime parses "HH:MM:SS" allowing HH >= 24 (service past midnight).
func parseGTFSTime(v string) (domain.GTFSTime, bool) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return domain.GTFSTime{}, false
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	s, errS := strconv.Atoi(parts[2])
	if errH != nil || errM != nil || errS != nil {
		return domain.GTFSTime{}, false
	}
	return domain.GTFSTime{Hours: h, Minutes: m, Seconds: s}, true
}

func parseCalendar(dir string, snap *Snapshot) error {
	var rows []calendarRow
	if err := openCSV(dir, "calendar.txt", &rows); err != nil {
		return err
	}
	for _, r := range rows {
		snap.Calendars[r.ServiceID] = &domain.Calendar{
			ServiceID: r.ServiceID,
			Weekday: [7]bool{
				r.Monday == "1", r.Tuesday == "1", r.Wednesday == "1",
				r.Thursday == "1", r.Friday == "1", r.Saturday == "1", r.Sunday == "1",
			},
			StartDate: r.StartDate,
			EndDate:   r.EndDate,
		}
	}
	return nil
}

func parseCalendarDates(dir string, snap *Snapshot) error {
	var rows []calendarDateRow
	if err := openCSV(dir, "calendar_dates.txt", &rows); err != nil {
		return err
	}
	for _, r := range rows {
		typ, err := strconv.Atoi(r.ExceptionType)
		if err != nil {
			continue
		}
		cd := domain.CalendarDate{ServiceID: r.ServiceID, Date: r.Date, Type: domain.ExceptionType(typ)}
		snap.CalendarDates[r.ServiceID] = append(snap.CalendarDates[r.ServiceID], cd)
	}
	return nil
}

func parseShapes(dir string, snap *Snapshot) error {
	var rows []shapeRow
	if err := openCSV(dir, "shapes.txt", &rows); err != nil {
		return err
	}
	byID := make(map[string][]domain.ShapePoint)
	for _, r := range rows {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lon, errLon := strconv.ParseFloat(r.Lon, 64)
		seq, errSeq := strconv.Atoi(r.Sequence)
		if errLat != nil || errLon != nil || errSeq != nil {
			continue
		}
		byID[r.ShapeID] = append(byID[r.ShapeID], domain.ShapePoint{Lat: lat, Lon: lon, Sequence: seq})
	}
	for id, pts := range byID {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Sequence < pts[j].Sequence })
		snap.Shapes[id] = &domain.Shape{ID: id, Points: pts}
	}
	return nil
}

func parseAgency(dir string, snap *Snapshot, log *slog.Logger) {
	var rows []agencyRow
	if err := openCSV(dir, "agency.txt", &rows); err != nil {
		if log != nil {
			log.Warn("failed to parse agency.txt", "error", err)
		}
		return
	}
	if len(rows) > 0 {
		snap.AgencyTimezone = rows[0].Timezone
	}
}

// deriveRouteVariants builds one RouteVariant per (route, direction): group
// trips by direction_id, pick the trip with the most stops as
// representative, per spec.md §4.4 step 5.
func deriveRouteVariants(snap *Snapshot) {
	type key struct {
		routeID string
		dir     int
	}
	best := make(map[key]*domain.Trip)

	for _, route := range snap.Routes {
		for _, tripID := range route.TripIDs {
			trip := snap.Trips[tripID]
			if trip == nil {
				continue
			}
			dir := 0
			if trip.DirectionID != nil {
				dir = *trip.DirectionID
			}
			k := key{routeID: route.ID, dir: dir}
			cur := best[k]
			if cur == nil || len(trip.StopTimes) > len(cur.StopTimes) {
				best[k] = trip
			}
		}
	}

	keys := make([]key, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].routeID != keys[j].routeID {
			return keys[i].routeID < keys[j].routeID
		}
		return keys[i].dir < keys[j].dir
	})

	for _, k := range keys {
		trip := best[k]
		stopIDs := make([]string, len(trip.StopTimes))
		for i, st := range trip.StopTimes {
			stopIDs[i] = st.StopID
		}
		snap.Variants = append(snap.Variants, domain.RouteVariant{
			RouteID:     k.routeID,
			DirectionID: k.dir,
			StopIDs:     stopIDs,
			ShapeID:     trip.ShapeID,
			Headsign:    trip.Headsign,
			TripID:      trip.ID,
		})
	}
}


// Package domain holds the normalized transit data model shared by the GTFS
// loader, the real-time adapters, and the query engines. Entities are kept in
// flat arenas keyed by ID inside a Feed; cross-entity references are IDs
// resolved through the Feed's indices, never pointers into another entity,
// so Trip<->Route<->Feed never forms an object-level cycle.
package domain

import "fmt"

// LocationType distinguishes stops, stations and entrances (GTFS location_type).
type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
	LocationTypeEntrance
)

// RouteType is the GTFS route_type enum.
type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway     RouteType = 1
	RouteTypeRail       RouteType = 2
	RouteTypeBus        RouteType = 3
	RouteTypeFerry      RouteType = 4
	RouteTypeCableTram  RouteType = 5
	RouteTypeAerialLift RouteType = 6
	RouteTypeFunicular  RouteType = 7
)

func (t RouteType) String() string {
	switch t {
	case RouteTypeTram:
		return "tram"
	case RouteTypeSubway:
		return "subway"
	case RouteTypeRail:
		return "rail"
	case RouteTypeBus:
		return "bus"
	case RouteTypeFerry:
		return "ferry"
	case RouteTypeCableTram:
		return "cable_tram"
	case RouteTypeAerialLift:
		return "aerial_lift"
	case RouteTypeFunicular:
		return "funicular"
	default:
		return "unknown"
	}
}

// Coordinates is a WGS84 lat/lon pair. A nil *Coordinates means "unknown",
// distinct from (0,0).
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Metadata carries provenance/warning annotations attached to API responses,
// e.g. "coordinates came from GTFS fallback" or "language fell back to default".
type Metadata struct {
	Source   string `json:"source,omitempty"` // "api" | "gtfs" | "cache"
	Warning  string `json:"warning,omitempty"`
	Cached   bool   `json:"cached,omitempty"`
}

// Stop is a GTFS stop, station or entrance.
type Stop struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Coordinates    *Coordinates      `json:"coordinates"`
	ParentStation  string            `json:"parent_station,omitempty"`
	LocationType   LocationType      `json:"location_type"`
	PlatformCode   string            `json:"platform_code,omitempty"`
	Timezone       string            `json:"timezone,omitempty"`
	Translations   map[string]string `json:"translations,omitempty"` // lang -> name
	Metadata       *Metadata         `json:"_metadata,omitempty"`
}

// Route is a GTFS route; its Trips are owned (parent-owns-children).
type Route struct {
	ID        string    `json:"id"`
	ShortName string    `json:"short_name"`
	LongName  string    `json:"long_name"`
	Type      RouteType `json:"route_type"`
	Color     string    `json:"color,omitempty"`     // 6-hex, uppercase, no '#'
	TextColor string    `json:"text_color,omitempty"`
	TripIDs   []string  `json:"-"`
}

// Trip is a GTFS trip; StopTimes are strictly increasing by StopSequence.
type Trip struct {
	ID          string `json:"id"`
	RouteID     string `json:"route_id"`
	ServiceID   string `json:"service_id"`
	DirectionID *int   `json:"direction_id,omitempty"`
	Headsign    string `json:"headsign,omitempty"`
	ShapeID     string `json:"shape_id,omitempty"`
	StopTimes   []StopTime `json:"-"`
}

// GTFSTime is hours:minutes:seconds allowing hours >= 24 (service past midnight).
type GTFSTime struct {
	Hours   int
	Minutes int
	Seconds int
}

// TotalSeconds returns seconds since midnight of the service day, which may
// exceed 86400 for trips that run past midnight.
func (t GTFSTime) TotalSeconds() int {
	return t.Hours*3600 + t.Minutes*60 + t.Seconds
}

func (t GTFSTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds)
}

// WallClock renders the time of day modulo 24h, e.g. 25:10:00 -> "01:10".
func (t GTFSTime) WallClock() string {
	h := t.Hours % 24
	return fmt.Sprintf("%02d:%02d", h, t.Minutes)
}

// StopTime is a single scheduled visit of a trip at a stop.
type StopTime struct {
	StopID       string   `json:"stop_id"`
	StopSequence int      `json:"stop_sequence"`
	Arrival      GTFSTime `json:"-"`
	Departure    GTFSTime `json:"-"`
}

// ShapePoint is one vertex of a Shape polyline. Stored in GeoJSON [lon, lat]
// order on the wire; see domain.Shape.Points2D.
type ShapePoint struct {
	Lat      float64
	Lon      float64
	Sequence int
}

// Shape is an ordered polyline approximating a route's physical path.
type Shape struct {
	ID     string
	Points []ShapePoint
}

// Points2D renders the shape in GeoJSON [lon, lat] pair order, the
// convention used on the public wire for shape_segment fields. This is
// intentionally asymmetric with VehiclePosition.InterpolatedPosition, which
// is [lat, lon]; see SPEC_FULL.md open question on coordinate order.
func (s *Shape) Points2D() [][2]float64 {
	out := make([][2]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = [2]float64{p.Lon, p.Lat}
	}
	return out
}

// Calendar is a GTFS calendar.txt row: a weekday bitmap plus a validity window.
type Calendar struct {
	ServiceID string
	Weekday   [7]bool // Mon..Sun
	StartDate string  // YYYYMMDD
	EndDate   string  // YYYYMMDD
}

// ExceptionType for CalendarDate.
type ExceptionType int

const (
	ExceptionAdded   ExceptionType = 1
	ExceptionRemoved ExceptionType = 2
)

// CalendarDate is a calendar_dates.txt exception row.
type CalendarDate struct {
	ServiceID string
	Date      string // YYYYMMDD
	Type      ExceptionType
}

// RouteVariant is the derived canonical ordered stop list + shape for one
// direction of a route, used by C7/C8.
type RouteVariant struct {
	RouteID     string
	DirectionID int
	StopIDs     []string // ordered
	ShapeID     string
	Headsign    string
	TripID      string // representative trip this variant was derived from
}

package domain

import "time"

// VehicleTelemetry is the provider-normalized "next stop + distance" shape
// every adapter must reduce its upstream payload to before handing it to the
// vehicle position reconstructor (C8).
type VehicleTelemetry struct {
	Provider            string
	Line                string
	DirectionKey         string // terminus stop id, headsign, or direction_id as string
	NextStopID           string
	DistanceToNextMeters float64
	Timestamp            time.Time
	DelaySeconds         *int
	RawPosition          *Coordinates
}

// VehiclePosition is the derived, map-ready position for a single vehicle.
type VehiclePosition struct {
	Line                string       `json:"line"`
	Direction            string       `json:"direction"`
	FromStop             string       `json:"-"`
	ToStop                string       `json:"-"`
	CurrentSegment       [2]string    `json:"current_segment"`
	SegmentLengthM       float64      `json:"segment_length"`
	DistanceToNextM       float64      `json:"distance_to_next"`
	IsValid               bool         `json:"is_valid"`
	InterpolatedPosition  *[2]float64  `json:"interpolated_position"` // [lat, lon]; see domain.Shape.Points2D for the opposite [lon,lat] convention
	BearingDeg            float64      `json:"bearing"`
	ShapeSegment          [][2]float64 `json:"shape_segment,omitempty"` // [lon, lat] pairs
	RawData               interface{}  `json:"raw_data,omitempty"`
}

// WaitingTime is a single upcoming arrival at a stop, scheduled or real-time.
type WaitingTime struct {
	Provider        string            `json:"provider"`
	StopID          string            `json:"-"`
	RouteID         string            `json:"-"`
	Headsign        string            `json:"headsign,omitempty"`
	ScheduledTime   string            `json:"scheduled_time,omitempty"`
	ScheduledMinutes string           `json:"scheduled_minutes,omitempty"`
	RealtimeTime    string            `json:"realtime_time,omitempty"`
	RealtimeMinutes string            `json:"realtime_minutes,omitempty"`
	DelaySeconds    *int              `json:"delay,omitempty"`
	IsRealtime      bool              `json:"is_realtime"`
	Message         string            `json:"message,omitempty"`
	MinutesUntil    int               `json:"-"`
	LanguageMeta    *LanguageMetadata `json:"_metadata,omitempty"`
}

// LanguageMetadata records how a translated field was resolved (C6).
type LanguageMetadata struct {
	Selected      string   `json:"selected"`
	Requested     string   `json:"requested"`
	FallbackChain []string `json:"fallback_chain,omitempty"`
	Warning       string   `json:"warning,omitempty"`
}

// ServicePeriod is the optional active window of a ServiceMessage.
type ServicePeriod struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// ServiceMessage is a real-time alert normalized across providers.
type ServiceMessage struct {
	Text               string            `json:"text"`
	LanguageMeta       *LanguageMetadata `json:"_metadata,omitempty"`
	AffectedLines      []string          `json:"lines"`
	AffectedStopIDs    []string          `json:"points"`
	AffectedStopNames  []string          `json:"stops"`
	Period             *ServicePeriod    `json:"period,omitempty"`
	Priority           int               `json:"priority"`
	Type               string            `json:"type"`
	IsMonitored        bool              `json:"is_monitored"`
}

// ProviderConfig is the enumerated set of options an adapter exposes.
type ProviderConfig struct {
	Name               string
	APIURL             string
	APIKey             string
	GTFSURL            string
	GTFSStaticAPIKey   string
	GTFSRealtimeAPIKey string
	MonitoredLines     []string
	StopIDs            []string
	RateLimitDelay     time.Duration
	GTFSCacheTTL       time.Duration
	AvailableLanguages []string
	DefaultLanguage    string
	Timezone           string
}

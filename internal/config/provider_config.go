package config

import (
	"strings"
	"time"

	"transitd/internal/domain"
)

// providerDefaults holds the built-in provider_defaults layer per provider,
// per spec.md §4.1's per-provider configuration. These are the values used
// when no <PROVIDER>_* env var overrides them.
var providerDefaults = map[string]map[string]string{
	"stib": {
		"api_url":          "https://stib-mivb.opendatasoft.com/api/records/1.0",
		"gtfs_url":         "https://stibmivb.opendatasoft.com/explore/dataset/gtfs-files/files",
		"languages":        "fr,nl,en",
		"default_language": "fr",
		"timezone":         "Europe/Brussels",
		"rate_limit_delay": "500ms",
		"gtfs_cache_ttl":   "30s",
	},
	"delijn": {
		"api_url":          "https://api.delijn.be/DLKernOpenData/api/v1",
		"gtfs_url":         "https://gtfs.irail.be/delijn/delijn_static_latest.zip",
		"languages":        "nl,fr,en",
		"default_language": "nl",
		"timezone":         "Europe/Brussels",
		"rate_limit_delay": "500ms",
		"gtfs_cache_ttl":   "30s",
	},
	"sncb": {
		"api_url":          "https://opendata.b-rail.be/gtfs/realtime",
		"gtfs_url":         "https://gtfs.irail.be/nmbs/gtfs/latest.zip",
		"languages":        "fr,nl,de,en",
		"default_language": "fr",
		"timezone":         "Europe/Brussels",
		"rate_limit_delay": "1s",
		"gtfs_cache_ttl":   "60s",
	},
	"bkk": {
		"api_url":          "https://go.bkk.hu/api/query/v1/ws/gtfs-rt/full",
		"gtfs_url":         "https://go.bkk.hu/api/query/v1/ws/gtfs-static/budapest_gtfs.zip",
		"languages":        "hu,en",
		"default_language": "hu",
		"timezone":         "Europe/Budapest",
		"rate_limit_delay": "1s",
		"gtfs_cache_ttl":   "60s",
	},
}

var configDefaults = map[string]string{
	"api_key":            "",
	"gtfs_static_api_key": "",
	"gtfs_realtime_api_key": "",
	"monitored_lines":    "",
	"stop_ids":           "",
	"rate_limit_delay":   "500ms",
	"gtfs_cache_ttl":     "30s",
}

// ProviderConfigFor resolves a provider's domain.ProviderConfig through the
// three-layer ProviderLoader merge, failing fast on unknown <PROVIDER>_*
// env keys.
func ProviderConfigFor(name string) (domain.ProviderConfig, error) {
	loader := NewProviderLoader(name, configDefaults, providerDefaults[name])

	cfg := domain.ProviderConfig{
		Name:               name,
		APIURL:             loader.Get("api_url"),
		APIKey:             loader.Get("api_key"),
		GTFSURL:            loader.Get("gtfs_url"),
		GTFSStaticAPIKey:   loader.Get("gtfs_static_api_key"),
		GTFSRealtimeAPIKey: loader.Get("gtfs_realtime_api_key"),
		MonitoredLines:     splitCSV(loader.Get("monitored_lines")),
		StopIDs:            splitCSV(loader.Get("stop_ids")),
		AvailableLanguages: splitCSV(loader.Get("languages")),
		DefaultLanguage:    loader.Get("default_language"),
		Timezone:           loader.Get("timezone"),
	}

	if d, err := time.ParseDuration(loader.Get("rate_limit_delay")); err == nil {
		cfg.RateLimitDelay = d
	}
	if d, err := time.ParseDuration(loader.Get("gtfs_cache_ttl")); err == nil {
		cfg.GTFSCacheTTL = d
	}

	if err := loader.CheckUnknownKeys(); err != nil {
		return domain.ProviderConfig{}, err
	}
	return cfg, nil
}

// splitCSV parses an already-resolved comma-separated value, trimming
// whitespace and dropping empty entries; unlike getCSVEnv it does not read
// from the environment, since the three-layer merge has already happened.
func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	return result
}

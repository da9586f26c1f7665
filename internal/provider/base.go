package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"transitd/internal/apperr"
	"transitd/internal/cache"
	"transitd/internal/domain"
	"transitd/internal/geoindex"
	"transitd/internal/gtfs"
	"transitd/internal/ratelimit"
)

// Base holds the common adapter plumbing every operator adapter embeds:
// config, outbound rate limiting, the per-provider filesystem cache, an
// HTTP client, and (once loaded) the GTFS feed and its derived nearest-stop
// index. This is the generalized shape of the teacher's per-adapter field
// set in pkg/warsawapi/client.go, factored out so stib/delijn/sncb/bkk
// don't each re-implement cache/rate-limit/HTTP wiring.
type Base struct {
	Cfg     domain.ProviderConfig
	Limiter *ratelimit.Limiter
	Cache   *cache.Store
	HTTP    *http.Client
	Log     *slog.Logger

	Feed      *gtfs.Feed
	StopIndex *geoindex.StopIndex
}

func NewBase(cfg domain.ProviderConfig, store *cache.Store, log *slog.Logger) *Base {
	return &Base{
		Cfg:     cfg,
		Limiter: ratelimit.NewLimiter(cfg.RateLimitDelay),
		Cache:   store,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Log:     log,
		Feed:    gtfs.NewFeed(),
	}
}

func (b *Base) Name() string                    { return b.Cfg.Name }
func (b *Base) Config() domain.ProviderConfig    { return b.Cfg }

// BuildStopIndex (re)builds the nearest-stop spatial index from the
// current GTFS snapshot; called after every successful (re)load.
func (b *Base) BuildStopIndex(snap *gtfs.Snapshot) {
	stops := make([]*domain.Stop, 0, len(snap.Stops))
	for _, s := range snap.Stops {
		stops = append(stops, s)
	}
	b.StopIndex = geoindex.NewStopIndex(stops)
}

// GetJSON performs a rate-limited, cached JSON GET. An empty cacheKey
// disables caching for this call; a zero ttl stores the value without an
// expiry. When the rate limiter reports
// exhaustion, it serves the cached value (annotating cached=true) instead
// of calling out, per spec.md §4.2/§5 back-pressure rule.
func (b *Base) GetJSON(ctx context.Context, url, cacheKey string, ttl time.Duration, out interface{}) (cached bool, err error) {
	if cacheKey != "" && !b.Limiter.CanMakeRequest() {
		if hit, getErr := b.Cache.Get(cacheKey, out); getErr == nil && hit {
			return true, nil
		}
		return false, apperr.New(apperr.KindRateLimit, "rate limit exhausted and no cached value available")
	}

	if wait := b.Limiter.BeforeCall(); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false, apperr.Wrap(apperr.KindClientDisconnected, "request cancelled while waiting for rate limiter", ctx.Err())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, apperr.Wrap(apperr.KindNetwork, "build request", err)
	}
	if b.Cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.Cfg.APIKey)
	}

	resp, err := b.HTTP.Do(req)
	if err != nil {
		if cacheKey != "" {
			if hit, getErr := b.Cache.Get(cacheKey, out); getErr == nil && hit {
				b.Log.Warn("upstream call failed, serving cached value", "url", url, "error", err)
				return true, nil
			}
		}
		return false, apperr.Wrap(apperr.KindNetwork, "upstream request failed", err)
	}
	defer resp.Body.Close()

	b.Limiter.UpdateFromHeaders(parseRemaining(resp.Header.Get("X-RateLimit-Remaining")), parseResetTime(resp.Header.Get("X-RateLimit-Reset")))

	if resp.StatusCode != http.StatusOK {
		if cacheKey != "" {
			if hit, getErr := b.Cache.Get(cacheKey, out); getErr == nil && hit {
				return true, nil
			}
		}
		return false, apperr.New(apperr.KindUpstreamSchema, "upstream returned unexpected status")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if cacheKey != "" {
			if hit, getErr := b.Cache.Get(cacheKey, out); getErr == nil && hit {
				return true, nil
			}
		}
		return false, apperr.Wrap(apperr.KindUpstreamSchema, "decode upstream response", err)
	}

	if cacheKey != "" {
		if err := b.Cache.Set(cacheKey, out, ttl); err != nil {
			b.Log.Warn("cache write failed", "key", cacheKey, "error", err)
		}
	}
	return false, nil
}

func parseRemaining(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func parseResetTime(v string) time.Time {
	epoch, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(epoch, 0)
}

package geoindex

import (
	"fmt"
	"sort"
	"strings"

	"transitd/internal/domain"
	"transitd/internal/geo"
)

// StopIndex answers nearest-stop and name-search queries (C12) over a fixed
// set of stops, bucketed into tiles so a radius search only visits the
// handful of tiles the search radius can reach instead of scanning every
// stop in the feed.
type StopIndex struct {
	stops   map[string]*domain.Stop
	byTile  map[string][]string // tile id -> stop ids
	zoom    int
}

// NewStopIndex builds a StopIndex over stops, skipping any with nil
// Coordinates (they cannot be bucketed and are only reachable by ID lookup
// elsewhere).
func NewStopIndex(stops []*domain.Stop) *StopIndex {
	idx := &StopIndex{
		stops:  make(map[string]*domain.Stop, len(stops)),
		byTile: make(map[string][]string),
		zoom:   DefaultZoom,
	}
	for _, s := range stops {
		idx.stops[s.ID] = s
		if s.Coordinates == nil {
			continue
		}
		tile := TileID(s.Coordinates.Lat, s.Coordinates.Lon, idx.zoom)
		idx.byTile[tile] = append(idx.byTile[tile], s.ID)
	}
	return idx
}

// StopDistance pairs a stop with its distance in meters from the query point.
type StopDistance struct {
	Stop     *domain.Stop
	MetersAway float64
}

// Nearest returns up to limit stops within radiusMeters of (lat, lon),
// sorted by ascending distance. It expands the tile search ring until the
// 3x3 neighborhood around the query tile no longer suffices for the given
// radius, per spec.md §4.12.
func (idx *StopIndex) Nearest(lat, lon float64, radiusMeters float64, limit int) ([]StopDistance, error) {
	tile := TileID(lat, lon, idx.zoom)
	zoom, x, y, ok := ParseTileID(tile)
	if !ok {
		return nil, geo.ErrInvalidCoordinates
	}

	seen := make(map[string]bool)
	var candidates []string
	ring := 1
	for {
		for _, t := range tilesInRing(zoom, x, y, ring) {
			for _, id := range idx.byTile[t] {
				if !seen[id] {
					seen[id] = true
					candidates = append(candidates, id)
				}
			}
		}
		// Once the searched block's outer edge lies beyond the radius in
		// every direction, no further ring can add anything within it.
		minLat, minLon, _, _ := TileBounds(zoom, x-ring, y+ring)
		_, _, maxLat, maxLon := TileBounds(zoom, x+ring, y-ring)
		covered := -1.0
		for _, edge := range [][2]float64{{minLat, lon}, {maxLat, lon}, {lat, minLon}, {lat, maxLon}} {
			d, err := geo.Haversine(lat, lon, edge[0], edge[1])
			if err == nil && (covered < 0 || d < covered) {
				covered = d
			}
		}
		if covered >= radiusMeters {
			break
		}
		if ring > 8 {
			break
		}
		ring++
	}

	var results []StopDistance
	for _, id := range candidates {
		s := idx.stops[id]
		if s == nil || s.Coordinates == nil {
			continue
		}
		d, err := geo.Haversine(lat, lon, s.Coordinates.Lat, s.Coordinates.Lon)
		if err != nil || d > radiusMeters {
			continue
		}
		results = append(results, StopDistance{Stop: s, MetersAway: d})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].MetersAway < results[j].MetersAway })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// tilesInRing returns the tiles forming the square ring at Chebyshev
// distance `ring` from (x, y); ring 1 is AdjacentTiles' 3x3 neighborhood.
func tilesInRing(zoom, x, y, ring int) []string {
	if ring <= 1 {
		return AdjacentTiles(zoom, x, y)
	}
	maxTile := 1<<uint(zoom) - 1
	var tiles []string
	for dx := -ring; dx <= ring; dx++ {
		for dy := -ring; dy <= ring; dy++ {
			if abs(dx) != ring && abs(dy) != ring {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || nx > maxTile || ny < 0 || ny > maxTile {
				continue
			}
			tiles = append(tiles, TileIDFromXY(zoom, nx, ny))
		}
	}
	return tiles
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TileIDFromXY formats a tile id without recomputing it from lat/lon.
func TileIDFromXY(zoom, x, y int) string {
	return fmt.Sprintf("%d/%d/%d", zoom, x, y)
}

// SearchByName performs a case-insensitive substring match over stop names
// and their translations, per spec.md §4.12.
func (idx *StopIndex) SearchByName(query string, limit int) []*domain.Stop {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []*domain.Stop
	for _, s := range idx.stops {
		if strings.Contains(strings.ToLower(s.Name), q) {
			out = append(out, s)
			continue
		}
		for _, tr := range s.Translations {
			if strings.Contains(strings.ToLower(tr), q) {
				out = append(out, s)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

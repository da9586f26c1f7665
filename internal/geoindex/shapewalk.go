package geoindex

import (
	"transitd/internal/domain"
	"transitd/internal/geo"
)

// ShapeWalker precomputes cumulative distance along a shape's polyline so
// the vehicle position reconstructor (C8) can map "distance traveled" to a
// lat/lon without re-walking the whole shape on every tick.
type ShapeWalker struct {
	shape   *domain.Shape
	cumDist []float64 // cumDist[i] = distance from point 0 to point i
}

// NewShapeWalker builds a walker over shape. Points whose haversine distance
// to the previous point cannot be computed (invalid coordinates) are treated
// as zero-length segments rather than aborting the whole shape.
func NewShapeWalker(shape *domain.Shape) *ShapeWalker {
	w := &ShapeWalker{shape: shape, cumDist: make([]float64, len(shape.Points))}
	for i := 1; i < len(shape.Points); i++ {
		prev, cur := shape.Points[i-1], shape.Points[i]
		d, err := geo.Haversine(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
		if err != nil {
			d = 0
		}
		w.cumDist[i] = w.cumDist[i-1] + d
	}
	return w
}

// TotalLength returns the shape's total length in meters.
func (w *ShapeWalker) TotalLength() float64 {
	if len(w.cumDist) == 0 {
		return 0
	}
	return w.cumDist[len(w.cumDist)-1]
}

// NearestVertexIndex returns the index of the shape point closest to
// (lat, lon), used to seed the segment search when locating a stop on the
// shape.
func (w *ShapeWalker) NearestVertexIndex(lat, lon float64) int {
	best, bestDist := -1, -1.0
	for i, p := range w.shape.Points {
		d, err := geo.Haversine(lat, lon, p.Lat, p.Lon)
		if err != nil {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// SegmentAt returns the shape segment (start/end vertex and cumulative
// distances) whose polyline fraction corresponds to distanceM meters
// traveled from the shape's start.
func (w *ShapeWalker) SegmentAt(distanceM float64) (startIdx, endIdx int, segStart, segEnd float64) {
	n := len(w.shape.Points)
	if n < 2 {
		return 0, 0, 0, 0
	}
	if distanceM <= 0 {
		return 0, 1, w.cumDist[0], w.cumDist[1]
	}
	if distanceM >= w.cumDist[n-1] {
		return n - 2, n - 1, w.cumDist[n-2], w.cumDist[n-1]
	}
	// Linear scan: shapes are a few hundred points at most, and this runs
	// once per vehicle per poll cycle, not in a hot loop.
	for i := 1; i < n; i++ {
		if w.cumDist[i] >= distanceM {
			return i - 1, i, w.cumDist[i-1], w.cumDist[i]
		}
	}
	return n - 2, n - 1, w.cumDist[n-2], w.cumDist[n-1]
}

// InterpolateAt returns the lat/lon at distanceM meters along the shape and
// the bearing of the segment it falls on.
func (w *ShapeWalker) InterpolateAt(distanceM float64) (lat, lon, bearingDeg float64) {
	startIdx, endIdx, segStart, segEnd := w.SegmentAt(distanceM)
	a, b := w.shape.Points[startIdx], w.shape.Points[endIdx]

	segLen := segEnd - segStart
	var t float64
	if segLen > 0 {
		t = (distanceM - segStart) / segLen
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}

	lat = a.Lat + t*(b.Lat-a.Lat)
	lon = a.Lon + t*(b.Lon-a.Lon)
	bearingDeg, _ = geo.Bearing(a.Lat, a.Lon, b.Lat, b.Lon)
	return
}

// DistanceAtVertex returns the cumulative shape distance at vertex index i.
func (w *ShapeWalker) DistanceAtVertex(i int) float64 {
	if i < 0 || i >= len(w.cumDist) {
		return 0
	}
	return w.cumDist[i]
}

// SegmentSlice returns the shape's [lon,lat] points from vertex startIdx to
// endIdx inclusive, for the VehiclePosition.ShapeSegment wire field.
func (w *ShapeWalker) SegmentSlice(startIdx, endIdx int) [][2]float64 {
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx >= len(w.shape.Points) {
		endIdx = len(w.shape.Points) - 1
	}
	if startIdx > endIdx {
		return nil
	}
	out := make([][2]float64, 0, endIdx-startIdx+1)
	for i := startIdx; i <= endIdx; i++ {
		p := w.shape.Points[i]
		out = append(out, [2]float64{p.Lon, p.Lat})
	}
	return out
}

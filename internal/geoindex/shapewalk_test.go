package geoindex

import (
	"testing"

	"transitd/internal/domain"
)

// straightShape approximates a north-running shape roughly 500m long over
// 10 points, for the "vehicle interpolation" scenario in spec.md §8.2.
func straightShape() *domain.Shape {
	points := make([]domain.ShapePoint, 10)
	for i := 0; i < 10; i++ {
		points[i] = domain.ShapePoint{
			Lat:      50.0000 + float64(i)*0.0005,
			Lon:      4.0000,
			Sequence: i,
		}
	}
	return &domain.Shape{ID: "shape1", Points: points}
}

func TestShapeWalkerTotalLength(t *testing.T) {
	w := NewShapeWalker(straightShape())
	total := w.TotalLength()
	if total < 400 || total > 600 {
		t.Fatalf("expected ~500m, got %.1fm", total)
	}
}

func TestShapeWalkerInterpolateAtStartAndEnd(t *testing.T) {
	w := NewShapeWalker(straightShape())

	lat0, lon0, _ := w.InterpolateAt(0)
	if lat0 != 50.0000 || lon0 != 4.0000 {
		t.Fatalf("expected start point, got (%f,%f)", lat0, lon0)
	}

	total := w.TotalLength()
	latN, lonN, _ := w.InterpolateAt(total)
	if latN < 50.0044 || latN > 50.0046 {
		t.Fatalf("expected end point lat ~50.0045, got %f", latN)
	}
	_ = lonN
}

func TestShapeWalkerInterpolateMidpoint(t *testing.T) {
	w := NewShapeWalker(straightShape())
	total := w.TotalLength()

	lat, _, bearing := w.InterpolateAt(total / 2)
	if lat < 50.0020 || lat > 50.0030 {
		t.Fatalf("expected roughly midpoint lat, got %f", lat)
	}
	if bearing < -1 || bearing > 1 {
		t.Fatalf("expected due-north bearing ~0deg, got %f", bearing)
	}
}

func TestShapeWalkerNearestVertexIndex(t *testing.T) {
	w := NewShapeWalker(straightShape())
	idx := w.NearestVertexIndex(50.0025, 4.0000)
	if idx != 5 {
		t.Fatalf("expected vertex 5, got %d", idx)
	}
}

func TestShapeWalkerSegmentSlice(t *testing.T) {
	w := NewShapeWalker(straightShape())
	seg := w.SegmentSlice(2, 5)
	if len(seg) != 4 {
		t.Fatalf("expected 4 points, got %d", len(seg))
	}
	// [lon, lat] order.
	if seg[0][0] != 4.0000 {
		t.Fatalf("expected lon first, got %v", seg[0])
	}
}

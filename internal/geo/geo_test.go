package geo

import (
	"math"
	"testing"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Brussels Central <-> Brussels Midi, roughly 2.1km apart.
	d, err := Haversine(50.8456, 4.3571, 50.8356, 4.3358)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d < 1500 || d > 2800 {
		t.Fatalf("expected ~2.1km, got %.1fm", d)
	}
}

func TestHaversineZeroDistance(t *testing.T) {
	d, err := Haversine(50.0, 4.0, 50.0, 4.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineInvalidCoordinates(t *testing.T) {
	_, err := Haversine(200, 0, 0, 0)
	if err != ErrInvalidCoordinates {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestBearingCardinalDirections(t *testing.T) {
	north, err := Bearing(0, 0, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(north-0) > 0.5 {
		t.Fatalf("expected ~0 degrees north, got %f", north)
	}

	east, err := Bearing(0, 0, 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(east-90) > 0.5 {
		t.Fatalf("expected ~90 degrees east, got %f", east)
	}
}

func TestBearingIsInRange(t *testing.T) {
	b, err := Bearing(50.85, 4.35, 50.80, 4.30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b < 0 || b >= 360 {
		t.Fatalf("bearing out of [0,360): %f", b)
	}
}

func TestPointToSegmentDistanceEndpoint(t *testing.T) {
	d, err := PointToSegmentDistance(50.85, 4.35, 50.85, 4.35, 50.86, 4.36)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d > 1 {
		t.Fatalf("point on segment endpoint should be ~0m, got %f", d)
	}
}

func TestPointToSegmentDistancePerpendicular(t *testing.T) {
	// Segment runs due north; point offset ~100m east of the midpoint.
	d, err := PointToSegmentDistance(50.0050, 4.0014, 50.000, 4.000, 50.010, 4.000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d < 50 || d > 200 {
		t.Fatalf("expected roughly 100m, got %f", d)
	}
}

func TestPointToSegmentDistanceInvalidCoordinates(t *testing.T) {
	_, err := PointToSegmentDistance(0, 0, 0, 0, 0, 200)
	if err != ErrInvalidCoordinates {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
}

package vehicleposition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitd/internal/domain"
	"transitd/internal/geo"
)

// buildShape mirrors spec.md §8 scenario 2: a 10-point polyline covering
// ~500m.
func buildShape() *domain.Shape {
	points := make([]domain.ShapePoint, 10)
	for i := 0; i < 10; i++ {
		points[i] = domain.ShapePoint{Lat: 50.0000 + float64(i)*0.0005, Lon: 4.0000, Sequence: i}
	}
	return &domain.Shape{ID: "s1", Points: points}
}

func TestReconstructVehicleInterpolation(t *testing.T) {
	shape := buildShape()
	variant := &domain.RouteVariant{
		RouteID: "55", DirectionID: 0,
		StopIDs: []string{"6189", "6190"},
		ShapeID: shape.ID,
	}

	stops := StopLookup(func(id string) (*domain.Coordinates, bool) {
		switch id {
		case "6189":
			return &domain.Coordinates{Lat: shape.Points[0].Lat, Lon: shape.Points[0].Lon}, true
		case "6190":
			return &domain.Coordinates{Lat: shape.Points[9].Lat, Lon: shape.Points[9].Lon}, true
		}
		return nil, false
	})

	telemetry := domain.VehicleTelemetry{
		Provider: "stib", Line: "55", NextStopID: "6190", DistanceToNextMeters: 32,
	}

	pos := Reconstruct(variant, shape, stops, telemetry)

	require.True(t, pos.IsValid)
	assert.InDelta(t, 500, pos.SegmentLengthM, 20)
	require.NotNil(t, pos.InterpolatedPosition)

	// The vehicle should be 32m short of stop 6190.
	d, err := geo.Haversine(pos.InterpolatedPosition[0], pos.InterpolatedPosition[1], shape.Points[9].Lat, shape.Points[9].Lon)
	require.NoError(t, err)
	assert.InDelta(t, 32, d, 2)
}

func TestReconstructMarksInvalidWhenStopAtIndexZero(t *testing.T) {
	shape := buildShape()
	variant := &domain.RouteVariant{StopIDs: []string{"6189", "6190"}}
	stops := StopLookup(func(id string) (*domain.Coordinates, bool) { return nil, false })

	telemetry := domain.VehicleTelemetry{NextStopID: "6189", DistanceToNextMeters: 10}
	pos := Reconstruct(variant, shape, stops, telemetry)

	assert.False(t, pos.IsValid)
}

func TestReconstructMarksInvalidWhenStopUnknown(t *testing.T) {
	shape := buildShape()
	variant := &domain.RouteVariant{StopIDs: []string{"6189", "6190"}}
	stops := StopLookup(func(id string) (*domain.Coordinates, bool) { return nil, false })

	telemetry := domain.VehicleTelemetry{NextStopID: "ghost", DistanceToNextMeters: 10}
	pos := Reconstruct(variant, shape, stops, telemetry)

	assert.False(t, pos.IsValid)
}

func TestReconstructMarksInvalidWhenDistanceImprobable(t *testing.T) {
	shape := buildShape()
	variant := &domain.RouteVariant{StopIDs: []string{"6189", "6190"}}
	stops := StopLookup(func(id string) (*domain.Coordinates, bool) {
		switch id {
		case "6189":
			return &domain.Coordinates{Lat: shape.Points[0].Lat, Lon: shape.Points[0].Lon}, true
		case "6190":
			return &domain.Coordinates{Lat: shape.Points[9].Lat, Lon: shape.Points[9].Lon}, true
		}
		return nil, false
	})

	telemetry := domain.VehicleTelemetry{NextStopID: "6190", DistanceToNextMeters: 10000}
	pos := Reconstruct(variant, shape, stops, telemetry)

	assert.False(t, pos.IsValid)
	// Even when invalid, the reported distance is capped to the segment
	// length so the §8 invariant (0 <= distance_to_next <= segment_length)
	// holds for any position a caller might still choose to render.
	assert.Equal(t, pos.SegmentLengthM, pos.DistanceToNextM)
}

func TestLocateStopIndexStripsStibSuffix(t *testing.T) {
	stopIDs := []string{"5710", "5711"}
	idx, matched, warning := LocateStopIndex(stopIDs, "5710F")
	assert.Equal(t, 0, idx)
	assert.Equal(t, "5710", matched)
	assert.Empty(t, warning)
}

func TestLocateStopIndexWarnsWhenStrippedIDStillFails(t *testing.T) {
	stopIDs := []string{"5710", "5711"}
	idx, _, warning := LocateStopIndex(stopIDs, "9999Z")
	assert.Equal(t, -1, idx)
	assert.NotEmpty(t, warning)
}

func TestValidatePositionInvariant(t *testing.T) {
	shape := buildShape()
	toStop := &domain.Coordinates{Lat: shape.Points[9].Lat, Lon: shape.Points[9].Lon}

	pos := &domain.VehiclePosition{
		IsValid:              true,
		DistanceToNextM:       32,
		SegmentLengthM:        500,
		InterpolatedPosition:  &[2]float64{shape.Points[9].Lat - 0.0002, shape.Points[9].Lon},
	}

	ok, err := ValidatePosition(pos, toStop, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

// Package vehicleposition implements the Vehicle Position Reconstructor
// (C8): it fuses a provider's "next stop + distance" telemetry with the
// Shape/Stop Geometry Index (C7) to produce an interpolated lat/lon and
// bearing. Grounded on the teacher's Vehicle/VehicleDelta domain model
// (wabus/internal/domain/vehicle.go) for the derived-position shape, and on
// joeshaw-cota-bus's vehicle_updater.go for the "telemetry -> normalized
// position" transform pattern (there applied to raw GTFS-RT fields; here
// generalized to any provider's normalized VehicleTelemetry).
package vehicleposition

import (
	"transitd/internal/domain"
	"transitd/internal/geo"
	"transitd/internal/geoindex"
)

// StopLookup resolves a stop ID to its coordinates; callers pass a closure
// bound to the current feed snapshot.
type StopLookup func(stopID string) (*domain.Coordinates, bool)

// Reconstruct implements spec.md §4.8 steps 2-7. variant.StopIDs is the
// Route Variant's ordered stop list already resolved by the caller for
// (line, direction_key); shape is the Variant's Shape (nil is treated as
// "no geometry available", producing is_valid=false).
func Reconstruct(variant *domain.RouteVariant, shape *domain.Shape, stops StopLookup, telemetry domain.VehicleTelemetry) *domain.VehiclePosition {
	pos := &domain.VehiclePosition{
		Line:      telemetry.Line,
		Direction: variant.Headsign,
		RawData:   nil,
	}

	idx, _, warning := LocateStopIndex(variant.StopIDs, telemetry.NextStopID)
	if warning != "" {
		pos.RawData = map[string]string{"stop_match_warning": warning}
	}
	if idx <= 0 {
		pos.IsValid = false
		return pos
	}

	fromStopID := variant.StopIDs[idx-1]
	toStopID := variant.StopIDs[idx]
	pos.FromStop = fromStopID
	pos.ToStop = toStopID
	pos.CurrentSegment = [2]string{fromStopID, toStopID}

	if shape == nil {
		pos.IsValid = false
		return pos
	}

	fromCoords, fromOK := stops(fromStopID)
	toCoords, toOK := stops(toStopID)
	if !fromOK || !toOK || fromCoords == nil || toCoords == nil {
		pos.IsValid = false
		return pos
	}

	walker := geoindex.NewShapeWalker(shape)
	fromIdx := walker.NearestVertexIndex(fromCoords.Lat, fromCoords.Lon)
	toIdx := walker.NearestVertexIndex(toCoords.Lat, toCoords.Lon)
	if fromIdx < 0 || toIdx < 0 {
		pos.IsValid = false
		return pos
	}
	if fromIdx > toIdx {
		fromIdx, toIdx = toIdx, fromIdx
	}

	segStart := walker.DistanceAtVertex(fromIdx)
	segEnd := walker.DistanceAtVertex(toIdx)
	segmentLength := segEnd - segStart
	pos.SegmentLengthM = segmentLength

	distanceToNext := telemetry.DistanceToNextMeters
	pos.IsValid = true
	if distanceToNext > 1.2*segmentLength {
		pos.IsValid = false
	}

	// Report the capped value, not the raw telemetry figure: ValidatePosition
	// enforces 0 <= distance_to_next <= segment_length, and that invariant
	// must hold whenever IsValid is true.
	capped := distanceToNext
	if capped > segmentLength {
		capped = segmentLength
	}
	if capped < 0 {
		capped = 0
	}
	pos.DistanceToNextM = capped

	// Walk from the end of the segment backwards by capped distance,
	// equivalently forwards from the start by (segmentLength - capped).
	absoluteDistance := segStart + (segmentLength - capped)
	lat, lon, bearing := walker.InterpolateAt(absoluteDistance)
	pos.InterpolatedPosition = &[2]float64{lat, lon}
	pos.BearingDeg = bearing
	pos.ShapeSegment = walker.SegmentSlice(fromIdx, toIdx)

	return pos
}

// LocateStopIndex finds nextStopID in stopIDs, falling back to stripping
// trailing non-digit suffixes (spec.md §4.8 tie-break / §9 open question)
// when an exact match fails. Returns -1 and a warning if even the
// stripped id cannot be matched.
func LocateStopIndex(stopIDs []string, nextStopID string) (idx int, matchedID string, warning string) {
	for i, id := range stopIDs {
		if id == nextStopID {
			return i, id, ""
		}
	}

	stripped := stripTrailingNonDigits(nextStopID)
	if stripped != nextStopID {
		for i, id := range stopIDs {
			if stripTrailingNonDigits(id) == stripped {
				return i, id, ""
			}
		}
		return -1, "", "stop id " + nextStopID + " (stripped " + stripped + ") did not match any stop in the route variant"
	}
	return -1, "", ""
}

func stripTrailingNonDigits(id string) string {
	i := len(id)
	for i > 0 && !isDigit(id[i-1]) {
		i--
	}
	return id[:i]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ValidatePosition is a standalone check of the C8 testable invariant from
// spec.md §8: for is_valid positions, 0 <= distance_to_next <= segment_length
// and haversine(interpolated, to_stop) <= distance_to_next + epsilon.
func ValidatePosition(pos *domain.VehiclePosition, toStopCoords *domain.Coordinates, epsilonM float64) (bool, error) {
	if !pos.IsValid {
		return true, nil
	}
	if pos.DistanceToNextM < 0 || pos.DistanceToNextM > pos.SegmentLengthM {
		return false, nil
	}
	if pos.InterpolatedPosition == nil {
		return false, nil
	}
	d, err := geo.Haversine(pos.InterpolatedPosition[0], pos.InterpolatedPosition[1], toStopCoords.Lat, toStopCoords.Lon)
	if err != nil {
		return false, err
	}
	return d <= pos.DistanceToNextM+epsilonM, nil
}

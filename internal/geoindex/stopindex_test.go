package geoindex

import (
	"testing"

	"transitd/internal/domain"
)

func sampleStops() []*domain.Stop {
	return []*domain.Stop{
		{ID: "8122", Name: "Gare Centrale", Coordinates: &domain.Coordinates{Lat: 50.8466, Lon: 4.4022}},
		{ID: "8123", Name: "Gare du Midi", Coordinates: &domain.Coordinates{Lat: 50.8356, Lon: 4.3358}},
		{ID: "F01111", Name: "Deak Ferenc ter", Coordinates: &domain.Coordinates{Lat: 47.497912, Lon: 19.040235}},
		{ID: "nocoord", Name: "Unknown Stop"},
	}
}

func TestNearestReturnsWithinRadiusSortedByDistance(t *testing.T) {
	idx := NewStopIndex(sampleStops())

	// Gare du Midi (8123) is about 4.8km from Gare Centrale (8122).
	results, err := idx.Nearest(50.8466, 4.4022, 5000, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 stops within 5km, got %d", len(results))
	}
	if results[0].Stop.ID != "8122" {
		t.Fatalf("expected closest stop first, got %s", results[0].Stop.ID)
	}
	if results[0].MetersAway > results[1].MetersAway {
		t.Fatalf("results not sorted ascending by distance")
	}
}

func TestNearestExcludesFarStops(t *testing.T) {
	idx := NewStopIndex(sampleStops())

	// Budapest stop should not appear in a Brussels-radius search.
	results, err := idx.Nearest(50.8466, 4.4022, 5000, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range results {
		if r.Stop.ID == "F01111" {
			t.Fatalf("expected Budapest stop excluded from a 5km Brussels search")
		}
	}
}

func TestSearchByNameCaseInsensitiveSubstring(t *testing.T) {
	idx := NewStopIndex(sampleStops())

	results := idx.SearchByName("gare", 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches for 'gare', got %d", len(results))
	}
}

func TestSearchByNameMatchesTranslations(t *testing.T) {
	stops := sampleStops()
	stops[0].Translations = map[string]string{"nl": "Centraal Station"}
	idx := NewStopIndex(stops)

	results := idx.SearchByName("centraal", 10)
	if len(results) != 1 || results[0].ID != "8122" {
		t.Fatalf("expected translation match on stop 8122")
	}
}

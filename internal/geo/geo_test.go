package geo

import (
	"math"
	"testing"

	"github.com/example/territory-run/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(models.Coord{}, models.Coord{})
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineOneDegreeLatitude(t *testing.T) {
	d := Haversine(models.Coord{Lat: 0, Lon: 0}, models.Coord{Lat: 1, Lon: 0})
	want := EarthRadiusM * math.Pi / 180 // ~111194.93 m
	if math.Abs(d-want) > 1 {
		t.Fatalf("expected ~%f, got %f", want, d)
	}
}

func TestSpeedKmh(t *testing.T) {
	if got := SpeedKmh(100, 60); math.Abs(got-6.0) > 1e-9 {
		t.Fatalf("100m in 60s should be 6 km/h, got %f", got)
	}
}

func TestPathLengthM(t *testing.T) {
	coords := []models.Coord{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 0}, {Lat: 2, Lon: 0}}
	got := PathLengthM(coords)
	want := 2 * EarthRadiusM * math.Pi / 180
	if math.Abs(got-want) > 1 {
		t.Fatalf("expected ~%f, got %f", want, got)
	}
}

func TestValidateCoord(t *testing.T) {
	if err := ValidateCoord(models.Coord{Lat: 45, Lon: -120}); err != nil {
		t.Fatalf("valid coord rejected: %v", err)
	}
	for _, c := range []models.Coord{{Lat: 91}, {Lat: -91}, {Lon: 181}, {Lon: -181}} {
		if err := ValidateCoord(c); err == nil {
			t.Fatalf("expected rejection for %+v", c)
		}
	}
}

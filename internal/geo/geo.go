package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/territory-run/internal/models"
)

// EarthRadiusM is the spherical earth radius used for all great-circle math.
const EarthRadiusM = 6371000.0

// ErrCoordOutOfRange marks malformed coordinates; match with errors.Is.
var ErrCoordOutOfRange = errors.New("geo: coordinate out of range")

// ValidateCoord rejects malformed coordinates before they reach any
// geometry routine.
func ValidateCoord(c models.Coord) error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %.6f not in [-90, 90]", ErrCoordOutOfRange, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %.6f not in [-180, 180]", ErrCoordOutOfRange, c.Lon)
	}
	return nil
}

// Haversine returns the great-circle distance between two coordinates in meters.
func Haversine(a, b models.Coord) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusM * c
}

// SpeedKmh converts meters travelled over elapsed seconds to km/h.
// Callers must reject non-positive elapsed values before calling.
func SpeedKmh(distanceM, elapsedSec float64) float64 {
	return distanceM / elapsedSec * 3.6
}

// PathLengthM sums great-circle segment lengths along an ordered coordinate
// sequence.
func PathLengthM(coords []models.Coord) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Haversine(coords[i-1], coords[i])
	}
	return total
}

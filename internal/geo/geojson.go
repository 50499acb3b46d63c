package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/example/territory-run/internal/models"
)

// BoundaryToGeoJSON encodes a territory ring as a GeoJSON Polygon for storage.
func BoundaryToGeoJSON(ring []models.Coord) ([]byte, error) {
	if len(ring) < 3 {
		return nil, fmt.Errorf("boundary needs at least 3 points, got %d", len(ring))
	}
	return geojson.NewGeometry(orb.Polygon{toOrbRing(ring)}).MarshalJSON()
}

// BoundaryFromGeoJSON decodes a stored GeoJSON Polygon back into a ring.
// The closing duplicate point GeoJSON requires is stripped.
func BoundaryFromGeoJSON(data []byte) ([]models.Coord, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok || len(poly) == 0 {
		return nil, fmt.Errorf("boundary is not a polygon")
	}
	outer := poly[0]
	if len(outer) > 1 && outer[0] == outer[len(outer)-1] {
		outer = outer[:len(outer)-1]
	}
	ring := make([]models.Coord, 0, len(outer))
	for _, p := range outer {
		ring = append(ring, models.Coord{Lat: p[1], Lon: p[0]})
	}
	return ring, nil
}

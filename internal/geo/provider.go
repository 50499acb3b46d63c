package geo

import (
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/example/territory-run/internal/models"
)

// Provider abstracts the polygon operations the capture engine needs. The
// production deployment can back it with a spatial database; Planar is the
// in-process implementation used by default.
type Provider interface {
	// Contains reports whether the point lies inside the ring.
	Contains(p models.Coord, ring []models.Coord) bool
	// AreaM2 returns the enclosed area of the ring in square meters.
	AreaM2(ring []models.Coord) float64
	// IntersectionAreaM2 returns the area of the geometric intersection of
	// two rings in square meters.
	IntersectionAreaM2(subject, clip []models.Coord) float64
	// DistanceM returns the great-circle distance between two points.
	DistanceM(a, b models.Coord) float64
}

// Planar projects coordinates onto a local tangent plane (equirectangular,
// centered on the clip ring) and works in planar meters from there. Fine for
// territory-sized polygons; not for continental ones.
type Planar struct{}

func (Planar) DistanceM(a, b models.Coord) float64 { return Haversine(a, b) }

func (Planar) Contains(p models.Coord, ring []models.Coord) bool {
	if len(ring) < 3 {
		return false
	}
	return planar.PolygonContains(orb.Polygon{toOrbRing(ring)}, orb.Point{p.Lon, p.Lat})
}

func (Planar) AreaM2(ring []models.Coord) float64 {
	if len(ring) < 3 {
		return 0
	}
	origin := centroid(ring)
	return math.Abs(shoelace(projectRing(origin, ring)))
}

func (Planar) IntersectionAreaM2(subject, clip []models.Coord) float64 {
	if len(subject) < 3 || len(clip) < 3 {
		return 0
	}
	// Both rings share the clip-centered projection so the overlap is
	// measured in the same model as the clip ring's own area.
	origin := centroid(clip)
	sub := polyclip.Polygon{projectRing(origin, subject)}
	clp := polyclip.Polygon{projectRing(origin, clip)}
	out := sub.Construct(polyclip.INTERSECTION, clp)
	var area float64
	for _, contour := range out {
		area += math.Abs(shoelace(contour))
	}
	return area
}

func toOrbRing(ring []models.Coord) orb.Ring {
	r := make(orb.Ring, 0, len(ring)+1)
	for _, c := range ring {
		r = append(r, orb.Point{c.Lon, c.Lat})
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

func centroid(ring []models.Coord) models.Coord {
	var lat, lon float64
	for _, c := range ring {
		lat += c.Lat
		lon += c.Lon
	}
	n := float64(len(ring))
	return models.Coord{Lat: lat / n, Lon: lon / n}
}

// projectRing maps geographic coordinates to planar meters relative to origin.
func projectRing(origin models.Coord, ring []models.Coord) polyclip.Contour {
	cosLat := math.Cos(origin.Lat * math.Pi / 180)
	out := make(polyclip.Contour, 0, len(ring))
	for _, c := range ring {
		x := (c.Lon - origin.Lon) * math.Pi / 180 * EarthRadiusM * cosLat
		y := (c.Lat - origin.Lat) * math.Pi / 180 * EarthRadiusM
		out = append(out, polyclip.Point{X: x, Y: y})
	}
	return out
}

func shoelace(c polyclip.Contour) float64 {
	var sum float64
	n := len(c)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return sum / 2
}

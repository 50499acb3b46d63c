// Package pathgeo scores a finalized closed-path candidate against a
// territory boundary.
package pathgeo

import (
	"fmt"

	"github.com/example/territory-run/internal/geo"
	"github.com/example/territory-run/internal/models"
)

// DefaultCoverageThreshold is the minimum coverage percent for a capture.
const DefaultCoverageThreshold = 60.0

// Evaluation carries the computed geometry of one candidate path, returned
// to clients verbatim on both success and rejection.
type Evaluation struct {
	IsClosedLoop    bool    `json:"is_closed_loop"`
	PathLengthM     float64 `json:"path_length_m"`
	TerritoryAreaM2 float64 `json:"territory_area_m2"`
	OverlapAreaM2   float64 `json:"overlap_area_m2"`
	CoveragePercent float64 `json:"coverage_percent"`
}

type Evaluator struct {
	Provider          geo.Provider
	CoverageThreshold float64
}

func NewEvaluator(p geo.Provider) *Evaluator {
	return &Evaluator{Provider: p, CoverageThreshold: DefaultCoverageThreshold}
}

// Evaluate computes loop closure, path length, and the fractional overlap
// with the territory boundary. A territory with non-positive area is a data
// integrity error, not a zero score.
func (e *Evaluator) Evaluate(path, boundary []models.Coord) (Evaluation, error) {
	territoryArea := e.Provider.AreaM2(boundary)
	if territoryArea <= 0 {
		return Evaluation{}, fmt.Errorf("pathgeo: territory has degenerate boundary (area %.2f)", territoryArea)
	}

	ev := Evaluation{TerritoryAreaM2: territoryArea}
	if len(path) == 0 {
		return ev, nil
	}

	for i := 1; i < len(path); i++ {
		ev.PathLengthM += e.Provider.DistanceM(path[i-1], path[i])
	}

	// Exact equality: the path builder appends the start point as the
	// terminator, so no distance tolerance applies here.
	ev.IsClosedLoop = len(path) >= 2 && path[0] == path[len(path)-1]
	if ev.IsClosedLoop {
		ev.OverlapAreaM2 = e.Provider.IntersectionAreaM2(path, boundary)
		ev.CoveragePercent = ev.OverlapAreaM2 / territoryArea * 100
	}
	return ev, nil
}

// Passes applies the capture policy: closed loop and coverage at or above
// the threshold (inclusive).
func (e *Evaluator) Passes(ev Evaluation) bool {
	return ev.IsClosedLoop && ev.CoveragePercent >= e.CoverageThreshold
}

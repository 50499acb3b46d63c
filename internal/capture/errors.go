package capture

import (
	"errors"
	"fmt"

	"github.com/example/territory-run/internal/pathgeo"
)

// Sentinel errors surfaced to callers. None of these are retried by the
// engine itself.
var (
	// ErrNotFound covers unknown paths and territories, and paths not owned
	// by the caller. Ownership mismatches are not distinguished from missing
	// paths.
	ErrNotFound = errors.New("capture: not found")
	// ErrConflict is a duplicate open path for the (user, territory) pair.
	ErrConflict = errors.New("capture: open path already exists")
	// ErrPathClosed means the path already reached a terminal state.
	ErrPathClosed = errors.New("capture: path is closed")
	// ErrNoActiveTeam is a precondition failure: captures are team actions.
	ErrNoActiveTeam = errors.New("capture: user has no active team")
	// ErrEnergyExhausted leaves the path open; the user can retry after
	// replenishment or the next daily reset.
	ErrEnergyExhausted = errors.New("capture: not enough energy")
	// ErrAlreadyOwned rejects presence capture of a territory the caller's
	// team already holds.
	ErrAlreadyOwned = errors.New("capture: territory already held by team")
	// ErrOutOfBounds rejects presence capture from outside the boundary.
	ErrOutOfBounds = errors.New("capture: point outside territory boundary")
)

// GeometryRejectedError carries the computed diagnostics back to the client
// when a completed trace is not a closed loop or covers too little of the
// territory. The path is marked rejected; a new attempt starts a fresh path.
type GeometryRejectedError struct {
	Evaluation pathgeo.Evaluation
}

func (e *GeometryRejectedError) Error() string {
	if !e.Evaluation.IsClosedLoop {
		return "capture: traced path is not a closed loop"
	}
	return fmt.Sprintf("capture: coverage %.1f%% below threshold (overlap %.0f m2 of %.0f m2)",
		e.Evaluation.CoveragePercent, e.Evaluation.OverlapAreaM2, e.Evaluation.TerritoryAreaM2)
}

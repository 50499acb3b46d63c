// Package capture is the state machine tying motion validation, path
// geometry, energy, and bonuses together into capture decisions.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/territory-run/internal/bonus"
	"github.com/example/territory-run/internal/energy"
	"github.com/example/territory-run/internal/geo"
	"github.com/example/territory-run/internal/models"
	"github.com/example/territory-run/internal/motion"
	"github.com/example/territory-run/internal/observability"
	"github.com/example/territory-run/internal/pathgeo"
	"github.com/example/territory-run/internal/storage"
)

// DefaultWindowSize is how many recent samples each new point is validated
// against.
const DefaultWindowSize = 5

// TeamRoster resolves a user's current active team. nil means no membership.
type TeamRoster interface {
	ActiveTeam(ctx context.Context, userID string) (*models.Team, error)
}

// PingPublisher receives a presence ping for every accepted sample.
type PingPublisher interface {
	PublishPing(ping models.PresencePing) error
}

type Service struct {
	Store     storage.Store
	Roster    TeamRoster
	Motion    *motion.Validator
	Evaluator *pathgeo.Evaluator
	Geo       geo.Provider
	Energy    *energy.Ledger
	Bonus     *bonus.Calculator
	Publisher PingPublisher // optional
	Logger    *slog.Logger

	WindowSize int
	EnergyCost int
	Now        func() time.Time

	locks pathLocks
}

func (s *Service) windowSize() int {
	if s.WindowSize > 0 {
		return s.WindowSize
	}
	return DefaultWindowSize
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// StartPath opens a capture attempt for (user, territory) with the first
// sample. At most one open path may exist per pair.
func (s *Service) StartPath(ctx context.Context, userID, territoryID string, first models.GpsSample) (*models.CapturePath, error) {
	if err := geo.ValidateCoord(first.Loc); err != nil {
		return nil, err
	}
	team, err := s.Roster.ActiveTeam(ctx, userID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNoActiveTeam
	}
	terr, err := s.Store.Territory(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	if terr == nil {
		return nil, ErrNotFound
	}

	p := &models.CapturePath{
		ID:          uuid.NewString(),
		UserID:      userID,
		TerritoryID: territoryID,
		Status:      models.PathOpen,
		Samples:     []models.GpsSample{first},
		PointsCount: 1,
		StartedAt:   s.now(),
	}
	if err := s.Store.CreatePath(ctx, p); err != nil {
		if err == storage.ErrDuplicateOpenPath {
			return nil, ErrConflict
		}
		return nil, err
	}
	observability.OpenPaths.Inc()
	s.Logger.Info("path_started", "path_id", p.ID, "user_id", userID, "territory_id", territoryID)
	return p, nil
}

// AddPoint validates the candidate sample against the last few recorded
// points and appends it only if the window passes. Appends on the same path
// are serialized; concurrent calls never validate against a stale window.
func (s *Service) AddPoint(ctx context.Context, pathID, userID string, sample models.GpsSample) (int, error) {
	if err := geo.ValidateCoord(sample.Loc); err != nil {
		return 0, err
	}

	unlock := s.locks.lock(pathID)
	defer unlock()

	p, err := s.Store.Path(ctx, pathID)
	if err != nil {
		return 0, err
	}
	if p == nil || p.UserID != userID {
		return 0, ErrNotFound
	}
	if p.Status != models.PathOpen {
		return 0, ErrPathClosed
	}

	window, err := s.Store.LastSamples(ctx, pathID, s.windowSize())
	if err != nil {
		return 0, err
	}
	if err := s.Motion.ValidateStrict(append(window, sample)); err != nil {
		observability.CaptureRejections.WithLabelValues("motion").Inc()
		return 0, err
	}

	count, err := s.Store.AppendSample(ctx, pathID, sample)
	if err != nil {
		return 0, err
	}
	observability.PointsAppended.Inc()

	if s.Publisher != nil {
		if team, err := s.Roster.ActiveTeam(ctx, userID); err == nil && team != nil {
			ping := models.PresencePing{UserID: userID, TeamID: team.ID, Loc: sample.Loc, At: sample.Timestamp}
			if err := s.Publisher.PublishPing(ping); err != nil {
				s.Logger.Warn("ping_publish_failed", "path_id", pathID, "error", err)
			}
		}
	}
	return count, nil
}

// CompletePath finalizes the attempt: energy gate first, then geometry. An
// energy failure leaves the path open for retry; a geometry failure marks
// the path rejected for good.
func (s *Service) CompletePath(ctx context.Context, pathID, userID string) (*models.CaptureResult, error) {
	unlock := s.locks.lock(pathID)
	defer unlock()

	p, err := s.Store.Path(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.UserID != userID {
		return nil, ErrNotFound
	}
	if p.Status != models.PathOpen {
		return nil, ErrPathClosed
	}

	team, err := s.Roster.ActiveTeam(ctx, userID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNoActiveTeam
	}
	terr, err := s.Store.Territory(ctx, p.TerritoryID)
	if err != nil {
		return nil, err
	}
	if terr == nil {
		return nil, ErrNotFound
	}

	cost := s.EnergyCost
	if cost <= 0 {
		cost = energy.DefaultCaptureCost
	}
	ok, err := s.Energy.TryDebit(ctx, userID, cost)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.CaptureRejections.WithLabelValues("energy").Inc()
		return nil, ErrEnergyExhausted
	}
	observability.EnergyDebits.Inc()

	samples, err := s.Store.PathSamples(ctx, pathID)
	if err != nil {
		return nil, err
	}
	ring := make([]models.Coord, 0, len(samples)+1)
	for _, smp := range samples {
		ring = append(ring, smp.Loc)
	}
	if len(ring) > 0 {
		// the start point terminates the loop
		ring = append(ring, ring[0])
	}

	now := s.now()
	ev, err := s.Evaluator.Evaluate(ring, terr.Boundary)
	if err != nil {
		return nil, err
	}
	if !s.Evaluator.Passes(ev) {
		observability.CaptureRejections.WithLabelValues("geometry").Inc()
		if err := s.Store.ClosePath(ctx, pathID, models.PathRejected, now); err != nil {
			return nil, err
		}
		observability.OpenPaths.Dec()
		return nil, &GeometryRejectedError{Evaluation: ev}
	}

	total, err := s.Bonus.TotalBonus(ctx, team.ID, terr.ID)
	if err != nil {
		return nil, err
	}
	points := bonus.PathPoints(ev.CoveragePercent, total)

	rec := &models.TerritoryCapture{
		ID:          uuid.NewString(),
		TerritoryID: terr.ID,
		TeamID:      team.ID,
		UserID:      userID,
		Method:      models.MethodPathTrace,
		Points:      points,
		Active:      true,
		CapturedAt:  now,
	}
	if err := s.Store.TransferOwnership(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.Store.ClosePath(ctx, pathID, models.PathCompleted, now); err != nil {
		return nil, err
	}
	observability.OpenPaths.Dec()
	observability.CapturesTotal.WithLabelValues(models.MethodPathTrace).Inc()
	s.Logger.Info("territory_captured",
		"territory_id", terr.ID, "team_id", team.ID, "user_id", userID,
		"method", models.MethodPathTrace, "coverage_pct", ev.CoveragePercent, "points", points)

	return &models.CaptureResult{
		TerritoryName:   terr.Name,
		TeamName:        team.Name,
		Method:          models.MethodPathTrace,
		CoveragePercent: ev.CoveragePercent,
		PathLengthM:     ev.PathLengthM,
		Points:          points,
	}, nil
}

// CaptureByPresence claims a territory from a single in-polygon position.
// No energy or motion gate applies; the award is the territory's base value.
func (s *Service) CaptureByPresence(ctx context.Context, userID, territoryID string, point models.Coord) (*models.CaptureResult, error) {
	if err := geo.ValidateCoord(point); err != nil {
		return nil, err
	}
	team, err := s.Roster.ActiveTeam(ctx, userID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNoActiveTeam
	}
	terr, err := s.Store.Territory(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	if terr == nil {
		return nil, ErrNotFound
	}

	current, err := s.Store.ActiveCapture(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.TeamID == team.ID {
		return nil, ErrAlreadyOwned
	}
	if !s.Geo.Contains(point, terr.Boundary) {
		observability.CaptureRejections.WithLabelValues("out_of_bounds").Inc()
		return nil, ErrOutOfBounds
	}

	rec := &models.TerritoryCapture{
		ID:          uuid.NewString(),
		TerritoryID: terr.ID,
		TeamID:      team.ID,
		UserID:      userID,
		Method:      models.MethodPresence,
		Points:      terr.BasePoints,
		Active:      true,
		CapturedAt:  s.now(),
	}
	if err := s.Store.TransferOwnership(ctx, rec); err != nil {
		return nil, err
	}
	observability.CapturesTotal.WithLabelValues(models.MethodPresence).Inc()
	s.Logger.Info("territory_captured",
		"territory_id", terr.ID, "team_id", team.ID, "user_id", userID,
		"method", models.MethodPresence, "points", terr.BasePoints)

	return &models.CaptureResult{
		TerritoryName: terr.Name,
		TeamName:      team.Name,
		Method:        models.MethodPresence,
		Points:        terr.BasePoints,
	}, nil
}

// Fortify raises the fortification level of the caller's team's active
// capture, at most once per 24h and never past level 5.
func (s *Service) Fortify(ctx context.Context, userID, territoryID string) (int, error) {
	team, err := s.Roster.ActiveTeam(ctx, userID)
	if err != nil {
		return 0, err
	}
	if team == nil {
		return 0, ErrNoActiveTeam
	}
	current, err := s.Store.ActiveCapture(ctx, territoryID)
	if err != nil {
		return 0, err
	}
	if current == nil || current.TeamID != team.ID {
		return 0, ErrNotFound
	}
	return s.Store.IncrementFortification(ctx, current.ID)
}

// pathLocks serializes append/complete per path id. Entries are tiny and
// live for the process lifetime.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *pathLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

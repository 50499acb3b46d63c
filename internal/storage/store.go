package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/territory-run/internal/models"
)

var (
	// ErrDuplicateOpenPath is returned by CreatePath when the user already
	// has an open path for the territory.
	ErrDuplicateOpenPath = errors.New("storage: open path already exists for user and territory")
	// ErrFortifyUnavailable is returned when a capture cannot be fortified:
	// inactive, at max level, or fortified within the last 24h.
	ErrFortifyUnavailable = errors.New("storage: fortification unavailable")
)

// Store defines persistence for the capture engine. Paths and samples are
// append-only; captures and energy balances are the only mutable state and
// implementations must make TransferOwnership and DebitIfSufficient atomic.
type Store interface {
	CreatePath(ctx context.Context, p *models.CapturePath) error
	Path(ctx context.Context, id string) (*models.CapturePath, error)
	AppendSample(ctx context.Context, pathID string, s models.GpsSample) (int, error)
	LastSamples(ctx context.Context, pathID string, n int) ([]models.GpsSample, error)
	PathSamples(ctx context.Context, pathID string) ([]models.GpsSample, error)
	ClosePath(ctx context.Context, pathID, status string, at time.Time) error

	Territory(ctx context.Context, id string) (*models.Territory, error)
	ActiveCapture(ctx context.Context, territoryID string) (*models.TerritoryCapture, error)
	// TransferOwnership deactivates any active capture for the territory
	// (stamping LostAt) and inserts the new one as a single atomic step.
	TransferOwnership(ctx context.Context, c *models.TerritoryCapture) error
	IncrementFortification(ctx context.Context, captureID string) (int, error)

	EnergyBalance(ctx context.Context, userID string) (models.EnergyBalance, bool, error)
	SaveEnergyBalance(ctx context.Context, b models.EnergyBalance) error
	DebitIfSufficient(ctx context.Context, userID string, cost int) (bool, error)
	CreditEnergy(ctx context.Context, userID string, amount, capacity int) error
}

const maxFortification = 5

// MemoryStore backs local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	paths     map[string]*models.CapturePath
	samples   map[string][]models.GpsSample
	terrs     map[string]*models.Territory
	captures  map[string][]*models.TerritoryCapture // by territory, newest last
	fortified map[string]time.Time                  // capture id -> last fortify
	energy    map[string]models.EnergyBalance
	teams     map[string]models.Team // user id -> active team
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		paths:     make(map[string]*models.CapturePath),
		samples:   make(map[string][]models.GpsSample),
		terrs:     make(map[string]*models.Territory),
		captures:  make(map[string][]*models.TerritoryCapture),
		fortified: make(map[string]time.Time),
		energy:    make(map[string]models.EnergyBalance),
		teams:     make(map[string]models.Team),
	}
}

// SeedTerritory and SeedTeam exist for local runs and tests; territory and
// roster administration is outside the engine.
func (m *MemoryStore) SeedTerritory(t *models.Territory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terrs[t.ID] = t
}

func (m *MemoryStore) SeedTeam(userID string, team models.Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[userID] = team
}

func (m *MemoryStore) CreatePath(ctx context.Context, p *models.CapturePath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.paths {
		if existing.UserID == p.UserID && existing.TerritoryID == p.TerritoryID && existing.Status == models.PathOpen {
			return ErrDuplicateOpenPath
		}
	}
	cp := *p
	m.paths[p.ID] = &cp
	m.samples[p.ID] = append([]models.GpsSample(nil), p.Samples...)
	return nil
}

func (m *MemoryStore) Path(ctx context.Context, id string) (*models.CapturePath, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.paths[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) AppendSample(ctx context.Context, pathID string, s models.GpsSample) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[pathID]
	if !ok {
		return 0, errors.New("storage: unknown path")
	}
	m.samples[pathID] = append(m.samples[pathID], s)
	p.PointsCount = len(m.samples[pathID])
	return p.PointsCount, nil
}

func (m *MemoryStore) LastSamples(ctx context.Context, pathID string, n int) ([]models.GpsSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.samples[pathID]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]models.GpsSample(nil), all...), nil
}

func (m *MemoryStore) PathSamples(ctx context.Context, pathID string) ([]models.GpsSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.GpsSample(nil), m.samples[pathID]...), nil
}

func (m *MemoryStore) ClosePath(ctx context.Context, pathID, status string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[pathID]
	if !ok {
		return errors.New("storage: unknown path")
	}
	p.Status = status
	p.EndedAt = &at
	return nil
}

func (m *MemoryStore) Territory(ctx context.Context, id string) (*models.Territory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.terrs[id]
	if !ok {
		return nil, nil
	}
	ct := *t
	return &ct, nil
}

func (m *MemoryStore) ActiveCapture(ctx context.Context, territoryID string) (*models.TerritoryCapture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.captures[territoryID] {
		if c.Active {
			cc := *c
			return &cc, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) TransferOwnership(ctx context.Context, c *models.TerritoryCapture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, prev := range m.captures[c.TerritoryID] {
		if prev.Active {
			prev.Active = false
			lost := c.CapturedAt
			prev.LostAt = &lost
		}
	}
	cc := *c
	m.captures[c.TerritoryID] = append(m.captures[c.TerritoryID], &cc)
	return nil
}

func (m *MemoryStore) IncrementFortification(ctx context.Context, captureID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.captures {
		for _, c := range list {
			if c.ID != captureID {
				continue
			}
			if !c.Active || c.Fortification >= maxFortification {
				return 0, ErrFortifyUnavailable
			}
			if last, ok := m.fortified[captureID]; ok && time.Since(last) < 24*time.Hour {
				return 0, ErrFortifyUnavailable
			}
			c.Fortification++
			m.fortified[captureID] = time.Now()
			return c.Fortification, nil
		}
	}
	return 0, ErrFortifyUnavailable
}

func (m *MemoryStore) EnergyBalance(ctx context.Context, userID string) (models.EnergyBalance, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.energy[userID]
	return b, ok, nil
}

func (m *MemoryStore) SaveEnergyBalance(ctx context.Context, b models.EnergyBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.energy[b.UserID] = b
	return nil
}

func (m *MemoryStore) DebitIfSufficient(ctx context.Context, userID string, cost int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.energy[userID]
	if !ok || b.Remaining < cost {
		return false, nil
	}
	b.Remaining -= cost
	m.energy[userID] = b
	return true, nil
}

func (m *MemoryStore) CreditEnergy(ctx context.Context, userID string, amount, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.energy[userID]
	b.UserID = userID
	b.Remaining += amount
	if b.Remaining > capacity {
		b.Remaining = capacity
	}
	m.energy[userID] = b
	return nil
}

// ActiveTeam satisfies the capture service's roster interface.
func (m *MemoryStore) ActiveTeam(ctx context.Context, userID string) (*models.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teams[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

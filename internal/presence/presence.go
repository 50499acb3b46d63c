// Package presence tracks the most recent location ping per runner so the
// team-activity bonus can count active teammates.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/example/territory-run/internal/models"
)

// Tracker records pings and answers the recent-ping count query.
type Tracker interface {
	RecordPing(ctx context.Context, ping models.PresencePing) error
	ActiveTeammates(ctx context.Context, teamID string, window time.Duration) (int, error)
}

// Memory is the no-Redis fallback for local runs and tests.
type Memory struct {
	mu    sync.RWMutex
	pings map[string]map[string]time.Time // team id -> user id -> last ping
}

func NewMemory() *Memory {
	return &Memory{pings: make(map[string]map[string]time.Time)}
}

func (m *Memory) RecordPing(ctx context.Context, ping models.PresencePing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser, ok := m.pings[ping.TeamID]
	if !ok {
		byUser = make(map[string]time.Time)
		m.pings[ping.TeamID] = byUser
	}
	if ping.At.After(byUser[ping.UserID]) {
		byUser[ping.UserID] = ping.At
	}
	return nil
}

func (m *Memory) ActiveTeammates(ctx context.Context, teamID string, window time.Duration) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().Add(-window)
	count := 0
	for _, at := range m.pings[teamID] {
		if at.After(cutoff) {
			count++
		}
	}
	return count, nil
}

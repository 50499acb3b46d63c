package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/territory-run/internal/models"
)

func openPath(id, userID, territoryID string) *models.CapturePath {
	return &models.CapturePath{
		ID:          id,
		UserID:      userID,
		TerritoryID: territoryID,
		Status:      models.PathOpen,
		Samples:     []models.GpsSample{{Loc: models.Coord{Lat: 1, Lon: 2}}},
		PointsCount: 1,
		StartedAt:   time.Now(),
	}
}

func TestCreatePathDuplicateGuard(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if err := m.CreatePath(ctx, openPath("p1", "u1", "t1")); err != nil {
		t.Fatal(err)
	}
	if err := m.CreatePath(ctx, openPath("p2", "u1", "t1")); !errors.Is(err, ErrDuplicateOpenPath) {
		t.Fatalf("expected ErrDuplicateOpenPath, got %v", err)
	}
	// different territory or user is fine
	if err := m.CreatePath(ctx, openPath("p3", "u1", "t2")); err != nil {
		t.Fatal(err)
	}
	if err := m.CreatePath(ctx, openPath("p4", "u2", "t1")); err != nil {
		t.Fatal(err)
	}

	// once closed, the pair frees up
	if err := m.ClosePath(ctx, "p1", models.PathRejected, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := m.CreatePath(ctx, openPath("p5", "u1", "t1")); err != nil {
		t.Fatalf("closed path must not block a new one: %v", err)
	}
}

func TestSampleWindowOrdering(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.CreatePath(ctx, openPath("p1", "u1", "t1")); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i < 8; i++ {
		s := models.GpsSample{Loc: models.Coord{Lat: float64(i)}, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		count, err := m.AppendSample(ctx, "p1", s)
		if err != nil {
			t.Fatal(err)
		}
		if count != i+1 {
			t.Fatalf("append %d: expected count %d, got %d", i, i+1, count)
		}
	}

	window, err := m.LastSamples(ctx, "p1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(window) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(window))
	}
	// chronological, most recent last
	for i := 1; i < len(window); i++ {
		if !window[i].Timestamp.After(window[i-1].Timestamp) {
			t.Fatalf("window out of order at %d", i)
		}
	}
	if window[4].Loc.Lat != 7 {
		t.Fatalf("expected newest sample last, got lat %f", window[4].Loc.Lat)
	}
}

func TestTransferOwnershipKeepsOneActive(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	first := &models.TerritoryCapture{ID: "c1", TerritoryID: "t1", TeamID: "red", Active: true, CapturedAt: time.Now()}
	second := &models.TerritoryCapture{ID: "c2", TerritoryID: "t1", TeamID: "blue", Active: true, CapturedAt: time.Now().Add(time.Hour)}

	if err := m.TransferOwnership(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := m.TransferOwnership(ctx, second); err != nil {
		t.Fatal(err)
	}

	active, err := m.ActiveCapture(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if active == nil || active.ID != "c2" {
		t.Fatalf("expected c2 active, got %+v", active)
	}

	// history keeps the superseded record with a loss timestamp
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.captures["t1"]) != 2 {
		t.Fatalf("expected 2 records, got %d", len(m.captures["t1"]))
	}
	old := m.captures["t1"][0]
	if old.Active || old.LostAt == nil {
		t.Fatalf("superseded capture must be inactive with LostAt set: %+v", old)
	}
	if !old.LostAt.Equal(second.CapturedAt) {
		t.Fatalf("LostAt should match the new CapturedAt, got %v", old.LostAt)
	}
}

func TestFortificationRules(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	c := &models.TerritoryCapture{ID: "c1", TerritoryID: "t1", TeamID: "red", Active: true, CapturedAt: time.Now()}
	if err := m.TransferOwnership(ctx, c); err != nil {
		t.Fatal(err)
	}

	level, err := m.IncrementFortification(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if level != 1 {
		t.Fatalf("expected 1, got %d", level)
	}
	// cooldown
	if _, err := m.IncrementFortification(ctx, "c1"); !errors.Is(err, ErrFortifyUnavailable) {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}
	// unknown id
	if _, err := m.IncrementFortification(ctx, "nope"); !errors.Is(err, ErrFortifyUnavailable) {
		t.Fatalf("expected ErrFortifyUnavailable, got %v", err)
	}

	// a deactivated capture cannot be fortified
	next := &models.TerritoryCapture{ID: "c2", TerritoryID: "t1", TeamID: "blue", Active: true, CapturedAt: time.Now()}
	if err := m.TransferOwnership(ctx, next); err != nil {
		t.Fatal(err)
	}
	if _, err := m.IncrementFortification(ctx, "c1"); !errors.Is(err, ErrFortifyUnavailable) {
		t.Fatalf("inactive capture, got %v", err)
	}
}

func TestDebitIfSufficient(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	// no record means no funds
	ok, err := m.DebitIfSufficient(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("missing balance must not debit")
	}

	if err := m.SaveEnergyBalance(ctx, models.EnergyBalance{UserID: "u1", Remaining: 15}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := m.DebitIfSufficient(ctx, "u1", 10); !ok {
		t.Fatal("15 covers 10")
	}
	if ok, _ := m.DebitIfSufficient(ctx, "u1", 10); ok {
		t.Fatal("5 does not cover 10")
	}
	b, _, err := m.EnergyBalance(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Remaining != 5 {
		t.Fatalf("expected 5 remaining, got %d", b.Remaining)
	}
}

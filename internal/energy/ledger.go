// Package energy implements the per-user daily energy budget that gates
// capture-path completions.
package energy

import (
	"context"
	"time"

	"github.com/example/territory-run/internal/models"
)

// Store is the persistence the ledger needs. DebitIfSufficient must be
// atomic: check and subtract in one step (conditional UPDATE, mutex, etc.).
type Store interface {
	EnergyBalance(ctx context.Context, userID string) (models.EnergyBalance, bool, error)
	SaveEnergyBalance(ctx context.Context, b models.EnergyBalance) error
	DebitIfSufficient(ctx context.Context, userID string, cost int) (bool, error)
	CreditEnergy(ctx context.Context, userID string, amount, capacity int) error
}

const (
	DefaultCapacity = 100
	// DefaultCaptureCost is debited for one capture-path completion.
	DefaultCaptureCost = 10
)

type Ledger struct {
	Store    Store
	Capacity int
	Now      func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store, Capacity: DefaultCapacity, Now: time.Now}
}

// TryDebit gates a capture attempt. If the user has no balance record, or the
// record was last reset before today, the balance resets to capacity and the
// call succeeds without debiting: the reset itself satisfies the gate for the
// first attempt of the day. Otherwise the debit happens only if sufficient.
func (l *Ledger) TryDebit(ctx context.Context, userID string, cost int) (bool, error) {
	today := startOfDay(l.Now())

	bal, found, err := l.Store.EnergyBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	if !found || bal.LastReset.Before(today) {
		fresh := models.EnergyBalance{UserID: userID, Remaining: l.Capacity, LastReset: today}
		if err := l.Store.SaveEnergyBalance(ctx, fresh); err != nil {
			return false, err
		}
		return true, nil
	}

	return l.Store.DebitIfSufficient(ctx, userID, cost)
}

// Credit adds purchased energy, clamped at capacity.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int) error {
	return l.Store.CreditEnergy(ctx, userID, amount, l.Capacity)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package energy

import (
	"context"
	"testing"
	"time"

	"github.com/example/territory-run/internal/models"
)

// fakeStore is an in-memory Store with the same atomicity contract.
type fakeStore struct {
	balances map[string]models.EnergyBalance
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{balances: map[string]models.EnergyBalance{}}
}

func (f *fakeStore) EnergyBalance(ctx context.Context, userID string) (models.EnergyBalance, bool, error) {
	b, ok := f.balances[userID]
	return b, ok, nil
}

func (f *fakeStore) SaveEnergyBalance(ctx context.Context, b models.EnergyBalance) error {
	f.saves++
	f.balances[b.UserID] = b
	return nil
}

func (f *fakeStore) DebitIfSufficient(ctx context.Context, userID string, cost int) (bool, error) {
	b, ok := f.balances[userID]
	if !ok || b.Remaining < cost {
		return false, nil
	}
	b.Remaining -= cost
	f.balances[userID] = b
	return true, nil
}

func (f *fakeStore) CreditEnergy(ctx context.Context, userID string, amount, capacity int) error {
	b := f.balances[userID]
	b.UserID = userID
	b.Remaining += amount
	if b.Remaining > capacity {
		b.Remaining = capacity
	}
	f.balances[userID] = b
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestFirstAttemptOfDayResetsAndPasses(t *testing.T) {
	store := newFakeStore()
	l := NewLedger(store)
	noon := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.Now = fixedClock(noon)

	ok, err := l.TryDebit(context.Background(), "u1", DefaultCaptureCost)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("unknown user must get a fresh budget and pass")
	}
	b := store.balances["u1"]
	if b.Remaining != DefaultCapacity {
		t.Fatalf("reset should not debit, remaining=%d", b.Remaining)
	}
	if !b.LastReset.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("reset anchored at start of day, got %v", b.LastReset)
	}
}

func TestSubsequentAttemptsDebit(t *testing.T) {
	store := newFakeStore()
	l := NewLedger(store)
	noon := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.Now = fixedClock(noon)
	ctx := context.Background()

	if ok, _ := l.TryDebit(ctx, "u1", 10); !ok {
		t.Fatal("reset attempt")
	}
	if ok, _ := l.TryDebit(ctx, "u1", 10); !ok {
		t.Fatal("second attempt should debit")
	}
	if got := store.balances["u1"].Remaining; got != 90 {
		t.Fatalf("expected 90 remaining, got %d", got)
	}
}

func TestInsufficientBalanceBlocks(t *testing.T) {
	store := newFakeStore()
	l := NewLedger(store)
	noon := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.Now = fixedClock(noon)
	store.balances["u1"] = models.EnergyBalance{
		UserID:    "u1",
		Remaining: 5,
		LastReset: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	ok, err := l.TryDebit(context.Background(), "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("5 remaining cannot cover a cost of 10")
	}
	if got := store.balances["u1"].Remaining; got != 5 {
		t.Fatalf("failed debit must not change balance, got %d", got)
	}
}

func TestStaleBalanceResetsNextDay(t *testing.T) {
	store := newFakeStore()
	l := NewLedger(store)
	l.Now = fixedClock(time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC))
	store.balances["u1"] = models.EnergyBalance{
		UserID:    "u1",
		Remaining: 0,
		LastReset: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	ok, err := l.TryDebit(context.Background(), "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("yesterday's empty budget must reset today")
	}
	if got := store.balances["u1"].Remaining; got != DefaultCapacity {
		t.Fatalf("expected full capacity after reset, got %d", got)
	}
}

func TestCreditClampsAtCapacity(t *testing.T) {
	store := newFakeStore()
	l := NewLedger(store)
	store.balances["u1"] = models.EnergyBalance{UserID: "u1", Remaining: 95}

	if err := l.Credit(context.Background(), "u1", 20); err != nil {
		t.Fatal(err)
	}
	if got := store.balances["u1"].Remaining; got != DefaultCapacity {
		t.Fatalf("expected clamp at %d, got %d", DefaultCapacity, got)
	}
}

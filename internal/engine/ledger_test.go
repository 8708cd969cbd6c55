package engine

import (
	"reflect"
	"testing"
	"time"

	"milecard/internal/core"
)

func cents(c int64) core.Money { return core.Money{Cents: c} }

func tx(user, card int64, category string, amountCents int64, date time.Time) core.Transaction {
	return core.Transaction{UserID: user, CardID: card, Category: category, Amount: cents(amountCents), Date: date}
}

var jan15 = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestApplyTransaction_CapResolution(t *testing.T) {
	caps := []core.Cap{
		{ID: 1, CardID: 1, Scope: core.CategoryScope("dining"), Amount: cents(100_000)},
		{ID: 2, CardID: 1, Scope: core.GlobalScope(), Amount: cents(50_000)},
	}

	tests := []struct {
		name          string
		tx            core.Transaction
		wantRemaining *int64
	}{
		{
			name:          "category cap wins over global",
			tx:            tx(7, 1, "dining", 30_000, jan15),
			wantRemaining: int64p(70_000),
		},
		{
			name:          "global cap used when category has none",
			tx:            tx(7, 1, "groceries", 30_000, jan15),
			wantRemaining: int64p(20_000),
		},
		{
			name:          "no cap at all leaves remaining unset",
			tx:            tx(7, 2, "dining", 30_000, jan15),
			wantRemaining: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := ApplyTransaction(nil, caps, tt.tx)
			if len(states) != 1 {
				t.Fatalf("got %d state rows, want 1", len(states))
			}
			s := states[0]
			if s.TotalSpent != tt.tx.Amount {
				t.Errorf("TotalSpent = %v, want %v", s.TotalSpent, tt.tx.Amount)
			}
			if tt.wantRemaining == nil {
				if s.Remaining != nil {
					t.Errorf("Remaining = %v, want unset", s.Remaining.Cents)
				}
				return
			}
			if s.Remaining == nil {
				t.Fatalf("Remaining unset, want %d", *tt.wantRemaining)
			}
			if s.Remaining.Cents != *tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", s.Remaining.Cents, *tt.wantRemaining)
			}
		})
	}
}

func TestApplyTransaction_AccumulatesPerMonth(t *testing.T) {
	caps := []core.Cap{{ID: 1, CardID: 1, Scope: core.CategoryScope("dining"), Amount: cents(100_000)}}

	states := ApplyTransaction(nil, caps, tx(7, 1, "dining", 60_000, jan15))
	states = ApplyTransaction(states, caps, tx(7, 1, "dining", 50_000, jan15.Add(24*time.Hour)))

	if len(states) != 1 {
		t.Fatalf("got %d rows, want 1", len(states))
	}
	if states[0].TotalSpent.Cents != 110_000 {
		t.Errorf("TotalSpent = %d, want 110000", states[0].TotalSpent.Cents)
	}
	// Over the cap: remaining clips at zero, never negative.
	if states[0].Remaining == nil || states[0].Remaining.Cents != 0 {
		t.Errorf("Remaining = %v, want 0", states[0].Remaining)
	}

	// A transaction in the next month opens a fresh row.
	feb := time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC)
	states = ApplyTransaction(states, caps, tx(7, 1, "dining", 10_000, feb))
	if len(states) != 2 {
		t.Fatalf("got %d rows after month rollover, want 2", len(states))
	}
	if states[1].Month != core.MonthKey("2025-02") {
		t.Errorf("Month = %q, want 2025-02", states[1].Month)
	}
}

func TestApplyTransaction_DoesNotMutateInput(t *testing.T) {
	caps := []core.Cap{{ID: 1, CardID: 1, Scope: core.GlobalScope(), Amount: cents(100_000)}}
	orig := ApplyTransaction(nil, caps, tx(7, 1, "dining", 10_000, jan15))
	snapshot := make([]core.SpendingState, len(orig))
	copy(snapshot, orig)

	ApplyTransaction(orig, caps, tx(7, 1, "dining", 99_000, jan15))

	if !reflect.DeepEqual(orig, snapshot) {
		t.Errorf("input states mutated: %+v != %+v", orig, snapshot)
	}
}

func TestReplay_Deterministic(t *testing.T) {
	caps := []core.Cap{
		{ID: 1, CardID: 1, Scope: core.CategoryScope("dining"), Amount: cents(100_000)},
		{ID: 2, CardID: 2, Scope: core.GlobalScope(), Amount: cents(40_000)},
	}
	log := []core.Transaction{
		tx(7, 1, "dining", 25_000, jan15),
		tx(7, 2, "travel", 18_000, jan15),
		tx(7, 1, "dining", 30_000, jan15.Add(48*time.Hour)),
		tx(7, 2, "groceries", 22_000, jan15.Add(72*time.Hour)),
	}

	first := Replay(caps, log)
	second := Replay(caps, log)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("replaying the same log twice diverged:\n%+v\n%+v", first, second)
	}
}

func TestDedupCaps_FirstSeenWins(t *testing.T) {
	caps := []core.Cap{
		{ID: 1, CardID: 1, Scope: core.GlobalScope(), Amount: cents(100_000)},
		{ID: 2, CardID: 1, Scope: core.GlobalScope(), Amount: cents(999_999)},
		{ID: 3, CardID: 1, Scope: core.CategoryScope("dining"), Amount: cents(50_000)},
		{ID: 4, CardID: 1, Scope: core.CategoryScope("dining"), Amount: cents(1)},
		{ID: 5, CardID: 2, Scope: core.GlobalScope(), Amount: cents(30_000)},
	}

	got := DedupCaps(caps)
	if len(got) != 3 {
		t.Fatalf("got %d caps after dedup, want 3", len(got))
	}
	wantIDs := []int64{1, 3, 5}
	for i, c := range got {
		if c.ID != wantIDs[i] {
			t.Errorf("caps[%d].ID = %d, want %d", i, c.ID, wantIDs[i])
		}
	}
}

func int64p(v int64) *int64 { return &v }

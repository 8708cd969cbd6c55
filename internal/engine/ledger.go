// Package engine implements the cap-aware recommendation and rewards
// computations. Everything here is a pure function over snapshots the
// caller already fetched: no I/O, no clocks unless passed in, so every
// result can be replayed deterministically.
package engine

import (
	"milecard/internal/core"
)

// DedupCaps keeps exactly one cap per logical (card, scope) key.
// Duplicate rows come from upstream data the engine cannot correct, so
// they are tolerated rather than rejected: first seen wins.
func DedupCaps(caps []core.Cap) []core.Cap {
	seen := make(map[core.CapKey]bool, len(caps))
	out := make([]core.Cap, 0, len(caps))
	for _, c := range caps {
		if seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		out = append(out, c)
	}
	return out
}

// CapFor resolves the cap applicable to (card, category): a
// category-specific cap wins over the card's global cap; absence of both
// means the key is uncapped. Caps must already be deduplicated.
func CapFor(caps []core.Cap, cardID int64, category string) (core.Cap, bool) {
	var global core.Cap
	var hasGlobal bool
	for _, c := range caps {
		if c.CardID != cardID {
			continue
		}
		if c.Scope == core.CategoryScope(category) {
			return c, true
		}
		if c.Scope.Global && !hasGlobal {
			global = c
			hasGlobal = true
		}
	}
	return global, hasGlobal
}

// ApplyTransaction folds one transaction into the monthly aggregates and
// returns the new state set. The input slice is never mutated, so a
// transaction log can be replayed over the same snapshot any number of
// times with identical results.
func ApplyTransaction(states []core.SpendingState, caps []core.Cap, tx core.Transaction) []core.SpendingState {
	caps = DedupCaps(caps)
	key := core.StateKey{
		UserID:   tx.UserID,
		CardID:   tx.CardID,
		Category: tx.Category,
		Month:    core.MonthOf(tx.Date),
	}

	out := make([]core.SpendingState, len(states))
	copy(out, states)

	for i, s := range out {
		if s.Key() == key {
			s.TotalSpent = core.Money{Cents: s.TotalSpent.Cents + tx.Amount.Cents}
			s.Remaining = remainingFor(caps, key.CardID, key.Category, s.TotalSpent)
			out[i] = s
			return out
		}
	}

	fresh := core.SpendingState{
		UserID:     key.UserID,
		CardID:     key.CardID,
		Category:   key.Category,
		Month:      key.Month,
		TotalSpent: tx.Amount,
	}
	fresh.Remaining = remainingFor(caps, key.CardID, key.Category, fresh.TotalSpent)
	return append(out, fresh)
}

// Replay folds a transaction log from empty state, in order.
func Replay(caps []core.Cap, txs []core.Transaction) []core.SpendingState {
	var states []core.SpendingState
	for _, tx := range txs {
		states = ApplyTransaction(states, caps, tx)
	}
	return states
}

// remainingFor computes max(cap - spent, 0) for a capped key, nil for an
// uncapped one.
func remainingFor(caps []core.Cap, cardID int64, category string, spent core.Money) *core.Money {
	c, ok := CapFor(caps, cardID, category)
	if !ok {
		return nil
	}
	left := c.Amount.Cents - spent.Cents
	if left < 0 {
		left = 0
	}
	return &core.Money{Cents: left}
}

// StateFor returns the aggregate row for a key, if one exists yet.
func StateFor(states []core.SpendingState, key core.StateKey) (core.SpendingState, bool) {
	for _, s := range states {
		if s.Key() == key {
			return s, true
		}
	}
	return core.SpendingState{}, false
}

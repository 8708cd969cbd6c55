package engine

import (
	"sort"

	"milecard/internal/core"
)

type (
	// Catalog is the reference-data snapshot the ranker works against.
	Catalog struct {
		Categories []string
		Rules      []core.EarnRule
		Caps       []core.Cap
	}

	// Recommendation is one ranked card for a category. Exactly one entry
	// of a non-empty result carries Recommended = true.
	Recommendation struct {
		Card        core.Card
		Rate        float64
		CapRatio    float64
		Score       float64
		Recommended bool
	}
)

// Knows reports whether the category exists in the reference data.
func (c Catalog) Knows(category string) bool {
	for _, known := range c.Categories {
		if known == category {
			return true
		}
	}
	return false
}

// RateFor resolves the earn rate for (card, category): the card's current
// rule for the category if one exists, otherwise its base rate.
func (c Catalog) RateFor(card core.Card, category string) float64 {
	for _, r := range c.Rules {
		if r.CardID == card.ID && r.Category == category && r.Current() {
			return r.Rate
		}
	}
	return card.BaseRate
}

// Rank orders a user's cards for one category, best first.
//
// score = rate × capRatio, where capRatio discounts a card as its monthly
// bonus cap is consumed: 1 when uncapped or untouched this month, 0 when
// exhausted, the remaining fraction otherwise (clamped to 1 in case
// upstream data reports remaining above the cap). Ties fall back to raw
// rate, then card name, so identical inputs always produce identical
// output regardless of input order. An unknown category is an input
// error, not a zero-rate ranking.
func Rank(cat Catalog, category string, cards []core.Card, states []core.SpendingState, userID int64, month core.MonthKey) ([]Recommendation, error) {
	if !cat.Knows(category) {
		return nil, core.ErrUnknownCategory
	}
	if len(cards) == 0 {
		return []Recommendation{}, nil
	}

	caps := DedupCaps(cat.Caps)
	recs := make([]Recommendation, 0, len(cards))
	for _, card := range cards {
		rate := cat.RateFor(card, category)
		ratio := capRatio(caps, states, card.ID, category, userID, month)
		recs = append(recs, Recommendation{
			Card:     card,
			Rate:     rate,
			CapRatio: ratio,
			Score:    rate * ratio,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		if recs[i].Rate != recs[j].Rate {
			return recs[i].Rate > recs[j].Rate
		}
		return recs[i].Card.Name < recs[j].Card.Name
	})

	// The top card is recommended even at score 0: with the cap exhausted
	// it is still the best (or only) option the user has.
	recs[0].Recommended = true
	return recs, nil
}

// capRatio returns the unused fraction of the applicable cap.
func capRatio(caps []core.Cap, states []core.SpendingState, cardID int64, category string, userID int64, month core.MonthKey) float64 {
	c, capped := CapFor(caps, cardID, category)
	if !capped {
		return 1.0
	}

	key := core.StateKey{UserID: userID, CardID: cardID, Category: category, Month: month}
	s, ok := StateFor(states, key)
	if !ok || s.Uncapped() {
		// Nothing spent this month, or the stored row predates the cap.
		return 1.0
	}
	if s.Remaining.Cents <= 0 {
		return 0.0
	}
	if c.Amount.Cents <= 0 {
		return 0.0
	}
	ratio := float64(s.Remaining.Cents) / float64(c.Amount.Cents)
	if ratio > 1.0 {
		ratio = 1.0
	}
	return ratio
}

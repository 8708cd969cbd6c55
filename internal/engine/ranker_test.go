package engine

import (
	"errors"
	"testing"

	"milecard/internal/core"
)

const month = core.MonthKey("2025-01")

func stateRow(card int64, category string, spent int64, remaining *int64) core.SpendingState {
	s := core.SpendingState{UserID: 7, CardID: card, Category: category, Month: month, TotalSpent: cents(spent)}
	if remaining != nil {
		s.Remaining = &core.Money{Cents: *remaining}
	}
	return s
}

func TestRank_CapAwareOrdering(t *testing.T) {
	// Card X: 4.0 mpd dining with a $1,000 cap, $750 already spent.
	// Card Y: 2.0 mpd dining, uncapped. Y must win: 2.0 > 4.0 x 0.25.
	x := core.Card{ID: 1, Name: "X", BaseRate: 1.2}
	y := core.Card{ID: 2, Name: "Y", BaseRate: 2.0}
	cat := Catalog{
		Categories: []string{"dining"},
		Rules: []core.EarnRule{
			{ID: 1, CardID: 1, Category: "dining", Rate: 4.0, Bonus: true},
		},
		Caps: []core.Cap{
			{ID: 1, CardID: 1, Scope: core.CategoryScope("dining"), Amount: cents(100_000)},
		},
	}
	states := []core.SpendingState{stateRow(1, "dining", 75_000, int64p(25_000))}

	got, err := Rank(cat, "dining", []core.Card{x, y}, states, 7, month)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(got))
	}
	if got[0].Card.ID != y.ID || !got[0].Recommended {
		t.Errorf("top card = %s (recommended=%v), want Y recommended", got[0].Card.Name, got[0].Recommended)
	}
	if got[0].Score != 2.0 {
		t.Errorf("Y score = %v, want 2.0", got[0].Score)
	}
	if got[1].Score != 1.0 || got[1].CapRatio != 0.25 {
		t.Errorf("X score/ratio = %v/%v, want 1.0/0.25", got[1].Score, got[1].CapRatio)
	}
	if got[1].Recommended {
		t.Error("second card marked recommended")
	}
}

func TestRank_SoleCardAlwaysRecommended(t *testing.T) {
	// Card Z with its dining cap fully exhausted still gets the nod: it is
	// the only option.
	z := core.Card{ID: 3, Name: "Z", BaseRate: 1.0}
	cat := Catalog{
		Categories: []string{"dining"},
		Rules:      []core.EarnRule{{ID: 1, CardID: 3, Category: "dining", Rate: 4.0}},
		Caps:       []core.Cap{{ID: 1, CardID: 3, Scope: core.CategoryScope("dining"), Amount: cents(100_000)}},
	}
	states := []core.SpendingState{stateRow(3, "dining", 100_000, int64p(0))}

	got, err := Rank(cat, "dining", []core.Card{z}, states, 7, month)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(got))
	}
	if got[0].Score != 0 {
		t.Errorf("score = %v, want 0", got[0].Score)
	}
	if !got[0].Recommended {
		t.Error("sole card not recommended despite being the only option")
	}
}

func TestRank_NameBreaksFullTies(t *testing.T) {
	delta := core.Card{ID: 4, Name: "Delta", BaseRate: 3.0}
	alpha := core.Card{ID: 5, Name: "Alpha", BaseRate: 3.0}
	cat := Catalog{Categories: []string{"dining"}}

	got, err := Rank(cat, "dining", []core.Card{delta, alpha}, nil, 7, month)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if got[0].Card.Name != "Alpha" {
		t.Errorf("tie broken to %q, want Alpha first", got[0].Card.Name)
	}
}

func TestRank_InputOrderIndependent(t *testing.T) {
	cards := []core.Card{
		{ID: 1, Name: "Gamma", BaseRate: 1.5},
		{ID: 2, Name: "Beta", BaseRate: 3.0},
		{ID: 3, Name: "Omega", BaseRate: 3.0},
		{ID: 4, Name: "Zed", BaseRate: 0.4},
	}
	cat := Catalog{Categories: []string{"online"}}

	forward, err := Rank(cat, "online", cards, nil, 7, month)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	reversed := make([]core.Card, len(cards))
	for i, c := range cards {
		reversed[len(cards)-1-i] = c
	}
	backward, err := Rank(cat, "online", reversed, nil, 7, month)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	for i := range forward {
		if forward[i].Card.ID != backward[i].Card.ID {
			t.Errorf("position %d differs by input order: %s vs %s",
				i, forward[i].Card.Name, backward[i].Card.Name)
		}
	}
}

func TestRank_ExactlyOneRecommended(t *testing.T) {
	cards := []core.Card{
		{ID: 1, Name: "A", BaseRate: 1.0},
		{ID: 2, Name: "B", BaseRate: 2.0},
		{ID: 3, Name: "C", BaseRate: 3.0},
	}
	cat := Catalog{Categories: []string{"travel"}}

	got, err := Rank(cat, "travel", cards, nil, 7, month)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	recommended := 0
	for _, r := range got {
		if r.Recommended {
			recommended++
		}
	}
	if recommended != 1 {
		t.Errorf("recommended count = %d, want exactly 1", recommended)
	}
}

func TestRank_EmptyAndInvalidInput(t *testing.T) {
	cat := Catalog{Categories: []string{"dining"}}

	got, err := Rank(cat, "dining", nil, nil, 7, month)
	if err != nil {
		t.Fatalf("Rank() on empty candidates error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d rows for empty candidates, want 0", len(got))
	}

	_, err = Rank(cat, "cryptocurrency", []core.Card{{ID: 1, Name: "A"}}, nil, 7, month)
	if !errors.Is(err, core.ErrUnknownCategory) {
		t.Errorf("unknown category error = %v, want ErrUnknownCategory", err)
	}
}

func TestRank_ClampsAnomalousRemaining(t *testing.T) {
	// Upstream data can report remaining above the cap; the ratio clamps
	// at 1 instead of inflating the score.
	card := core.Card{ID: 1, Name: "A", BaseRate: 2.0}
	cat := Catalog{
		Categories: []string{"dining"},
		Caps:       []core.Cap{{ID: 1, CardID: 1, Scope: core.CategoryScope("dining"), Amount: cents(50_000)}},
	}
	states := []core.SpendingState{stateRow(1, "dining", 10_000, int64p(80_000))}

	got, err := Rank(cat, "dining", []core.Card{card}, states, 7, month)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if got[0].CapRatio != 1.0 {
		t.Errorf("CapRatio = %v, want clamped 1.0", got[0].CapRatio)
	}
}

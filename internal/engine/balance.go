package engine

import (
	"math"
	"sort"

	"milecard/internal/core"
)

type (
	// PortfolioInput is the per-user snapshot the aggregator reads.
	PortfolioInput struct {
		Programs     []core.MilesProgram
		Cards        []core.Card // cards the user owns
		Rules        []core.EarnRule
		Balances     []core.MilesBalance
		MilesTxs     []core.MilesTransaction
		Transactions []core.Transaction
	}

	// ContributingCard names a card that feeds miles into a program row.
	ContributingCard struct {
		ID   int64
		Name string
		Bank string
	}

	// ProgramBalance is one display row of the rewards portfolio.
	// DisplayTotal = Manual + AutoEarned − TotalRedeemed, deliberately
	// unclamped: an over-redeemed balance shows negative here and only the
	// presentation layer floors it.
	ProgramBalance struct {
		Program       core.MilesProgram
		Manual        int64
		AutoEarned    int64
		TotalRedeemed int64
		DisplayTotal  int64
		Cards         []ContributingCard
	}
)

// Portfolio aggregates the user's miles position per program, sorted by
// display total descending. A program appears when the user owns at least
// one card earning into it or has entered a manual balance for it.
// Filtering by kind excludes non-matching programs entirely.
func Portfolio(in PortfolioInput, kind *core.ProgramKind) []ProgramBalance {
	cat := Catalog{Rules: in.Rules}

	manual := make(map[int64]int64, len(in.Balances))
	for _, b := range in.Balances {
		manual[b.ProgramID] = b.Balance
	}

	redeemed := make(map[int64]int64)
	for _, mt := range in.MilesTxs {
		if mt.Kind == core.MilesRedeem {
			redeemed[mt.ProgramID] += mt.Amount
		}
	}

	rows := make([]ProgramBalance, 0, len(in.Programs))
	for _, prog := range in.Programs {
		if kind != nil && prog.Kind != *kind {
			continue
		}

		var cards []ContributingCard
		var earned float64
		for _, card := range in.Cards {
			if card.ProgramID != prog.ID {
				continue
			}
			cards = append(cards, ContributingCard{ID: card.ID, Name: card.Name, Bank: card.Bank})
			for _, tx := range in.Transactions {
				if tx.CardID == card.ID {
					earned += tx.Amount.Dollars() * cat.RateFor(card, tx.Category)
				}
			}
		}

		mb, hasManual := manual[prog.ID]
		if len(cards) == 0 && !hasManual {
			continue
		}

		auto := int64(math.Floor(earned))
		row := ProgramBalance{
			Program:       prog,
			Manual:        mb,
			AutoEarned:    auto,
			TotalRedeemed: redeemed[prog.ID],
			Cards:         cards,
		}
		row.DisplayTotal = row.Manual + row.AutoEarned - row.TotalRedeemed
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DisplayTotal != rows[j].DisplayTotal {
			return rows[i].DisplayTotal > rows[j].DisplayTotal
		}
		return rows[i].Program.Name < rows[j].Program.Name
	})
	return rows
}

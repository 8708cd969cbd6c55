// Package memory is a fixture reference-data source for local
// development and tests: no spreadsheet, no credentials.
package memory

import (
	"context"
	"sync"
	"time"

	"milecard/internal/core"
	"milecard/internal/refdata"
)

type Source struct {
	mu sync.Mutex
	ds refdata.Dataset
}

var _ refdata.Source = (*Source)(nil)

func New(ds refdata.Dataset) *Source {
	return &Source{ds: ds}
}

// NewFixture returns a source seeded with a small believable catalog:
// three banks, two airlines, category caps on the bonus cards, one
// transfer route into each airline, and a pair of pending devaluations.
func NewFixture() *Source {
	return New(Fixture())
}

func (s *Source) Fetch(_ context.Context) (refdata.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := refdata.Dataset{
		Categories:  append([]string(nil), s.ds.Categories...),
		Programs:    append([]core.MilesProgram(nil), s.ds.Programs...),
		Cards:       append([]core.Card(nil), s.ds.Cards...),
		EarnRules:   append([]core.EarnRule(nil), s.ds.EarnRules...),
		Caps:        append([]core.Cap(nil), s.ds.Caps...),
		Partners:    append([]core.TransferPartner(nil), s.ds.Partners...),
		RateChanges: append([]core.RateChange(nil), s.ds.RateChanges...),
	}
	return ds, nil
}

func Fixture() refdata.Dataset {
	jan1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	return refdata.Dataset{
		Categories: []string{"dining", "groceries", "travel", "gas", "online"},
		Programs: []core.MilesProgram{
			{ID: 1, Name: "SkyHigh Miles", Airline: "SkyHigh", Kind: core.KindAirline},
			{ID: 2, Name: "Everyday Points", Kind: core.KindBankPoints},
			{ID: 3, Name: "Partner AirClub", Airline: "Partner Air", Kind: core.KindAirline},
		},
		Cards: []core.Card{
			{ID: 10, Name: "Voyager Infinite", Bank: "First Bank", Network: "Visa",
				AnnualFee: core.Money{Cents: 45_000}, BaseRate: 1.5, Active: true, ProgramID: 1,
				Eligibility: &core.Eligibility{MinIncome: core.Money{Cents: 12_000_000}, MinAge: 21}},
			{ID: 11, Name: "Metro Everyday", Bank: "Metro Bank", Network: "Mastercard",
				BaseRate: 1.2, Active: true, ProgramID: 2},
			{ID: 12, Name: "Metro Grocer Plus", Bank: "Metro Bank", Network: "Mastercard",
				AnnualFee: core.Money{Cents: 9_500}, BaseRate: 1.0, Active: true, ProgramID: 2},
		},
		EarnRules: []core.EarnRule{
			{ID: 100, CardID: 10, Category: "dining", Rate: 3.0, Bonus: true, EffectiveFrom: jan1},
			{ID: 101, CardID: 10, Category: "travel", Rate: 4.0, Bonus: true, EffectiveFrom: jan1},
			{ID: 102, CardID: 11, Category: "dining", Rate: 2.0, Bonus: true, EffectiveFrom: jan1},
			{ID: 103, CardID: 12, Category: "groceries", Rate: 5.0, Bonus: true,
				ConditionNote: "requires quarterly enrollment", EffectiveFrom: jan1},
		},
		Caps: []core.Cap{
			{ID: 200, CardID: 10, Scope: core.CategoryScope("dining"), Amount: core.Money{Cents: 50_000}},
			{ID: 201, CardID: 12, Scope: core.CategoryScope("groceries"), Amount: core.Money{Cents: 30_000}},
			{ID: 202, CardID: 12, Scope: core.GlobalScope(), Amount: core.Money{Cents: 200_000}},
		},
		Partners: []core.TransferPartner{
			{ID: 300, FromProgramID: 2, ToProgramID: 1, FromUnits: 2, ToUnits: 1, MinTransfer: 1000},
			{ID: 301, FromProgramID: 2, ToProgramID: 3, FromUnits: 1, ToUnits: 1, MinTransfer: 500},
		},
		RateChanges: []core.RateChange{
			{ID: 400, CardID: i64(10), ChangeKind: "earn_rate", Category: "dining",
				OldValue: "3.0", NewValue: "2.0",
				EffectiveDate: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
				Title:         "Voyager dining rate drops to 2x",
				Body:          "Dining spend on Voyager Infinite earns 2 miles per dollar starting April 1.",
				Severity:      core.SeverityWarning},
			{ID: 401, ProgramID: i64(1), ChangeKind: "devaluation",
				OldValue: "25000", NewValue: "30000",
				EffectiveDate: time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC),
				Title:         "SkyHigh award chart devaluation",
				Body:          "Domestic saver awards rise from 25k to 30k miles.",
				Severity:      core.SeverityCritical},
		},
	}
}

func i64(v int64) *int64 { return &v }

package refdata

import (
	"context"
	"testing"
	"time"

	"milecard/internal/core"
)

type stubSource struct {
	ds  Dataset
	err error
}

func (s stubSource) Fetch(ctx context.Context) (Dataset, error) {
	return s.ds, s.err
}

type recordingDest struct {
	categories []string
	programs   []core.MilesProgram
	cards      []core.Card
	rules      []core.EarnRule
	caps       []core.Cap
	partners   []core.TransferPartner
	changes    []core.RateChange
}

func (d *recordingDest) UpsertCategory(ctx context.Context, name string) error {
	d.categories = append(d.categories, name)
	return nil
}

func (d *recordingDest) UpsertProgram(ctx context.Context, p core.MilesProgram) error {
	d.programs = append(d.programs, p)
	return nil
}

func (d *recordingDest) UpsertCard(ctx context.Context, c core.Card) error {
	d.cards = append(d.cards, c)
	return nil
}

func (d *recordingDest) UpsertEarnRule(ctx context.Context, e core.EarnRule) error {
	d.rules = append(d.rules, e)
	return nil
}

func (d *recordingDest) UpsertCap(ctx context.Context, c core.Cap) error {
	d.caps = append(d.caps, c)
	return nil
}

func (d *recordingDest) UpsertTransferPartner(ctx context.Context, p core.TransferPartner) error {
	d.partners = append(d.partners, p)
	return nil
}

func (d *recordingDest) UpsertRateChange(ctx context.Context, c core.RateChange) error {
	d.changes = append(d.changes, c)
	return nil
}

func TestRunImportsSnapshot(t *testing.T) {
	ds := Dataset{
		Categories: []string{"dining", "travel"},
		Programs: []core.MilesProgram{
			{ID: 1, Name: "SkyHigh Miles", Airline: "SkyHigh", Kind: core.KindAirline},
		},
		Cards: []core.Card{
			{ID: 10, Name: "Voyager", Bank: "First Bank", BaseRate: 1.5, Active: true, ProgramID: 1},
		},
		EarnRules: []core.EarnRule{
			{ID: 100, CardID: 10, Category: "dining", Rate: 3.0, EffectiveFrom: time.Now()},
		},
		Caps: []core.Cap{
			{ID: 200, CardID: 10, Scope: core.CategoryScope("dining"), Amount: core.Money{Cents: 50_000}},
		},
		Partners: []core.TransferPartner{
			{ID: 300, FromProgramID: 2, ToProgramID: 1, FromUnits: 2, ToUnits: 1},
		},
		RateChanges: []core.RateChange{
			{ID: 400, Title: "Dining bonus ends", Severity: core.SeverityWarning, EffectiveDate: time.Now()},
		},
	}

	dst := &recordingDest{}
	stats, err := NewImporter(stubSource{ds: ds}, dst).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := Stats{Categories: 2, Programs: 1, Cards: 1, EarnRules: 1, Caps: 1, Partners: 1, RateChanges: 1}
	if stats != want {
		t.Errorf("Run() stats = %+v, want %+v", stats, want)
	}
	if len(dst.cards) != 1 || dst.cards[0].Name != "Voyager" {
		t.Errorf("cards written = %+v", dst.cards)
	}
}

func TestRunSkipsInvalidRows(t *testing.T) {
	ds := Dataset{
		Programs: []core.MilesProgram{
			{ID: 1, Name: "Good", Kind: core.KindAirline},
			{ID: 2, Name: "Bad", Kind: "hotel_points"},
		},
		Cards: []core.Card{
			{ID: 10, Name: "", Bank: "First Bank", ProgramID: 1}, // blank name
		},
		Partners: []core.TransferPartner{
			{ID: 300, FromProgramID: 1, ToProgramID: 2, FromUnits: 0, ToUnits: 1},
		},
		RateChanges: []core.RateChange{
			{ID: 400, Title: "No severity", Severity: ""},
		},
	}

	dst := &recordingDest{}
	stats, err := NewImporter(stubSource{ds: ds}, dst).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Programs != 1 || stats.Cards != 0 || stats.Partners != 0 || stats.RateChanges != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Skipped != 4 {
		t.Errorf("Skipped = %d, want 4", stats.Skipped)
	}
	if len(dst.programs) != 1 || dst.programs[0].ID != 1 {
		t.Errorf("programs written = %+v", dst.programs)
	}
}

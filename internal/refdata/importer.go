package refdata

import (
	"context"
	"fmt"
	"log/slog"
)

// Stats counts what one import run wrote and what it refused.
type Stats struct {
	Categories  int
	Programs    int
	Cards       int
	EarnRules   int
	Caps        int
	Partners    int
	RateChanges int
	Skipped     int
}

// Importer copies a provider snapshot into storage. Rows that fail
// validation are skipped with a warning rather than aborting the run;
// a provider typo in one card should not block the rest of the catalog.
type Importer struct {
	src Source
	dst Destination
}

func NewImporter(src Source, dst Destination) *Importer {
	return &Importer{src: src, dst: dst}
}

// Run fetches a snapshot and upserts it in dependency order: categories
// and programs first, then cards, then everything keyed on them.
func (i *Importer) Run(ctx context.Context) (Stats, error) {
	ds, err := i.src.Fetch(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch reference data: %w", err)
	}

	var stats Stats

	for _, name := range ds.Categories {
		if name == "" {
			stats.Skipped++
			continue
		}
		if err := i.dst.UpsertCategory(ctx, name); err != nil {
			return stats, fmt.Errorf("category %q: %w", name, err)
		}
		stats.Categories++
	}

	for _, p := range ds.Programs {
		if !p.Kind.Valid() {
			slog.WarnContext(ctx, "Skipping program with invalid kind",
				"program_id", p.ID, "kind", string(p.Kind))
			stats.Skipped++
			continue
		}
		if err := i.dst.UpsertProgram(ctx, p); err != nil {
			return stats, fmt.Errorf("program %d: %w", p.ID, err)
		}
		stats.Programs++
	}

	for _, c := range ds.Cards {
		if err := c.Validate(); err != nil {
			slog.WarnContext(ctx, "Skipping invalid card",
				"card_id", c.ID, "error", err)
			stats.Skipped++
			continue
		}
		if err := i.dst.UpsertCard(ctx, c); err != nil {
			return stats, fmt.Errorf("card %d: %w", c.ID, err)
		}
		stats.Cards++
	}

	for _, e := range ds.EarnRules {
		if err := i.dst.UpsertEarnRule(ctx, e); err != nil {
			return stats, fmt.Errorf("earn rule %d: %w", e.ID, err)
		}
		stats.EarnRules++
	}

	for _, c := range ds.Caps {
		if err := i.dst.UpsertCap(ctx, c); err != nil {
			return stats, fmt.Errorf("cap %d: %w", c.ID, err)
		}
		stats.Caps++
	}

	for _, p := range ds.Partners {
		if p.FromUnits <= 0 || p.ToUnits <= 0 {
			slog.WarnContext(ctx, "Skipping transfer partner with non-positive units",
				"partner_id", p.ID, "from_units", p.FromUnits, "to_units", p.ToUnits)
			stats.Skipped++
			continue
		}
		if err := i.dst.UpsertTransferPartner(ctx, p); err != nil {
			return stats, fmt.Errorf("transfer partner %d: %w", p.ID, err)
		}
		stats.Partners++
	}

	for _, c := range ds.RateChanges {
		if !c.Severity.Valid() {
			slog.WarnContext(ctx, "Skipping rate change with invalid severity",
				"rate_change_id", c.ID, "severity", string(c.Severity))
			stats.Skipped++
			continue
		}
		if err := i.dst.UpsertRateChange(ctx, c); err != nil {
			return stats, fmt.Errorf("rate change %d: %w", c.ID, err)
		}
		stats.RateChanges++
	}

	slog.InfoContext(ctx, "Reference data import complete",
		"categories", stats.Categories,
		"programs", stats.Programs,
		"cards", stats.Cards,
		"earn_rules", stats.EarnRules,
		"caps", stats.Caps,
		"partners", stats.Partners,
		"rate_changes", stats.RateChanges,
		"skipped", stats.Skipped)
	return stats, nil
}

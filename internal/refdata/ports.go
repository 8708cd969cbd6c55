// Package refdata imports provider-published reference data (cards,
// earn rules, caps, programs, transfer partners, rate-change notices)
// into local storage. The provider is the source of truth; the import
// replaces whatever was stored before, keyed on provider ids.
package refdata

import (
	"context"

	"milecard/internal/core"
)

// Dataset is one full snapshot of the provider's reference data.
type Dataset struct {
	Categories  []string
	Programs    []core.MilesProgram
	Cards       []core.Card
	EarnRules   []core.EarnRule
	Caps        []core.Cap
	Partners    []core.TransferPartner
	RateChanges []core.RateChange
}

// Ports for the import pipeline.
type (
	// Source fetches a snapshot from the provider.
	Source interface {
		Fetch(ctx context.Context) (Dataset, error)
	}

	// Destination receives upserts, one row at a time, in dependency
	// order. Satisfied by the SQLite repository.
	Destination interface {
		UpsertCategory(ctx context.Context, name string) error
		UpsertProgram(ctx context.Context, p core.MilesProgram) error
		UpsertCard(ctx context.Context, c core.Card) error
		UpsertEarnRule(ctx context.Context, e core.EarnRule) error
		UpsertCap(ctx context.Context, c core.Cap) error
		UpsertTransferPartner(ctx context.Context, p core.TransferPartner) error
		UpsertRateChange(ctx context.Context, c core.RateChange) error
	}
)

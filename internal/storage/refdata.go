package storage

import (
	"context"
	"fmt"

	"milecard/internal/core"
)

// Reference-data upserts used by the importer. Provider rows carry their
// own identifiers, so every write is keyed on the provider's id and
// replaces the stored version.

func (r *SQLiteRepository) UpsertCategory(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertProgram(ctx context.Context, p core.MilesProgram) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO miles_programs (id, name, airline, kind) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, airline = excluded.airline, kind = excluded.kind`,
		p.ID, p.Name, p.Airline, string(p.Kind))
	if err != nil {
		return fmt.Errorf("upsert program: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertCard(ctx context.Context, c core.Card) error {
	var minIncome, minAge, maxAge interface{}
	var tier, gender interface{}
	if e := c.Eligibility; e != nil {
		minIncome, tier, gender = e.MinIncome.Cents, e.BankingTier, e.Gender
		minAge, maxAge = e.MinAge, e.MaxAge
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cards (id, name, bank, network, annual_fee_cents, base_rate, active, program_id,
		                   min_income_cents, banking_tier, gender, min_age, max_age)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, bank = excluded.bank, network = excluded.network,
			annual_fee_cents = excluded.annual_fee_cents, base_rate = excluded.base_rate,
			active = excluded.active, program_id = excluded.program_id,
			min_income_cents = excluded.min_income_cents, banking_tier = excluded.banking_tier,
			gender = excluded.gender, min_age = excluded.min_age, max_age = excluded.max_age`,
		c.ID, c.Name, c.Bank, c.Network, c.AnnualFee.Cents, c.BaseRate, c.Active, c.ProgramID,
		minIncome, tier, gender, minAge, maxAge)
	if err != nil {
		return fmt.Errorf("upsert card: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertEarnRule(ctx context.Context, e core.EarnRule) error {
	var to interface{}
	if e.EffectiveTo != nil {
		to = *e.EffectiveTo
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO earn_rules (id, card_id, category, rate, bonus, condition_note, effective_from, effective_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			card_id = excluded.card_id, category = excluded.category, rate = excluded.rate,
			bonus = excluded.bonus, condition_note = excluded.condition_note,
			effective_from = excluded.effective_from, effective_to = excluded.effective_to`,
		e.ID, e.CardID, e.Category, e.Rate, e.Bonus, e.ConditionNote, e.EffectiveFrom, to)
	if err != nil {
		return fmt.Errorf("upsert earn rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertCap(ctx context.Context, c core.Cap) error {
	var category interface{}
	if !c.Scope.Global {
		category = c.Scope.Category
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO caps (id, card_id, category, amount_cents) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			card_id = excluded.card_id, category = excluded.category,
			amount_cents = excluded.amount_cents`,
		c.ID, c.CardID, category, c.Amount.Cents)
	if err != nil {
		return fmt.Errorf("upsert cap: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertTransferPartner(ctx context.Context, p core.TransferPartner) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transfer_partners (id, from_program_id, to_program_id, from_units, to_units, fee_cents, min_transfer)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			from_program_id = excluded.from_program_id, to_program_id = excluded.to_program_id,
			from_units = excluded.from_units, to_units = excluded.to_units,
			fee_cents = excluded.fee_cents, min_transfer = excluded.min_transfer`,
		p.ID, p.FromProgramID, p.ToProgramID, p.FromUnits, p.ToUnits, p.Fee.Cents, p.MinTransfer)
	if err != nil {
		return fmt.Errorf("upsert transfer partner: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertRateChange(ctx context.Context, c core.RateChange) error {
	var cardID, programID interface{}
	if c.CardID != nil {
		cardID = *c.CardID
	}
	if c.ProgramID != nil {
		programID = *c.ProgramID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_changes (id, card_id, program_id, change_kind, category, old_value, new_value,
		                          effective_date, title, body, severity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			card_id = excluded.card_id, program_id = excluded.program_id,
			change_kind = excluded.change_kind, category = excluded.category,
			old_value = excluded.old_value, new_value = excluded.new_value,
			effective_date = excluded.effective_date, title = excluded.title,
			body = excluded.body, severity = excluded.severity`,
		c.ID, cardID, programID, c.ChangeKind, c.Category, c.OldValue, c.NewValue,
		c.EffectiveDate, c.Title, c.Body, string(c.Severity))
	if err != nil {
		return fmt.Errorf("upsert rate change: %w", err)
	}
	return nil
}

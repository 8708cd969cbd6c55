package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"milecard/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns every SQL statement in the project. The engine
// never sees it; services read snapshots out of it and hand them to the
// pure functions.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- reference data reads ---

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListPrograms(ctx context.Context) ([]core.MilesProgram, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, airline, kind FROM miles_programs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var out []core.MilesProgram
	for rows.Next() {
		var p core.MilesProgram
		var kind string
		if err := rows.Scan(&p.ID, &p.Name, &p.Airline, &kind); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		p.Kind = core.ProgramKind(kind)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListUserCards(ctx context.Context, userID int64) ([]core.Card, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.bank, c.network, c.annual_fee_cents, c.base_rate, c.active, c.program_id,
		       c.min_income_cents, c.banking_tier, c.gender, c.min_age, c.max_age
		FROM cards c
		JOIN user_cards uc ON uc.card_id = c.id
		WHERE uc.user_id = ?
		ORDER BY uc.added_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user cards: %w", err)
	}
	defer rows.Close()
	return scanCards(rows)
}

func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.Card, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, bank, network, annual_fee_cents, base_rate, active, program_id,
		       min_income_cents, banking_tier, gender, min_age, max_age
		FROM cards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()
	return scanCards(rows)
}

func scanCards(rows *sql.Rows) ([]core.Card, error) {
	var out []core.Card
	for rows.Next() {
		var c core.Card
		var minIncome, minAge, maxAge sql.NullInt64
		var tier, gender sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Bank, &c.Network, &c.AnnualFee.Cents, &c.BaseRate,
			&c.Active, &c.ProgramID, &minIncome, &tier, &gender, &minAge, &maxAge); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if minIncome.Valid || tier.Valid || gender.Valid || minAge.Valid || maxAge.Valid {
			c.Eligibility = &core.Eligibility{
				MinIncome:   core.Money{Cents: minIncome.Int64},
				BankingTier: tier.String,
				Gender:      gender.String,
				MinAge:      int(minAge.Int64),
				MaxAge:      int(maxAge.Int64),
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListEarnRules(ctx context.Context) ([]core.EarnRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, card_id, category, rate, bonus, condition_note, effective_from, effective_to
		FROM earn_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list earn rules: %w", err)
	}
	defer rows.Close()

	var out []core.EarnRule
	for rows.Next() {
		var e core.EarnRule
		var to sql.NullTime
		if err := rows.Scan(&e.ID, &e.CardID, &e.Category, &e.Rate, &e.Bonus,
			&e.ConditionNote, &e.EffectiveFrom, &to); err != nil {
			return nil, fmt.Errorf("scan earn rule: %w", err)
		}
		if to.Valid {
			t := to.Time
			e.EffectiveTo = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListCaps maps the nullable category column into the CapScope sum type
// at the storage edge; nothing above this layer sees a NULL key.
func (r *SQLiteRepository) ListCaps(ctx context.Context) ([]core.Cap, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, card_id, category, amount_cents FROM caps ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list caps: %w", err)
	}
	defer rows.Close()

	var out []core.Cap
	for rows.Next() {
		var c core.Cap
		var category sql.NullString
		if err := rows.Scan(&c.ID, &c.CardID, &category, &c.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan cap: %w", err)
		}
		if category.Valid {
			c.Scope = core.CategoryScope(category.String)
		} else {
			c.Scope = core.GlobalScope()
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListTransferPartners(ctx context.Context) ([]core.TransferPartner, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_program_id, to_program_id, from_units, to_units, fee_cents, min_transfer
		FROM transfer_partners ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list transfer partners: %w", err)
	}
	defer rows.Close()

	var out []core.TransferPartner
	for rows.Next() {
		var p core.TransferPartner
		if err := rows.Scan(&p.ID, &p.FromProgramID, &p.ToProgramID, &p.FromUnits,
			&p.ToUnits, &p.Fee.Cents, &p.MinTransfer); err != nil {
			return nil, fmt.Errorf("scan transfer partner: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListRateChanges(ctx context.Context) ([]core.RateChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, card_id, program_id, change_kind, category, old_value, new_value,
		       effective_date, title, body, severity
		FROM rate_changes ORDER BY effective_date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list rate changes: %w", err)
	}
	defer rows.Close()

	var out []core.RateChange
	for rows.Next() {
		var c core.RateChange
		var cardID, programID sql.NullInt64
		var severity string
		if err := rows.Scan(&c.ID, &cardID, &programID, &c.ChangeKind, &c.Category,
			&c.OldValue, &c.NewValue, &c.EffectiveDate, &c.Title, &c.Body, &severity); err != nil {
			return nil, fmt.Errorf("scan rate change: %w", err)
		}
		if cardID.Valid {
			v := cardID.Int64
			c.CardID = &v
		}
		if programID.Valid {
			v := programID.Int64
			c.ProgramID = &v
		}
		c.Severity = core.Severity(severity)
		out = append(out, c)
	}
	return out, rows.Err()
}

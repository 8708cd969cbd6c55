package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"milecard/internal/core"
)

// --- user ledger writes and reads ---

func (r *SQLiteRepository) AddUserCard(ctx context.Context, userID, cardID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_cards (user_id, card_id) VALUES (?, ?)`, userID, cardID)
	if err != nil {
		return fmt.Errorf("add user card: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveUserCard(ctx context.Context, userID, cardID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_cards WHERE user_id = ? AND card_id = ?`, userID, cardID)
	if err != nil {
		return fmt.Errorf("remove user card: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, card_id, category, amount_cents, tx_date)
		VALUES (?, ?, ?, ?, ?)`,
		tx.UserID, tx.CardID, tx.Category, tx.Amount.Cents, tx.Date)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", id,
		"user_id", tx.UserID,
		"card_id", tx.CardID,
		"category", tx.Category,
		"amount_cents", tx.Amount.Cents)
	return id, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, card_id, category, amount_cents, tx_date
		FROM transactions WHERE user_id = ? ORDER BY tx_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.CardID, &t.Category, &t.Amount.Cents, &t.Date); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListSpendingStates(ctx context.Context, userID int64, month core.MonthKey) ([]core.SpendingState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, card_id, category, month, total_spent_cents, remaining_cents
		FROM spending_states WHERE user_id = ? AND month = ?
		ORDER BY card_id, category`, userID, string(month))
	if err != nil {
		return nil, fmt.Errorf("list spending states: %w", err)
	}
	defer rows.Close()

	var out []core.SpendingState
	for rows.Next() {
		var s core.SpendingState
		var month string
		var remaining sql.NullInt64
		if err := rows.Scan(&s.UserID, &s.CardID, &s.Category, &month, &s.TotalSpent.Cents, &remaining); err != nil {
			return nil, fmt.Errorf("scan spending state: %w", err)
		}
		s.Month = core.MonthKey(month)
		if remaining.Valid {
			s.Remaining = &core.Money{Cents: remaining.Int64}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSpendingState persists one aggregate row the engine computed.
func (r *SQLiteRepository) UpsertSpendingState(ctx context.Context, s core.SpendingState) error {
	var remaining interface{}
	if s.Remaining != nil {
		remaining = s.Remaining.Cents
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spending_states (user_id, card_id, category, month, total_spent_cents, remaining_cents)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, card_id, category, month) DO UPDATE SET
			total_spent_cents = excluded.total_spent_cents,
			remaining_cents = excluded.remaining_cents`,
		s.UserID, s.CardID, s.Category, string(s.Month), s.TotalSpent.Cents, remaining)
	if err != nil {
		return fmt.Errorf("upsert spending state: %w", err)
	}
	return nil
}

// UpsertMilesBalance writes a manual balance. Writing the value already
// stored is a no-op: the row keeps its updated_at.
func (r *SQLiteRepository) UpsertMilesBalance(ctx context.Context, b core.MilesBalance) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO miles_balances (user_id, program_id, balance, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, program_id) DO UPDATE SET
			balance = excluded.balance,
			updated_at = excluded.updated_at
		WHERE miles_balances.balance <> excluded.balance`,
		b.UserID, b.ProgramID, b.Balance, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert miles balance: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListMilesBalances(ctx context.Context, userID int64) ([]core.MilesBalance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, program_id, balance, updated_at
		FROM miles_balances WHERE user_id = ? ORDER BY program_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list miles balances: %w", err)
	}
	defer rows.Close()

	var out []core.MilesBalance
	for rows.Next() {
		var b core.MilesBalance
		if err := rows.Scan(&b.UserID, &b.ProgramID, &b.Balance, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan miles balance: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertMilesTransaction(ctx context.Context, mt core.MilesTransaction) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO miles_transactions (user_id, program_id, kind, amount, description, tx_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		mt.UserID, mt.ProgramID, string(mt.Kind), mt.Amount, mt.Description, mt.Date)
	if err != nil {
		return 0, fmt.Errorf("insert miles transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("miles transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Miles transaction recorded",
		"id", id,
		"user_id", mt.UserID,
		"program_id", mt.ProgramID,
		"kind", string(mt.Kind),
		"miles", mt.Amount)
	return id, nil
}

func (r *SQLiteRepository) ListMilesTransactions(ctx context.Context, userID int64) ([]core.MilesTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, program_id, kind, amount, description, tx_date
		FROM miles_transactions WHERE user_id = ? ORDER BY tx_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list miles transactions: %w", err)
	}
	defer rows.Close()

	var out []core.MilesTransaction
	for rows.Next() {
		var mt core.MilesTransaction
		var kind string
		if err := rows.Scan(&mt.ID, &mt.UserID, &mt.ProgramID, &kind, &mt.Amount, &mt.Description, &mt.Date); err != nil {
			return nil, fmt.Errorf("scan miles transaction: %w", err)
		}
		mt.Kind = core.MilesTxKind(kind)
		out = append(out, mt)
	}
	return out, rows.Err()
}

// --- goals ---

func (r *SQLiteRepository) InsertGoal(ctx context.Context, g core.MilesGoal) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO miles_goals (user_id, program_id, target, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		g.UserID, g.ProgramID, g.Target, g.Description, g.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert goal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("goal id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, goalID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM miles_goals WHERE id = ? AND user_id = ?`, goalID, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete goal rows: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID, programID int64) ([]core.MilesGoal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, program_id, target, description, achieved_at, created_at
		FROM miles_goals WHERE user_id = ? AND program_id = ?
		ORDER BY created_at, id`, userID, programID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

func (r *SQLiteRepository) ListAllGoals(ctx context.Context, userID int64) ([]core.MilesGoal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, program_id, target, description, achieved_at, created_at
		FROM miles_goals WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list all goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

// ListGoalUserIDs returns the users that still have open goals; the
// worker sweeps them periodically.
func (r *SQLiteRepository) ListGoalUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM miles_goals
		WHERE achieved_at IS NULL ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list goal users: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan goal user: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanGoals(rows *sql.Rows) ([]core.MilesGoal, error) {
	var out []core.MilesGoal
	for rows.Next() {
		var g core.MilesGoal
		var achieved sql.NullTime
		if err := rows.Scan(&g.ID, &g.UserID, &g.ProgramID, &g.Target, &g.Description, &achieved, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if achieved.Valid {
			t := achieved.Time
			g.AchievedAt = &t
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// MarkGoalAchieved stamps achieved_at once; a second call is a no-op so
// the first achievement timestamp stays immutable.
func (r *SQLiteRepository) MarkGoalAchieved(ctx context.Context, goalID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE miles_goals SET achieved_at = ? WHERE id = ? AND achieved_at IS NULL`, at, goalID)
	if err != nil {
		return fmt.Errorf("mark goal achieved: %w", err)
	}
	return nil
}

// --- alert dismissals ---

func (r *SQLiteRepository) MarkAlertRead(ctx context.Context, userID, rateChangeID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_alert_reads (user_id, rate_change_id) VALUES (?, ?)`,
		userID, rateChangeID)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAlertReads(ctx context.Context, userID int64) ([]core.UserAlertRead, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, rate_change_id, read_at
		FROM user_alert_reads WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list alert reads: %w", err)
	}
	defer rows.Close()

	var out []core.UserAlertRead
	for rows.Next() {
		var a core.UserAlertRead
		if err := rows.Scan(&a.UserID, &a.RateChangeID, &a.ReadAt); err != nil {
			return nil, fmt.Errorf("scan alert read: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

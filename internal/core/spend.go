package core

import (
	"time"
)

type (
	// CapScope identifies what a monthly cap applies to: one category, or
	// the whole card. It is deliberately not a nullable category string —
	// two "null" categories compared with ordinary equality is exactly the
	// duplicate-key bug this type exists to rule out.
	CapScope struct {
		Category string
		Global   bool
	}

	// Cap is a monthly ceiling, in spend, on bonus earning for a card.
	Cap struct {
		ID     int64
		CardID int64
		Scope  CapScope
		Amount Money
	}

	// Transaction is one spend event. Append-only; the unit of truth.
	Transaction struct {
		ID       int64
		UserID   int64
		CardID   int64
		Category string
		Amount   Money
		Date     time.Time
	}

	// MonthKey is a calendar month in "2006-01" form.
	MonthKey string

	// SpendingState is the derived monthly aggregate for one
	// (user, card, category, month) key. Remaining is nil when no cap
	// applies to the key.
	SpendingState struct {
		UserID     int64
		CardID     int64
		Category   string
		Month      MonthKey
		TotalSpent Money
		Remaining  *Money
	}
)

// GlobalScope is the scope of a card-wide cap shared across categories.
func GlobalScope() CapScope {
	return CapScope{Global: true}
}

// CategoryScope is the scope of a cap limited to a single category.
func CategoryScope(category string) CapScope {
	return CapScope{Category: category}
}

// CapKey is the logical identity of a cap row, used for dedup.
type CapKey struct {
	CardID int64
	Scope  CapScope
}

func (c Cap) Key() CapKey {
	return CapKey{CardID: c.CardID, Scope: c.Scope}
}

// MonthOf truncates a date to its year-month key.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// ParseMonth parses a "2006-01" key back into the first instant of the month.
func ParseMonth(k MonthKey) (time.Time, error) {
	return time.Parse("2006-01", string(k))
}

func (k MonthKey) Valid() bool {
	_, err := ParseMonth(k)
	return err == nil
}

// Key returns the ledger key this state row aggregates.
func (s SpendingState) Key() StateKey {
	return StateKey{UserID: s.UserID, CardID: s.CardID, Category: s.Category, Month: s.Month}
}

// StateKey identifies one (user, card, category, month) aggregate.
type StateKey struct {
	UserID   int64
	CardID   int64
	Category string
	Month    MonthKey
}

// Uncapped reports whether no monthly cap applies to this state row.
func (s SpendingState) Uncapped() bool {
	return s.Remaining == nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Category == "" {
		return ErrUnknownCategory
	}
	return nil
}

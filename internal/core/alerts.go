package core

import "time"

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type (
	Severity string

	// RateChange is a provider-authored notice that a card's or program's
	// underlying terms changed. Read-only for the engine.
	RateChange struct {
		ID            int64
		CardID        *int64
		ProgramID     *int64
		ChangeKind    string
		Category      string
		OldValue      string
		NewValue      string
		EffectiveDate time.Time
		Title         string
		Body          string
		Severity      Severity
	}

	// UserAlertRead marks a rate change dismissed by a user, suppressing
	// it from future alert queries.
	UserAlertRead struct {
		UserID       int64
		RateChangeID int64
		ReadAt       time.Time
	}
)

// Rank orders severities so critical sorts before warning before info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

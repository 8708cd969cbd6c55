package core

import (
	"strings"
	"time"
)

const (
	MilesRedeem      MilesTxKind = "redeem"
	MilesTransferOut MilesTxKind = "transfer_out"
	MilesTransferIn  MilesTxKind = "transfer_in"
	MilesAdjust      MilesTxKind = "adjust"
)

// MinGoalTarget is the smallest target a savings goal may carry.
const MinGoalTarget = 1000

// MaxOpenGoals caps concurrently unachieved goals per (user, program).
const MaxOpenGoals = 3

type (
	MilesTxKind string

	// MilesBalance is the user's manually entered balance for one program.
	// At most one row per (user, program); rewriting the same value is a
	// no-op upsert.
	MilesBalance struct {
		UserID    int64
		ProgramID int64
		Balance   int64
		UpdatedAt time.Time
	}

	// MilesTransaction is one entry in the append-only miles ledger.
	MilesTransaction struct {
		ID          int64
		UserID      int64
		ProgramID   int64
		Kind        MilesTxKind
		Amount      int64
		Description string
		Date        time.Time
	}

	// MilesGoal is a user-defined savings target for one program.
	// AchievedAt is nil until the balance first reaches the target and is
	// immutable afterwards.
	MilesGoal struct {
		ID          int64
		UserID      int64
		ProgramID   int64
		Target      int64
		Description string
		AchievedAt  *time.Time
		CreatedAt   time.Time
	}
)

func (k MilesTxKind) Valid() bool {
	switch k {
	case MilesRedeem, MilesTransferOut, MilesTransferIn, MilesAdjust:
		return true
	}
	return false
}

func (g MilesGoal) Achieved() bool {
	return g.AchievedAt != nil
}

// Validate checks the per-goal rules. The per-program open-goal limit
// needs the existing goals and lives in the engine, not here.
func (g MilesGoal) Validate() error {
	if g.Target < MinGoalTarget {
		return ErrTargetTooLow
	}
	if strings.TrimSpace(g.Description) == "" {
		return ErrBlankDescription
	}
	return nil
}

func (t MilesTransaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidMilesKind
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

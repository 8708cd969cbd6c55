package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindAirline      ProgramKind = "airline"
	KindBankPoints   ProgramKind = "bank_points"
	KindTransferable ProgramKind = "transferable"
)

type (
	ProgramKind string

	// Money is an amount of spend in integer cents.
	Money struct {
		Cents int64
	}

	// Card is a credit card as published by the reference-data provider.
	// The engine treats it as immutable; cards are created and retired upstream.
	Card struct {
		ID        int64
		Name      string
		Bank      string
		Network   string
		AnnualFee Money
		BaseRate  float64 // miles per dollar
		Active    bool
		ProgramID int64

		// Eligibility is display-only; the engine never enforces it.
		Eligibility *Eligibility
	}

	// Eligibility is the structured predicate shown on card detail screens.
	Eligibility struct {
		MinIncome   Money
		BankingTier string
		Gender      string
		MinAge      int
		MaxAge      int
	}

	// EarnRule maps (card, category) to a bonus rate. A rule with a nil
	// EffectiveTo is the current one; a card has at most one current rule
	// per category, and absence means the base rate applies.
	EarnRule struct {
		ID            int64
		CardID        int64
		Category      string
		Rate          float64 // miles per dollar
		Bonus         bool
		ConditionNote string
		EffectiveFrom time.Time
		EffectiveTo   *time.Time
	}

	// MilesProgram is a loyalty program the provider knows about.
	MilesProgram struct {
		ID      int64
		Name    string
		Airline string
		Kind    ProgramKind
	}

	// TransferPartner is a fixed-ratio conversion path between two programs:
	// FromUnits source points become ToUnits destination miles.
	TransferPartner struct {
		ID            int64
		FromProgramID int64
		ToProgramID   int64
		FromUnits     int64
		ToUnits       int64
		Fee           Money
		MinTransfer   int64
	}
)

var (
	ErrUnknownCategory  = errors.New("unknown spending category")
	ErrUnknownProgram   = errors.New("unknown miles program")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrTargetTooLow     = errors.New("goal target below minimum")
	ErrBlankDescription = errors.New("blank description")
	ErrGoalLimit        = errors.New("too many unachieved goals for program")
	ErrInvalidMilesKind = errors.New("invalid miles transaction kind")
)

// Current reports whether the rule is in force (open-ended validity).
func (r EarnRule) Current() bool {
	return r.EffectiveTo == nil
}

// Dollars returns the amount as a float for rate math and display.
// Keep cents for anything that must be exact.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k ProgramKind) Valid() bool {
	switch k {
	case KindAirline, KindBankPoints, KindTransferable:
		return true
	}
	return false
}

// Transferable reports whether points in a program of this kind can move
// into another program at all.
func (k ProgramKind) Transferable() bool {
	return k == KindBankPoints || k == KindTransferable
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("card name cannot be empty")
	}
	if c.BaseRate < 0 {
		return errors.New("base rate cannot be negative")
	}
	return nil
}

// Ratio returns destination miles per source point. Zero units on either
// side make the partnership unusable and yield 0.
func (p TransferPartner) Ratio() float64 {
	if p.FromUnits <= 0 || p.ToUnits <= 0 {
		return 0
	}
	return float64(p.ToUnits) / float64(p.FromUnits)
}

// PointsPerMile returns how many source points buy one destination mile.
// Lower is better.
func (p TransferPartner) PointsPerMile() float64 {
	if p.FromUnits <= 0 || p.ToUnits <= 0 {
		return 0
	}
	return float64(p.FromUnits) / float64(p.ToUnits)
}

// Convert returns the destination miles produced by transferring the given
// source balance, floored to whole miles.
func (p TransferPartner) Convert(sourceBalance int64) int64 {
	if p.FromUnits <= 0 || p.ToUnits <= 0 || sourceBalance <= 0 {
		return 0
	}
	return sourceBalance * p.ToUnits / p.FromUnits
}

package engine

import (
	"sort"

	"milecard/internal/core"
)

type (
	// TransferOption is one conversion path out of a source program.
	TransferOption struct {
		Partner        core.TransferPartner
		To             core.MilesProgram
		PointsPerMile  float64
		ResultingMiles int64
	}

	// PotentialSource is one program whose points could be moved into a
	// destination. Total is the grand total across all sources and is
	// repeated on every row for the consuming view.
	PotentialSource struct {
		From           core.MilesProgram
		Partner        core.TransferPartner
		Balance        int64
		ResultingMiles int64
		Total          int64
	}

	// Nudge pairs the user's richest bank-points program with its most
	// productive destination.
	Nudge struct {
		Program core.MilesProgram
		Balance int64
		Option  TransferOption
	}
)

// TransferOptions lists every conversion available from a source program
// at the given balance, best rate first. PointsPerMile is the only sort
// key; equal rates keep the partners' declaration order. Resulting miles
// are floored to whole miles.
func TransferOptions(partners []core.TransferPartner, programs []core.MilesProgram, sourceID, sourceBalance int64) []TransferOption {
	byID := programsByID(programs)

	opts := make([]TransferOption, 0)
	for _, p := range partners {
		if p.FromProgramID != sourceID || p.Ratio() == 0 {
			continue
		}
		opts = append(opts, TransferOption{
			Partner:        p,
			To:             byID[p.ToProgramID],
			PointsPerMile:  p.PointsPerMile(),
			ResultingMiles: p.Convert(sourceBalance),
		})
	}

	sort.SliceStable(opts, func(i, j int) bool {
		return opts[i].PointsPerMile < opts[j].PointsPerMile
	})
	return opts
}

// PotentialMiles computes how many destination miles the user could
// assemble from the transferable programs they hold. Rows keep the order
// of the portfolio they were derived from; sources with nothing to move
// are dropped.
func PotentialMiles(portfolio []ProgramBalance, partners []core.TransferPartner, destinationID int64) []PotentialSource {
	rows := make([]PotentialSource, 0)
	var total int64
	for _, pb := range portfolio {
		if !pb.Program.Kind.Transferable() || pb.Program.ID == destinationID {
			continue
		}
		if pb.DisplayTotal <= 0 {
			continue
		}
		partner, ok := partnerInto(partners, pb.Program.ID, destinationID)
		if !ok {
			continue
		}
		miles := partner.Convert(pb.DisplayTotal)
		total += miles
		rows = append(rows, PotentialSource{
			From:           pb.Program,
			Partner:        partner,
			Balance:        pb.DisplayTotal,
			ResultingMiles: miles,
		})
	}
	for i := range rows {
		rows[i].Total = total
	}
	return rows
}

// NudgeSuggestion picks the bank-points program with the highest display
// total and, within its outbound options, the destination yielding the
// most miles. Programs with nothing to transfer, or nowhere to transfer
// to, are skipped; no viable program means no suggestion.
func NudgeSuggestion(bankPrograms []ProgramBalance, optionsByProgram map[int64][]TransferOption) *Nudge {
	var best *ProgramBalance
	for i := range bankPrograms {
		pb := &bankPrograms[i]
		if pb.Program.Kind != core.KindBankPoints || pb.DisplayTotal <= 0 {
			continue
		}
		if len(optionsByProgram[pb.Program.ID]) == 0 {
			continue
		}
		if best == nil || pb.DisplayTotal > best.DisplayTotal {
			best = pb
		}
	}
	if best == nil {
		return nil
	}

	opts := optionsByProgram[best.Program.ID]
	top := opts[0]
	for _, o := range opts[1:] {
		if o.ResultingMiles > top.ResultingMiles {
			top = o
		}
	}
	return &Nudge{Program: best.Program, Balance: best.DisplayTotal, Option: top}
}

func partnerInto(partners []core.TransferPartner, fromID, toID int64) (core.TransferPartner, bool) {
	for _, p := range partners {
		if p.FromProgramID == fromID && p.ToProgramID == toID && p.Ratio() != 0 {
			return p, true
		}
	}
	return core.TransferPartner{}, false
}

func programsByID(programs []core.MilesProgram) map[int64]core.MilesProgram {
	m := make(map[int64]core.MilesProgram, len(programs))
	for _, p := range programs {
		m[p.ID] = p
	}
	return m
}

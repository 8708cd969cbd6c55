package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"milecard/internal/core"
	"milecard/internal/engine"
)

// AdvisorService is the read side: it assembles the per-user snapshot the
// pure engine functions need and invokes them. The snapshot reads are
// independent, so they run as one errgroup fan-out per request.
type AdvisorService struct {
	store Store
	now   func() time.Time
}

func NewAdvisorService(store Store) *AdvisorService {
	return &AdvisorService{store: store, now: time.Now}
}

// Snapshot is everything the engine can be asked about for one user.
type Snapshot struct {
	Categories []string
	Programs   []core.MilesProgram
	Cards      []core.Card // owned
	Rules      []core.EarnRule
	Caps       []core.Cap
	Partners   []core.TransferPartner
	Changes    []core.RateChange
	States     []core.SpendingState
	Balances   []core.MilesBalance
	MilesTxs   []core.MilesTransaction
	Txs        []core.Transaction
	Reads      []core.UserAlertRead
}

// Load fetches the full snapshot for a user and month in parallel.
func (s *AdvisorService) Load(ctx context.Context, userID int64, month core.MonthKey) (*Snapshot, error) {
	snap := &Snapshot{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) { snap.Categories, err = s.store.ListCategories(ctx); return })
	g.Go(func() (err error) { snap.Programs, err = s.store.ListPrograms(ctx); return })
	g.Go(func() (err error) { snap.Cards, err = s.store.ListUserCards(ctx, userID); return })
	g.Go(func() (err error) { snap.Rules, err = s.store.ListEarnRules(ctx); return })
	g.Go(func() (err error) { snap.Caps, err = s.store.ListCaps(ctx); return })
	g.Go(func() (err error) { snap.Partners, err = s.store.ListTransferPartners(ctx); return })
	g.Go(func() (err error) { snap.Changes, err = s.store.ListRateChanges(ctx); return })
	g.Go(func() (err error) { snap.States, err = s.store.ListSpendingStates(ctx, userID, month); return })
	g.Go(func() (err error) { snap.Balances, err = s.store.ListMilesBalances(ctx, userID); return })
	g.Go(func() (err error) { snap.MilesTxs, err = s.store.ListMilesTransactions(ctx, userID); return })
	g.Go(func() (err error) { snap.Txs, err = s.store.ListTransactions(ctx, userID); return })
	g.Go(func() (err error) { snap.Reads, err = s.store.ListAlertReads(ctx, userID); return })

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// Recommend ranks the user's cards for a category in the current month.
func (s *AdvisorService) Recommend(ctx context.Context, userID int64, category string) ([]engine.Recommendation, error) {
	month := core.MonthOf(s.now())
	snap, err := s.Load(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	cat := engine.Catalog{Categories: snap.Categories, Rules: snap.Rules, Caps: snap.Caps}
	return engine.Rank(cat, category, snap.Cards, snap.States, userID, month)
}

// Portfolio aggregates the user's miles per program.
func (s *AdvisorService) Portfolio(ctx context.Context, userID int64, kind *core.ProgramKind) ([]engine.ProgramBalance, error) {
	snap, err := s.Load(ctx, userID, core.MonthOf(s.now()))
	if err != nil {
		return nil, err
	}
	in := engine.PortfolioInput{
		Programs:     snap.Programs,
		Cards:        snap.Cards,
		Rules:        snap.Rules,
		Balances:     snap.Balances,
		MilesTxs:     snap.MilesTxs,
		Transactions: snap.Txs,
	}
	return engine.Portfolio(in, kind), nil
}

// TransferOptions lists conversions out of a source program at the
// user's current display total for it.
func (s *AdvisorService) TransferOptions(ctx context.Context, userID, sourceProgramID int64) ([]engine.TransferOption, error) {
	snap, err := s.Load(ctx, userID, core.MonthOf(s.now()))
	if err != nil {
		return nil, err
	}
	balance, err := programBalance(snap, sourceProgramID)
	if err != nil {
		return nil, err
	}
	return engine.TransferOptions(snap.Partners, snap.Programs, sourceProgramID, balance), nil
}

// PotentialMiles reports how many destination miles the user could pool.
func (s *AdvisorService) PotentialMiles(ctx context.Context, userID, destProgramID int64) ([]engine.PotentialSource, error) {
	snap, err := s.Load(ctx, userID, core.MonthOf(s.now()))
	if err != nil {
		return nil, err
	}
	if !knownProgram(snap.Programs, destProgramID) {
		return nil, core.ErrUnknownProgram
	}
	rows := portfolioFromSnapshot(snap, nil)
	return engine.PotentialMiles(rows, snap.Partners, destProgramID), nil
}

// Nudge suggests moving the user's richest bank-points balance.
func (s *AdvisorService) Nudge(ctx context.Context, userID int64) (*engine.Nudge, error) {
	snap, err := s.Load(ctx, userID, core.MonthOf(s.now()))
	if err != nil {
		return nil, err
	}
	rows := portfolioFromSnapshot(snap, nil)

	options := make(map[int64][]engine.TransferOption, len(rows))
	for _, r := range rows {
		if r.Program.Kind != core.KindBankPoints {
			continue
		}
		options[r.Program.ID] = engine.TransferOptions(snap.Partners, snap.Programs, r.Program.ID, r.DisplayTotal)
	}
	return engine.NudgeSuggestion(rows, options), nil
}

// UserAlerts returns undismissed portfolio-relevant rate changes.
func (s *AdvisorService) UserAlerts(ctx context.Context, userID int64, maxAgeDays int) ([]core.RateChange, engine.AlertPresentation, error) {
	snap, err := s.Load(ctx, userID, core.MonthOf(s.now()))
	if err != nil {
		return nil, engine.AlertPresentation{}, err
	}

	programIDs := make(map[int64]bool)
	for _, c := range snap.Cards {
		programIDs[c.ProgramID] = true
	}
	for _, b := range snap.Balances {
		programIDs[b.ProgramID] = true
	}
	ids := make([]int64, 0, len(programIDs))
	for id := range programIDs {
		ids = append(ids, id)
	}

	alerts := engine.UserAlerts(engine.UserAlertInput{
		Changes:    snap.Changes,
		Cards:      snap.Cards,
		ProgramIDs: ids,
		Reads:      snap.Reads,
	}, engine.AlertQuery{Now: s.now(), MaxAgeDays: maxAgeDays})
	return alerts, engine.Presentation(alerts), nil
}

// CardAlerts returns every recent change for one card.
func (s *AdvisorService) CardAlerts(ctx context.Context, cardID int64, maxAgeDays int) ([]core.RateChange, error) {
	changes, err := s.store.ListRateChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rate changes: %w", err)
	}
	return engine.CardAlerts(changes, cardID, engine.AlertQuery{Now: s.now(), MaxAgeDays: maxAgeDays}), nil
}

func portfolioFromSnapshot(snap *Snapshot, kind *core.ProgramKind) []engine.ProgramBalance {
	return engine.Portfolio(engine.PortfolioInput{
		Programs:     snap.Programs,
		Cards:        snap.Cards,
		Rules:        snap.Rules,
		Balances:     snap.Balances,
		MilesTxs:     snap.MilesTxs,
		Transactions: snap.Txs,
	}, kind)
}

func programBalance(snap *Snapshot, programID int64) (int64, error) {
	if !knownProgram(snap.Programs, programID) {
		return 0, core.ErrUnknownProgram
	}
	for _, r := range portfolioFromSnapshot(snap, nil) {
		if r.Program.ID == programID {
			return r.DisplayTotal, nil
		}
	}
	return 0, nil
}

func knownProgram(programs []core.MilesProgram, id int64) bool {
	for _, p := range programs {
		if p.ID == id {
			return true
		}
	}
	return false
}

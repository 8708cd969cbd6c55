package storage

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"milecard/internal/core"
)

// MemStore is an in-memory implementation of the services.Store surface.
// It backs the memory data backend and the handler/service tests; the
// SQLite repository is the durable twin.
type MemStore struct {
	mu sync.Mutex

	categories []string
	programs   []core.MilesProgram
	cards      []core.Card
	rules      []core.EarnRule
	caps       []core.Cap
	partners   []core.TransferPartner
	changes    []core.RateChange

	userCards map[int64][]int64 // userID -> cardIDs in add order
	txs       []core.Transaction
	states    map[core.StateKey]core.SpendingState
	balances  map[int64]map[int64]core.MilesBalance // userID -> programID
	milesTxs  []core.MilesTransaction
	goals     []core.MilesGoal
	reads     map[int64]map[int64]core.UserAlertRead

	nextTxID      int64
	nextMilesTxID int64
	nextGoalID    int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		userCards: make(map[int64][]int64),
		states:    make(map[core.StateKey]core.SpendingState),
		balances:  make(map[int64]map[int64]core.MilesBalance),
		reads:     make(map[int64]map[int64]core.UserAlertRead),
	}
}

// SeedReference loads provider data wholesale; used by tests and the
// memory backend at startup.
func (m *MemStore) SeedReference(categories []string, programs []core.MilesProgram, cards []core.Card,
	rules []core.EarnRule, caps []core.Cap, partners []core.TransferPartner, changes []core.RateChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = categories
	m.programs = programs
	m.cards = cards
	m.rules = rules
	m.caps = caps
	m.partners = partners
	m.changes = changes
}

func (m *MemStore) ListCategories(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.categories...), nil
}

func (m *MemStore) ListPrograms(ctx context.Context) ([]core.MilesProgram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.MilesProgram(nil), m.programs...), nil
}

func (m *MemStore) ListCards(ctx context.Context) ([]core.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Card(nil), m.cards...), nil
}

func (m *MemStore) ListEarnRules(ctx context.Context) ([]core.EarnRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.EarnRule(nil), m.rules...), nil
}

func (m *MemStore) ListCaps(ctx context.Context) ([]core.Cap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Cap(nil), m.caps...), nil
}

func (m *MemStore) ListTransferPartners(ctx context.Context) ([]core.TransferPartner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.TransferPartner(nil), m.partners...), nil
}

func (m *MemStore) ListRateChanges(ctx context.Context) ([]core.RateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.RateChange(nil), m.changes...), nil
}

func (m *MemStore) ListUserCards(ctx context.Context, userID int64) ([]core.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Card
	for _, cardID := range m.userCards[userID] {
		for _, c := range m.cards {
			if c.ID == cardID {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) AddUserCard(ctx context.Context, userID, cardID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.userCards[userID] {
		if id == cardID {
			return nil
		}
	}
	m.userCards[userID] = append(m.userCards[userID], cardID)
	return nil
}

func (m *MemStore) RemoveUserCard(ctx context.Context, userID, cardID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.userCards[userID]
	for i, id := range ids {
		if id == cardID {
			m.userCards[userID] = append(ids[:i:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemStore) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTxID++
	tx.ID = m.nextTxID
	m.txs = append(m.txs, tx)
	return tx.ID, nil
}

func (m *MemStore) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Transaction
	for _, tx := range m.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *MemStore) ListSpendingStates(ctx context.Context, userID int64, month core.MonthKey) ([]core.SpendingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.SpendingState
	for key, s := range m.states {
		if key.UserID == userID && key.Month == month {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CardID != out[j].CardID {
			return out[i].CardID < out[j].CardID
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (m *MemStore) UpsertSpendingState(ctx context.Context, s core.SpendingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.Key()] = s
	return nil
}

func (m *MemStore) UpsertMilesBalance(ctx context.Context, b core.MilesBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byProgram, ok := m.balances[b.UserID]
	if !ok {
		byProgram = make(map[int64]core.MilesBalance)
		m.balances[b.UserID] = byProgram
	}
	if existing, ok := byProgram[b.ProgramID]; ok && existing.Balance == b.Balance {
		return nil // same value, keep the original timestamp
	}
	byProgram[b.ProgramID] = b
	return nil
}

func (m *MemStore) ListMilesBalances(ctx context.Context, userID int64) ([]core.MilesBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.MilesBalance
	for _, b := range m.balances[userID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProgramID < out[j].ProgramID })
	return out, nil
}

func (m *MemStore) InsertMilesTransaction(ctx context.Context, mt core.MilesTransaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMilesTxID++
	mt.ID = m.nextMilesTxID
	m.milesTxs = append(m.milesTxs, mt)
	return mt.ID, nil
}

func (m *MemStore) ListMilesTransactions(ctx context.Context, userID int64) ([]core.MilesTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.MilesTransaction
	for _, mt := range m.milesTxs {
		if mt.UserID == userID {
			out = append(out, mt)
		}
	}
	return out, nil
}

func (m *MemStore) InsertGoal(ctx context.Context, g core.MilesGoal) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextGoalID++
	g.ID = m.nextGoalID
	m.goals = append(m.goals, g)
	return g.ID, nil
}

func (m *MemStore) DeleteGoal(ctx context.Context, userID, goalID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, g := range m.goals {
		if g.ID == goalID && g.UserID == userID {
			m.goals = append(m.goals[:i:i], m.goals[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *MemStore) ListGoals(ctx context.Context, userID, programID int64) ([]core.MilesGoal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.MilesGoal
	for _, g := range m.goals {
		if g.UserID == userID && g.ProgramID == programID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MemStore) ListAllGoals(ctx context.Context, userID int64) ([]core.MilesGoal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.MilesGoal
	for _, g := range m.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MemStore) ListGoalUserIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, g := range m.goals {
		if g.AchievedAt == nil && !seen[g.UserID] {
			seen[g.UserID] = true
			out = append(out, g.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemStore) MarkGoalAchieved(ctx context.Context, goalID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, g := range m.goals {
		if g.ID == goalID && g.AchievedAt == nil {
			t := at
			m.goals[i].AchievedAt = &t
			return nil
		}
	}
	return nil
}

func (m *MemStore) MarkAlertRead(ctx context.Context, userID, rateChangeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byChange, ok := m.reads[userID]
	if !ok {
		byChange = make(map[int64]core.UserAlertRead)
		m.reads[userID] = byChange
	}
	if _, ok := byChange[rateChangeID]; !ok {
		byChange[rateChangeID] = core.UserAlertRead{UserID: userID, RateChangeID: rateChangeID, ReadAt: time.Now()}
	}
	return nil
}

func (m *MemStore) ListAlertReads(ctx context.Context, userID int64) ([]core.UserAlertRead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.UserAlertRead
	for _, r := range m.reads[userID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RateChangeID < out[j].RateChangeID })
	return out, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"milecard/internal/amqp"
	"milecard/internal/core"
	"milecard/internal/engine"
)

// LedgerService owns the write side of the spending and miles ledgers.
// Every write lands in storage first; the AMQP event is best-effort and
// never fails the request, mirroring the save-then-publish flow of the
// rest of the system.
type LedgerService struct {
	store     Store
	publisher Publisher
}

func NewLedgerService(store Store, publisher Publisher) *LedgerService {
	return &LedgerService{store: store, publisher: publisher}
}

// RecordTransaction appends a spend transaction and folds it into the
// monthly aggregate for its (user, card, category, month) key.
func (s *LedgerService) RecordTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("load categories: %w", err)
	}
	if !contains(categories, tx.Category) {
		return 0, core.ErrUnknownCategory
	}

	id, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	caps, err := s.store.ListCaps(ctx)
	if err != nil {
		return 0, fmt.Errorf("load caps: %w", err)
	}
	month := core.MonthOf(tx.Date)
	states, err := s.store.ListSpendingStates(ctx, tx.UserID, month)
	if err != nil {
		return 0, fmt.Errorf("load spending states: %w", err)
	}

	next := engine.ApplyTransaction(states, caps, tx)
	key := core.StateKey{UserID: tx.UserID, CardID: tx.CardID, Category: tx.Category, Month: month}
	updated, ok := engine.StateFor(next, key)
	if !ok {
		return 0, fmt.Errorf("apply transaction produced no state for %+v", key)
	}
	if err := s.store.UpsertSpendingState(ctx, updated); err != nil {
		return 0, fmt.Errorf("persist spending state: %w", err)
	}

	s.publishTransactionRecorded(ctx, id, tx)
	return id, nil
}

// RecordRedemption appends a redeem entry to the miles ledger.
func (s *LedgerService) RecordRedemption(ctx context.Context, mt core.MilesTransaction) (int64, error) {
	mt.Kind = core.MilesRedeem
	if err := mt.Validate(); err != nil {
		return 0, err
	}
	if mt.Date.IsZero() {
		mt.Date = time.Now()
	}

	id, err := s.store.InsertMilesTransaction(ctx, mt)
	if err != nil {
		return 0, fmt.Errorf("save redemption: %w", err)
	}

	s.publishBalanceUpdated(ctx, mt.UserID, mt.ProgramID)
	return id, nil
}

// SetBalance upserts the user's manually entered balance for a program.
// Writing the same value again is a no-op.
func (s *LedgerService) SetBalance(ctx context.Context, userID, programID, balance int64) error {
	programs, err := s.store.ListPrograms(ctx)
	if err != nil {
		return fmt.Errorf("load programs: %w", err)
	}
	known := false
	for _, p := range programs {
		if p.ID == programID {
			known = true
			break
		}
	}
	if !known {
		return core.ErrUnknownProgram
	}

	b := core.MilesBalance{UserID: userID, ProgramID: programID, Balance: balance, UpdatedAt: time.Now()}
	if err := s.store.UpsertMilesBalance(ctx, b); err != nil {
		return fmt.Errorf("save balance: %w", err)
	}

	s.publishBalanceUpdated(ctx, userID, programID)
	return nil
}

// AddCard connects a reference card to the user's portfolio.
func (s *LedgerService) AddCard(ctx context.Context, userID, cardID int64) error {
	return s.store.AddUserCard(ctx, userID, cardID)
}

// RemoveCard disconnects a card. Past transactions stay in the log.
func (s *LedgerService) RemoveCard(ctx context.Context, userID, cardID int64) error {
	return s.store.RemoveUserCard(ctx, userID, cardID)
}

// DismissAlert marks a rate-change alert read for the user.
func (s *LedgerService) DismissAlert(ctx context.Context, userID, rateChangeID int64) error {
	return s.store.MarkAlertRead(ctx, userID, rateChangeID)
}

func (s *LedgerService) publishTransactionRecorded(ctx context.Context, id int64, tx core.Transaction) {
	if s.publisher == nil {
		return
	}
	msg := amqp.TransactionRecordedMessage{
		TransactionID: id,
		UserID:        tx.UserID,
		CardID:        tx.CardID,
	}
	if err := s.publisher.PublishTransactionRecorded(ctx, msg); err != nil {
		// The transaction is already durable; the event is advisory.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", id, "error", err)
	}
}

func (s *LedgerService) publishBalanceUpdated(ctx context.Context, userID, programID int64) {
	if s.publisher == nil {
		return
	}
	msg := amqp.BalanceUpdatedMessage{UserID: userID, ProgramID: programID}
	if err := s.publisher.PublishBalanceUpdated(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish balance event",
			"user_id", userID, "program_id", programID, "error", err)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

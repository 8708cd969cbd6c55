package services

import (
	"context"
	"time"

	"milecard/internal/amqp"
	"milecard/internal/core"
)

// Store is the persistence surface the services need. Implemented by
// storage.SQLiteRepository for real runs and storage.MemStore for tests
// and the memory backend.
type Store interface {
	// reference data
	ListCategories(ctx context.Context) ([]string, error)
	ListCards(ctx context.Context) ([]core.Card, error)
	ListPrograms(ctx context.Context) ([]core.MilesProgram, error)
	ListEarnRules(ctx context.Context) ([]core.EarnRule, error)
	ListCaps(ctx context.Context) ([]core.Cap, error)
	ListTransferPartners(ctx context.Context) ([]core.TransferPartner, error)
	ListRateChanges(ctx context.Context) ([]core.RateChange, error)

	// user ledger
	ListUserCards(ctx context.Context, userID int64) ([]core.Card, error)
	AddUserCard(ctx context.Context, userID, cardID int64) error
	RemoveUserCard(ctx context.Context, userID, cardID int64) error
	InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
	ListSpendingStates(ctx context.Context, userID int64, month core.MonthKey) ([]core.SpendingState, error)
	UpsertSpendingState(ctx context.Context, s core.SpendingState) error
	UpsertMilesBalance(ctx context.Context, b core.MilesBalance) error
	ListMilesBalances(ctx context.Context, userID int64) ([]core.MilesBalance, error)
	InsertMilesTransaction(ctx context.Context, mt core.MilesTransaction) (int64, error)
	ListMilesTransactions(ctx context.Context, userID int64) ([]core.MilesTransaction, error)

	// goals
	InsertGoal(ctx context.Context, g core.MilesGoal) (int64, error)
	DeleteGoal(ctx context.Context, userID, goalID int64) error
	ListGoals(ctx context.Context, userID, programID int64) ([]core.MilesGoal, error)
	ListAllGoals(ctx context.Context, userID int64) ([]core.MilesGoal, error)
	ListGoalUserIDs(ctx context.Context) ([]int64, error)
	MarkGoalAchieved(ctx context.Context, goalID int64, at time.Time) error

	// alert dismissals
	MarkAlertRead(ctx context.Context, userID, rateChangeID int64) error
	ListAlertReads(ctx context.Context, userID int64) ([]core.UserAlertRead, error)
}

// Publisher is the slice of the AMQP client the services use. A nil
// publisher disables events without failing writes.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, msg amqp.TransactionRecordedMessage) error
	PublishBalanceUpdated(ctx context.Context, msg amqp.BalanceUpdatedMessage) error
	PublishGoalAchieved(ctx context.Context, msg amqp.GoalAchievedMessage) error
}

// Package worker runs goal-achievement checks in the background binary.
// It reacts to ledger events from AMQP and sweeps all open goals on a
// timer as a backstop for missed messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"milecard/internal/amqp"
	"milecard/internal/services"
)

type GoalWorker struct {
	goals    *services.GoalService
	interval time.Duration
}

func NewGoalWorker(goals *services.GoalService, interval time.Duration) *GoalWorker {
	return &GoalWorker{goals: goals, interval: interval}
}

// Handlers returns the AMQP dispatch table for this worker.
func (w *GoalWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		OnTransactionRecorded: w.HandleTransactionRecorded,
		OnBalanceUpdated:      w.HandleBalanceUpdated,
	}
}

// HandleTransactionRecorded re-checks all of the user's goals: a spend
// transaction changes auto-earned miles for any program the card feeds.
func (w *GoalWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"transaction_id", msg.TransactionID,
		"user_id", msg.UserID)

	if err := w.goals.CheckAll(ctx, msg.UserID); err != nil {
		return fmt.Errorf("check goals after transaction %d: %w", msg.TransactionID, err)
	}
	return nil
}

// HandleBalanceUpdated re-checks the goals of the one program whose
// balance moved.
func (w *GoalWorker) HandleBalanceUpdated(ctx context.Context, msg *amqp.BalanceUpdatedMessage) error {
	slog.InfoContext(ctx, "Processing balance event",
		"user_id", msg.UserID,
		"program_id", msg.ProgramID)

	if err := w.goals.CheckProgram(ctx, msg.UserID, msg.ProgramID); err != nil {
		return fmt.Errorf("check goals for program %d: %w", msg.ProgramID, err)
	}
	return nil
}

// StartupCheck sweeps everything once at boot to recover from downtime.
func (w *GoalWorker) StartupCheck(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup goal sweep")
	if err := w.goals.SweepAll(ctx); err != nil {
		return fmt.Errorf("startup sweep: %w", err)
	}
	return nil
}

// RunPeriodic sweeps all open goals on the configured interval until the
// context ends. Sweep failures are logged and retried next tick.
func (w *GoalWorker) RunPeriodic(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Periodic goal sweep started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Periodic goal sweep stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := w.goals.SweepAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Goal sweep failed", "error", err)
			}
		}
	}
}

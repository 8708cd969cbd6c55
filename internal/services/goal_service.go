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

// GoalService manages savings goals and runs achievement checks against
// the current program balances.
type GoalService struct {
	store     Store
	advisor   *AdvisorService
	publisher Publisher
}

func NewGoalService(store Store, advisor *AdvisorService, publisher Publisher) *GoalService {
	return &GoalService{store: store, advisor: advisor, publisher: publisher}
}

// Create validates and persists a new goal. The open-goal limit counts
// only unachieved goals for the same (user, program).
func (s *GoalService) Create(ctx context.Context, goal core.MilesGoal) (core.MilesGoal, error) {
	existing, err := s.store.ListGoals(ctx, goal.UserID, goal.ProgramID)
	if err != nil {
		return core.MilesGoal{}, fmt.Errorf("load goals: %w", err)
	}
	if err := engine.ValidateNewGoal(goal, existing); err != nil {
		return core.MilesGoal{}, err
	}

	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now()
	}
	id, err := s.store.InsertGoal(ctx, goal)
	if err != nil {
		return core.MilesGoal{}, fmt.Errorf("save goal: %w", err)
	}
	goal.ID = id

	slog.InfoContext(ctx, "Goal created",
		"goal_id", id,
		"user_id", goal.UserID,
		"program_id", goal.ProgramID,
		"target", goal.Target)
	return goal, nil
}

func (s *GoalService) Delete(ctx context.Context, userID, goalID int64) error {
	return s.store.DeleteGoal(ctx, userID, goalID)
}

// List returns the user's goals for a program, unachieved first.
func (s *GoalService) List(ctx context.Context, userID, programID int64) ([]core.MilesGoal, error) {
	goals, err := s.store.ListGoals(ctx, userID, programID)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	return engine.SortGoals(goals), nil
}

// CheckProgram evaluates one program's goals against its current display
// total, marking and announcing any newly achieved ones.
func (s *GoalService) CheckProgram(ctx context.Context, userID, programID int64) error {
	rows, err := s.advisor.Portfolio(ctx, userID, nil)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	var balance int64
	for _, r := range rows {
		if r.Program.ID == programID {
			balance = r.DisplayTotal
			break
		}
	}

	goals, err := s.store.ListGoals(ctx, userID, programID)
	if err != nil {
		return fmt.Errorf("load goals: %w", err)
	}

	now := time.Now()
	_, newly := engine.CheckAchievements(goals, balance, now)
	for _, g := range newly {
		if err := s.store.MarkGoalAchieved(ctx, g.ID, now); err != nil {
			return fmt.Errorf("mark goal %d achieved: %w", g.ID, err)
		}
		slog.InfoContext(ctx, "Goal achieved",
			"goal_id", g.ID,
			"user_id", g.UserID,
			"program_id", g.ProgramID,
			"target", g.Target,
			"balance", balance)
		s.publishAchieved(ctx, g)
	}
	return nil
}

// CheckAll sweeps every program the user has goals for.
func (s *GoalService) CheckAll(ctx context.Context, userID int64) error {
	goals, err := s.store.ListAllGoals(ctx, userID)
	if err != nil {
		return fmt.Errorf("load goals: %w", err)
	}

	seen := make(map[int64]bool)
	for _, g := range goals {
		if g.Achieved() || seen[g.ProgramID] {
			continue
		}
		seen[g.ProgramID] = true
		if err := s.CheckProgram(ctx, userID, g.ProgramID); err != nil {
			return err
		}
	}
	return nil
}

// SweepAll checks every user that still has open goals. The worker runs
// it on a timer as a backstop for missed events.
func (s *GoalService) SweepAll(ctx context.Context) error {
	userIDs, err := s.store.ListGoalUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list goal users: %w", err)
	}
	for _, userID := range userIDs {
		if err := s.CheckAll(ctx, userID); err != nil {
			return fmt.Errorf("check goals for user %d: %w", userID, err)
		}
	}
	return nil
}

func (s *GoalService) publishAchieved(ctx context.Context, g core.MilesGoal) {
	if s.publisher == nil {
		return
	}
	msg := amqp.GoalAchievedMessage{
		GoalID:    g.ID,
		UserID:    g.UserID,
		ProgramID: g.ProgramID,
		Target:    g.Target,
		Title:     g.Description,
	}
	if err := s.publisher.PublishGoalAchieved(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish goal event",
			"goal_id", g.ID, "error", err)
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"milecard/internal/core"
)

func TestGoalCreateEnforcesLimit(t *testing.T) {
	store := seededStore()
	svc := NewGoalService(store, NewAdvisorService(store), nil)
	ctx := context.Background()

	for i := 0; i < core.MaxOpenGoals; i++ {
		g := core.MilesGoal{UserID: 1, ProgramID: 1, Target: 25_000, Description: "Tokyo"}
		if _, err := svc.Create(ctx, g); err != nil {
			t.Fatalf("Create() #%d error = %v", i+1, err)
		}
	}

	_, err := svc.Create(ctx, core.MilesGoal{UserID: 1, ProgramID: 1, Target: 25_000, Description: "Osaka"})
	if !errors.Is(err, core.ErrGoalLimit) {
		t.Errorf("Create() over limit error = %v, want ErrGoalLimit", err)
	}

	// the limit is per program, not per user
	if _, err := svc.Create(ctx, core.MilesGoal{UserID: 1, ProgramID: 2, Target: 25_000, Description: "Lounge pass"}); err != nil {
		t.Errorf("Create() for other program error = %v, want nil", err)
	}
}

func TestGoalCreateValidation(t *testing.T) {
	store := seededStore()
	svc := NewGoalService(store, NewAdvisorService(store), nil)

	tests := []struct {
		name    string
		goal    core.MilesGoal
		wantErr error
	}{
		{
			name:    "target below minimum",
			goal:    core.MilesGoal{UserID: 1, ProgramID: 1, Target: 999, Description: "Short hop"},
			wantErr: core.ErrTargetTooLow,
		},
		{
			name:    "blank description",
			goal:    core.MilesGoal{UserID: 1, ProgramID: 1, Target: 25_000, Description: "   "},
			wantErr: core.ErrBlankDescription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.goal)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGoalCheckProgramMarksAndPublishes(t *testing.T) {
	store := seededStore()
	pub := &capturingPublisher{}
	svc := NewGoalService(store, NewAdvisorService(store), pub)
	ctx := context.Background()

	goal, err := svc.Create(ctx, core.MilesGoal{UserID: 1, ProgramID: 1, Target: 30_000, Description: "Tokyo"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.UpsertMilesBalance(ctx, core.MilesBalance{UserID: 1, ProgramID: 1, Balance: 35_000, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("UpsertMilesBalance() error = %v", err)
	}

	if err := svc.CheckProgram(ctx, 1, 1); err != nil {
		t.Fatalf("CheckProgram() error = %v", err)
	}

	goals, _ := store.ListGoals(ctx, 1, 1)
	if len(goals) != 1 || !goals[0].Achieved() {
		t.Fatalf("goal not marked achieved: %+v", goals)
	}
	first := *goals[0].AchievedAt

	if len(pub.goalMsgs) != 1 {
		t.Fatalf("got %d goal events, want 1", len(pub.goalMsgs))
	}
	if pub.goalMsgs[0].GoalID != goal.ID {
		t.Errorf("published GoalID = %d, want %d", pub.goalMsgs[0].GoalID, goal.ID)
	}

	// a second sweep must not re-announce or move the timestamp
	if err := svc.CheckProgram(ctx, 1, 1); err != nil {
		t.Fatalf("CheckProgram() second run error = %v", err)
	}
	goals, _ = store.ListGoals(ctx, 1, 1)
	if !goals[0].AchievedAt.Equal(first) {
		t.Errorf("AchievedAt moved from %v to %v", first, goals[0].AchievedAt)
	}
	if len(pub.goalMsgs) != 1 {
		t.Errorf("got %d goal events after re-check, want still 1", len(pub.goalMsgs))
	}
}

func TestGoalCheckAllSweepsPrograms(t *testing.T) {
	store := seededStore()
	pub := &capturingPublisher{}
	svc := NewGoalService(store, NewAdvisorService(store), pub)
	ctx := context.Background()

	if _, err := svc.Create(ctx, core.MilesGoal{UserID: 1, ProgramID: 1, Target: 10_000, Description: "Flight"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, core.MilesGoal{UserID: 1, ProgramID: 2, Target: 10_000, Description: "Gift card"}); err != nil {
		t.Fatal(err)
	}
	store.UpsertMilesBalance(ctx, core.MilesBalance{UserID: 1, ProgramID: 1, Balance: 15_000, UpdatedAt: time.Now()})
	store.UpsertMilesBalance(ctx, core.MilesBalance{UserID: 1, ProgramID: 2, Balance: 5_000, UpdatedAt: time.Now()})

	if err := svc.CheckAll(ctx, 1); err != nil {
		t.Fatalf("CheckAll() error = %v", err)
	}

	if len(pub.goalMsgs) != 1 {
		t.Fatalf("got %d goal events, want 1", len(pub.goalMsgs))
	}
	if pub.goalMsgs[0].ProgramID != 1 {
		t.Errorf("achieved ProgramID = %d, want 1", pub.goalMsgs[0].ProgramID)
	}
}

func TestGoalDelete(t *testing.T) {
	store := seededStore()
	svc := NewGoalService(store, NewAdvisorService(store), nil)
	ctx := context.Background()

	goal, err := svc.Create(ctx, core.MilesGoal{UserID: 1, ProgramID: 1, Target: 25_000, Description: "Tokyo"})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, 2, goal.ID); err == nil {
		t.Error("Delete() by another user succeeded, want error")
	}
	if err := svc.Delete(ctx, 1, goal.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	goals, _ := store.ListGoals(ctx, 1, 1)
	if len(goals) != 0 {
		t.Errorf("got %d goals after delete, want 0", len(goals))
	}
}

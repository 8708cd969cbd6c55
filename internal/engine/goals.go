package engine

import (
	"sort"
	"time"

	"milecard/internal/core"
)

// ValidateNewGoal applies the creation rules: minimum target, non-blank
// description, and at most core.MaxOpenGoals unachieved goals per
// (user, program). Achieved goals never count against the limit, so a
// slot frees up as soon as an old goal is achieved or deleted.
func ValidateNewGoal(goal core.MilesGoal, existing []core.MilesGoal) error {
	if err := goal.Validate(); err != nil {
		return err
	}
	open := 0
	for _, g := range existing {
		if g.UserID == goal.UserID && g.ProgramID == goal.ProgramID && !g.Achieved() {
			open++
		}
	}
	if open >= core.MaxOpenGoals {
		return core.ErrGoalLimit
	}
	return nil
}

// CheckAchievements marks every unachieved goal whose target the balance
// now meets, stamping AchievedAt with now. Already-achieved goals are
// untouched: the first achievement timestamp is immutable even if the
// balance later dips and recovers. Returns the updated goals plus the
// ones newly achieved by this check.
func CheckAchievements(goals []core.MilesGoal, balance int64, now time.Time) (updated, newlyAchieved []core.MilesGoal) {
	updated = make([]core.MilesGoal, len(goals))
	copy(updated, goals)
	for i, g := range updated {
		if g.Achieved() || balance < g.Target {
			continue
		}
		at := now
		updated[i].AchievedAt = &at
		newlyAchieved = append(newlyAchieved, updated[i])
	}
	return updated, newlyAchieved
}

// SortGoals orders unachieved goals before achieved ones, oldest first
// within each group.
func SortGoals(goals []core.MilesGoal) []core.MilesGoal {
	out := make([]core.MilesGoal, len(goals))
	copy(out, goals)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Achieved() != out[j].Achieved() {
			return !out[i].Achieved()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

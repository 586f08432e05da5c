package points

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/model"
)

func createGoal(t *testing.T, svc *Service, childID int64, target int, bonuses map[int]int) *model.Goal {
	t.Helper()
	g, err := svc.CreateGoal(context.Background(), GoalInput{
		ChildID:          childID,
		Title:            "New bike",
		TargetPoints:     target,
		MilestoneBonuses: bonuses,
	})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	return g
}

func TestCreateGoalValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)

	tests := []struct {
		name string
		in   GoalInput
	}{
		{"no title", GoalInput{ChildID: child.ID, TargetPoints: 100}},
		{"zero target", GoalInput{ChildID: child.ID, Title: "Bike"}},
		{"unknown threshold", GoalInput{ChildID: child.ID, Title: "Bike", TargetPoints: 100, MilestoneBonuses: map[int]int{33: 5}}},
		{"negative bonus", GoalInput{ChildID: child.ID, Title: "Bike", TargetPoints: 100, MilestoneBonuses: map[int]int{25: -5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateGoal(ctx, tt.in); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}

	g := createGoal(t, svc, child.ID, 300, nil)
	if g.Tier != "medium" {
		t.Errorf("tier = %s, want medium", g.Tier)
	}
}

func TestDepositCrossesMilestone(t *testing.T) {
	svc, _, rec := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 100)
	g := createGoal(t, svc, child.ID, 100, map[int]int{25: 10, 50: 20, 75: 30})

	first, err := svc.Deposit(ctx, g.ID, 20)
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if first.Milestone != nil || first.GoalProgress != 20 {
		t.Errorf("first = %+v", first)
	}

	second, err := svc.Deposit(ctx, g.ID, 10)
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if second.Milestone == nil || second.Milestone.Percentage != 25 || second.Milestone.Bonus != 10 {
		t.Fatalf("milestone = %+v, want 25%%/10", second.Milestone)
	}
	if second.GoalProgress != 40 {
		t.Errorf("progress = %d, want 40", second.GoalProgress)
	}
	if second.NewBalance != 80 {
		t.Errorf("balance = %d, want 80", second.NewBalance)
	}
	if !rec.has("goal", "milestone_reached") {
		t.Error("expected milestone_reached notification")
	}

	got, err := svc.GetGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if !slices.Equal(got.CompletedMilestones, []int{25}) {
		t.Errorf("completed milestones = %v", got.CompletedMilestones)
	}
	deposits, err := svc.Stores().Goals.ListDeposits(ctx, g.ID)
	if err != nil {
		t.Fatalf("list deposits: %v", err)
	}
	if len(deposits) != 2 || deposits[1].MilestonePercentage == nil || deposits[1].BonusPoints != 10 {
		t.Errorf("deposits = %+v", deposits)
	}
}

func TestMilestoneCreditedOnce(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 500)
	g := createGoal(t, svc, child.ID, 200, map[int]int{50: 25})

	res, err := svc.Deposit(ctx, g.ID, 100)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Milestone == nil || res.GoalProgress != 125 {
		t.Fatalf("first = %+v", res)
	}

	// Raising the target puts the 50% mark ahead of progress again.
	if _, err := svc.UpdateGoalTarget(ctx, g.ID, 400, "bigger bike"); err != nil {
		t.Fatalf("raise target: %v", err)
	}
	res, err = svc.Deposit(ctx, g.ID, 100)
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if res.Milestone != nil {
		t.Errorf("milestone paid twice: %+v", res.Milestone)
	}
}

func TestDepositCapsAtRemaining(t *testing.T) {
	svc, _, rec := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 200)
	g := createGoal(t, svc, child.ID, 100, nil)

	res, err := svc.Deposit(ctx, g.ID, 150)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Deposited != 100 || !res.IsCompleted || res.GoalProgress != 100 {
		t.Errorf("result = %+v", res)
	}
	if res.NewBalance != 100 {
		t.Errorf("balance = %d, want 100", res.NewBalance)
	}
	if !rec.has("goal", "completed") {
		t.Error("expected completed notification")
	}
	if _, err := svc.Deposit(ctx, g.ID, 10); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("deposit into completed err = %v, want conflict", err)
	}
}

func TestDepositAboveBalanceChecksCappedAmount(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 140)
	g := createGoal(t, svc, child.ID, 100, nil)

	if _, err := svc.Deposit(ctx, g.ID, 40); err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	res, err := svc.Deposit(ctx, g.ID, 500)
	if err != nil {
		t.Fatalf("deposit above balance: %v", err)
	}
	if res.Deposited != 60 || res.GoalProgress != 100 || !res.IsCompleted {
		t.Errorf("result = %+v, want 60 deposited and completed", res)
	}
	if res.NewBalance != 40 {
		t.Errorf("balance = %d, want 40", res.NewBalance)
	}
}

func TestBonusCompletesGoal(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 100)
	g := createGoal(t, svc, child.ID, 100, map[int]int{75: 30})

	res, err := svc.Deposit(ctx, g.ID, 80)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !res.IsCompleted || res.GoalProgress != 100 {
		t.Errorf("result = %+v, want completed at target", res)
	}
	if res.NewBalance != 50 {
		t.Errorf("balance = %d, want 50", res.NewBalance)
	}
}

func TestDepositInsufficientFunds(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 10)
	g := createGoal(t, svc, child.ID, 100, nil)

	if _, err := svc.Deposit(ctx, g.ID, 20); !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want insufficient funds", err)
	}
	if _, err := svc.Deposit(ctx, g.ID, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("zero deposit err = %v, want validation", err)
	}
	got, _ := svc.GetGoal(ctx, g.ID)
	if got.CurrentPoints != 0 {
		t.Errorf("progress = %d, want 0", got.CurrentPoints)
	}
}

func TestUpdateGoalTarget(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 100)
	g := createGoal(t, svc, child.ID, 200, nil)

	if _, err := svc.Deposit(ctx, g.ID, 60); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := svc.UpdateGoalTarget(ctx, g.ID, 150, "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank reason err = %v, want validation", err)
	}

	got, err := svc.UpdateGoalTarget(ctx, g.ID, 50, "cheaper bike on sale")
	if err != nil {
		t.Fatalf("lower target: %v", err)
	}
	if !got.Completed || got.CurrentPoints != 50 || got.TargetPoints != 50 {
		t.Errorf("goal = %+v", got)
	}
	if len(got.ChangeLog) != 1 || got.ChangeLog[0].OldTarget != 200 || got.ChangeLog[0].Reason != "cheaper bike on sale" {
		t.Errorf("change log = %+v", got.ChangeLog)
	}
	if b := balance(t, svc, child.ID); b != 50 {
		t.Errorf("balance = %d, want 50 after excess refund", b)
	}
	if _, err := svc.UpdateGoalTarget(ctx, g.ID, 80, "changed mind"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("edit completed err = %v, want conflict", err)
	}
}

func TestArchiveGoalRefundsProgress(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 100)
	g := createGoal(t, svc, child.ID, 200, nil)

	if _, err := svc.Deposit(ctx, g.ID, 70); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := svc.ArchiveGoal(ctx, g.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if b := balance(t, svc, child.ID); b != 100 {
		t.Errorf("balance = %d, want 100", b)
	}
	if _, err := svc.GetGoal(ctx, g.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get archived err = %v, want not found", err)
	}
}

func TestUpdateGoalBonuses(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	g := createGoal(t, svc, child.ID, 400, nil)

	got, err := svc.UpdateGoalBonuses(ctx, g.ID, map[int]int{50: 40})
	if err != nil {
		t.Fatalf("update bonuses: %v", err)
	}
	if got.MilestoneBonuses[50] != 40 {
		t.Errorf("bonuses = %v", got.MilestoneBonuses)
	}
	if _, err := svc.UpdateGoalBonuses(ctx, g.ID, map[int]int{60: 40}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown threshold err = %v, want validation", err)
	}
}

func TestGoalSummary(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	_, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 100)
	g := createGoal(t, svc, child.ID, 1100, map[int]int{25: 50, 50: 75})

	if _, err := svc.Deposit(ctx, g.ID, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	sum, err := svc.GetGoalSummary(ctx, g.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Tier.Name != "xl" {
		t.Errorf("tier = %s, want xl", sum.Tier.Name)
	}
	if sum.Remaining != 1000 || sum.PercentComplete != 9 {
		t.Errorf("remaining = %d, percent = %d", sum.Remaining, sum.PercentComplete)
	}
	if sum.TotalBonus != 125 || sum.NetPointsNeeded != 975 {
		t.Errorf("bonus = %d, net = %d", sum.TotalBonus, sum.NetPointsNeeded)
	}
	if sum.NextMilestone == nil || sum.NextMilestone.Milestone.Percentage != 25 {
		t.Errorf("next milestone = %+v", sum.NextMilestone)
	}
	if len(sum.Milestones) != 2 {
		t.Errorf("milestones = %+v", sum.Milestones)
	}
	if sum.Estimate == "" || sum.DailyEstimate == "" {
		t.Errorf("estimates = %q / %q", sum.Estimate, sum.DailyEstimate)
	}
}

func TestGoalSummaryWeeklyEarningsFollowClock(t *testing.T) {
	svc, clk, _ := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	task := createTask(t, svc, f.ID, model.Task{Title: "Water plants", Points: 30})
	g := createGoal(t, svc, child.ID, 500, nil)

	if _, err := svc.SubmitTask(ctx, SubmitInput{TaskID: task.ID, ChildID: child.ID}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	sum, err := svc.GetGoalSummary(ctx, g.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.WeeklyEarnings != 30 {
		t.Errorf("weekly earnings = %d, want 30", sum.WeeklyEarnings)
	}

	clk.Advance(8 * 24 * time.Hour)
	if _, err := svc.SubmitTask(ctx, SubmitInput{TaskID: task.ID, ChildID: child.ID}); err != nil {
		t.Fatalf("submit next week: %v", err)
	}
	sum, err = svc.GetGoalSummary(ctx, g.ID)
	if err != nil {
		t.Fatalf("summary next week: %v", err)
	}
	if sum.WeeklyEarnings != 30 {
		t.Errorf("weekly earnings after a week = %d, want 30", sum.WeeklyEarnings)
	}
}

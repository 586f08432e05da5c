package points

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/exchange"
	"github.com/dukerupert/familyxp/internal/milestone"
	"github.com/dukerupert/familyxp/internal/model"
	"github.com/dukerupert/familyxp/internal/store"
	"github.com/dukerupert/familyxp/internal/tier"
)

type GoalInput struct {
	ChildID          int64
	Title            string
	TargetPoints     int
	MilestoneBonuses map[int]int
}

func (s *Service) validateBonuses(b map[int]int) error {
	if err := s.milestones.Validate(b); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

func (s *Service) CreateGoal(ctx context.Context, in GoalInput) (*model.Goal, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.TargetPoints <= 0 {
		return nil, apperr.Validation("target points must be positive")
	}
	if err := s.validateBonuses(in.MilestoneBonuses); err != nil {
		return nil, err
	}
	st := s.Stores()
	child, err := activeChild(ctx, st, in.ChildID)
	if err != nil {
		return nil, err
	}
	g, err := st.Goals.Create(ctx, model.Goal{
		ChildID:          child.ID,
		Title:            in.Title,
		TargetPoints:     in.TargetPoints,
		Tier:             s.tiers.ForPoints(in.TargetPoints).Name,
		MilestoneBonuses: in.MilestoneBonuses,
	})
	if err != nil {
		return nil, err
	}
	s.notify(child.FamilyID, "goal", "created", g.ID, map[string]any{"child_id": child.ID})
	return g, nil
}

// liveGoal loads a goal that exists and is not archived.
func liveGoal(ctx context.Context, st *store.Stores, id int64) (*model.Goal, error) {
	g, err := st.Goals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil || g.Lifecycle == model.LifecycleArchived {
		return nil, apperr.NotFound("goal not found")
	}
	return g, nil
}

func (s *Service) GetGoal(ctx context.Context, id int64) (*model.Goal, error) {
	return liveGoal(ctx, s.Stores(), id)
}

func (s *Service) ListGoals(ctx context.Context, childID int64) ([]model.Goal, error) {
	return s.Stores().Goals.ListByChild(ctx, childID)
}

type DepositResult struct {
	Deposited    int                `json:"deposited"`
	NewBalance   int                `json:"new_balance"`
	GoalProgress int                `json:"goal_progress"`
	GoalTarget   int                `json:"goal_target"`
	IsCompleted  bool               `json:"is_completed"`
	Milestone    *milestone.Reached `json:"milestone,omitempty"`
}

// Deposit moves points from the child's balance into a goal.
//
// The amount is capped at what the goal still needs. If the deposit crosses
// an active milestone not yet credited, its bonus is added to both the goal
// and the balance. Completion is checked after the bonus, so a bonus can
// finish a goal; progress never exceeds the target.
func (s *Service) Deposit(ctx context.Context, goalID int64, amount int) (*DepositResult, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	now := s.clock()
	res := &DepositResult{}
	var familyID, childID int64

	err := s.tx(ctx, func(st *store.Stores) error {
		g, err := liveGoal(ctx, st, goalID)
		if err != nil {
			return err
		}
		if g.Completed {
			return apperr.Conflict("goal is already completed")
		}
		child, err := activeChild(ctx, st, g.ChildID)
		if err != nil {
			return err
		}
		familyID, childID = child.FamilyID, child.ID

		deposit := min(amount, g.TargetPoints-g.CurrentPoints)
		if child.PointsBalance < deposit {
			return apperr.InsufficientFunds("not enough points for this deposit")
		}
		entry, err := st.Ledger.AddPoints(ctx, model.LedgerEntry{
			ChildID: child.ID, Amount: -deposit, Type: model.LedgerGoalDeposit,
			ReferenceType: "goal", ReferenceID: g.ID, Description: g.Title, CreatedAt: now,
		})
		if err != nil {
			return err
		}
		res.NewBalance = entry.BalanceAfter

		pre := g.CurrentPoints
		post := pre + deposit
		rec := &model.GoalDeposit{GoalID: g.ID, ChildID: child.ID, Amount: deposit, CreatedAt: now}

		reached := s.milestones.FirstCrossed(pre, post, g.TargetPoints, g.MilestoneBonuses, g.CompletedMilestones)
		if reached != nil {
			bonus, err := st.Ledger.AddPoints(ctx, model.LedgerEntry{
				ChildID: child.ID, Amount: reached.Bonus, Type: model.LedgerMilestoneBonus,
				ReferenceType: "goal", ReferenceID: g.ID,
				Description: g.Title + " " + strconv.Itoa(reached.Percentage) + "% milestone", CreatedAt: now,
			})
			if err != nil {
				return err
			}
			res.NewBalance = bonus.BalanceAfter
			post += reached.Bonus
			g.CompletedMilestones = append(g.CompletedMilestones, reached.Percentage)
			rec.MilestonePercentage = &reached.Percentage
			rec.BonusPoints = reached.Bonus
		}

		if post >= g.TargetPoints {
			post = g.TargetPoints
			g.Completed = true
			g.CompletedAt = &now
		}
		g.CurrentPoints = post
		if err := st.Goals.Save(ctx, g); err != nil {
			return err
		}
		if err := st.Goals.AddDeposit(ctx, rec); err != nil {
			return err
		}

		res.Deposited = deposit
		res.GoalProgress = g.CurrentPoints
		res.GoalTarget = g.TargetPoints
		res.IsCompleted = g.Completed
		res.Milestone = reached
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Deposit(res.Deposited)
	extra := map[string]any{"child_id": childID, "progress": res.GoalProgress, "balance": res.NewBalance}
	s.notify(familyID, "goal", "deposited", goalID, extra)
	if res.Milestone != nil {
		s.metrics.Milestone(strconv.Itoa(res.Milestone.Percentage))
		s.notify(familyID, "goal", "milestone_reached", goalID, map[string]any{
			"child_id": childID, "percentage": res.Milestone.Percentage, "bonus": res.Milestone.Bonus,
		})
	}
	if res.IsCompleted {
		s.metrics.GoalCompleted()
		s.notify(familyID, "goal", "completed", goalID, map[string]any{"child_id": childID})
	}
	s.logger.Info("goal deposit", "goal_id", goalID, "deposited", res.Deposited,
		"progress", res.GoalProgress, "target", res.GoalTarget, "completed", res.IsCompleted)
	return res, nil
}

// UpdateGoalTarget changes a goal's target with a required reason, recorded
// in the goal's change log. A target at or below current progress completes
// the goal; progress above the new target goes back to the child's balance.
func (s *Service) UpdateGoalTarget(ctx context.Context, goalID int64, newTarget int, reason string) (*model.Goal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a reason for the change is required")
	}
	if newTarget <= 0 {
		return nil, apperr.Validation("target points must be positive")
	}
	now := s.clock()
	var g *model.Goal
	var familyID int64

	err := s.tx(ctx, func(st *store.Stores) error {
		var err error
		g, err = liveGoal(ctx, st, goalID)
		if err != nil {
			return err
		}
		if g.Completed {
			return apperr.Conflict("goal is already completed")
		}
		child, err := activeChild(ctx, st, g.ChildID)
		if err != nil {
			return err
		}
		familyID = child.FamilyID

		g.ChangeLog = append(g.ChangeLog, model.GoalChange{
			OldTarget: g.TargetPoints,
			NewTarget: newTarget,
			Reason:    reason,
			ChangedAt: now,
		})
		g.TargetPoints = newTarget
		g.Tier = s.tiers.ForPoints(newTarget).Name

		if newTarget <= g.CurrentPoints {
			if excess := g.CurrentPoints - newTarget; excess > 0 {
				if _, err := st.Ledger.AddPoints(ctx, model.LedgerEntry{
					ChildID: child.ID, Amount: excess, Type: model.LedgerAdjustment,
					ReferenceType: "goal", ReferenceID: g.ID, Description: "target lowered below progress", CreatedAt: now,
				}); err != nil {
					return err
				}
				g.CurrentPoints = newTarget
			}
			g.Completed = true
			g.CompletedAt = &now
		}
		return st.Goals.Save(ctx, g)
	})
	if err != nil {
		return nil, err
	}

	s.notify(familyID, "goal", "updated", g.ID, map[string]any{"target": g.TargetPoints})
	if g.Completed {
		s.metrics.GoalCompleted()
		s.notify(familyID, "goal", "completed", g.ID, map[string]any{"child_id": g.ChildID})
	}
	return g, nil
}

// UpdateGoalBonuses replaces the milestone bonus schedule. Milestones already
// credited stay credited.
func (s *Service) UpdateGoalBonuses(ctx context.Context, goalID int64, bonuses map[int]int) (*model.Goal, error) {
	if err := s.validateBonuses(bonuses); err != nil {
		return nil, err
	}
	var g *model.Goal
	err := s.tx(ctx, func(st *store.Stores) error {
		var err error
		g, err = liveGoal(ctx, st, goalID)
		if err != nil {
			return err
		}
		if g.Completed {
			return apperr.Conflict("goal is already completed")
		}
		g.MilestoneBonuses = bonuses
		return st.Goals.Save(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	return s.GetGoal(ctx, goalID)
}

// ArchiveGoal retires a goal. Points saved in an unfinished goal are
// returned to the child's balance.
func (s *Service) ArchiveGoal(ctx context.Context, goalID int64) error {
	now := s.clock()
	var familyID int64
	err := s.tx(ctx, func(st *store.Stores) error {
		g, err := liveGoal(ctx, st, goalID)
		if err != nil {
			return err
		}
		child, err := st.Children.GetByID(ctx, g.ChildID)
		if err != nil {
			return err
		}
		if child != nil {
			familyID = child.FamilyID
		}
		if !g.Completed && g.CurrentPoints > 0 {
			if _, err := st.Ledger.AddPoints(ctx, model.LedgerEntry{
				ChildID: g.ChildID, Amount: g.CurrentPoints, Type: model.LedgerAdjustment,
				ReferenceType: "goal", ReferenceID: g.ID, Description: "goal archived", CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		return st.Goals.Archive(ctx, g.ID, now)
	})
	if err != nil {
		return err
	}
	s.notify(familyID, "goal", "archived", goalID, nil)
	return nil
}

type GoalSummary struct {
	Goal            *model.Goal           `json:"goal"`
	Tier            tier.Tier             `json:"tier"`
	PercentComplete int                   `json:"percent_complete"`
	Remaining       int                   `json:"remaining"`
	NetPointsNeeded int                   `json:"net_points_needed"`
	TotalBonus      int                   `json:"total_bonus"`
	NextMilestone   *milestone.Progress   `json:"next_milestone"`
	Milestones      []milestone.Milestone `json:"milestones"`
	Effort          tier.Effort           `json:"effort"`
	WeeklyEarnings  int                   `json:"weekly_earnings"`
	WeeklyShare     string                `json:"weekly_share"`
	Estimate        string                `json:"estimate"`
	DailyEstimate   string                `json:"daily_estimate"`
}

// GetGoalSummary derives progress, milestone and time estimates for a goal.
// Weekly earnings are the child's task awards over the last seven days.
func (s *Service) GetGoalSummary(ctx context.Context, goalID int64) (*GoalSummary, error) {
	st := s.Stores()
	g, err := liveGoal(ctx, st, goalID)
	if err != nil {
		return nil, err
	}
	weekly, err := st.Ledger.EarnedSince(ctx, g.ChildID, s.clock().Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	bonuses := milestone.Bonuses(g.MilestoneBonuses)
	remaining := max(g.TargetPoints-g.CurrentPoints, 0)
	return &GoalSummary{
		Goal:            g,
		Tier:            s.tiers.ForPoints(g.TargetPoints),
		PercentComplete: min(100, g.CurrentPoints*100/g.TargetPoints),
		Remaining:       remaining,
		NetPointsNeeded: milestone.NetPointsNeeded(g.TargetPoints, bonuses),
		TotalBonus:      milestone.TotalBonus(bonuses),
		NextMilestone:   s.milestones.ProgressToNext(g.CurrentPoints, g.TargetPoints, bonuses, g.CompletedMilestones),
		Milestones:      s.milestones.All(g.TargetPoints, g.CurrentPoints, bonuses, g.CompletedMilestones),
		Effort:          s.tiers.EffortEquivalents(remaining),
		WeeklyEarnings:  weekly,
		WeeklyShare:     tier.WeeklyPercentage(remaining, weekly),
		Estimate:        tier.EstimateTimeToGoal(g.TargetPoints, g.CurrentPoints, weekly),
		DailyEstimate:   exchange.EstimateLabel(g.TargetPoints, g.CurrentPoints, s.exchange.DailyAverage()),
	}, nil
}

package model

import "time"

// GoalChange is one audit entry for a target edit.
type GoalChange struct {
	OldTarget int       `json:"old_target"`
	NewTarget int       `json:"new_target"`
	Reason    string    `json:"reason"`
	ChangedAt time.Time `json:"changed_at"`
}

type Goal struct {
	ID                  int64        `json:"id"`
	ChildID             int64        `json:"child_id"`
	Title               string       `json:"title"`
	TargetPoints        int          `json:"target_points"`
	CurrentPoints       int          `json:"current_points"`
	Tier                string       `json:"tier"`
	MilestoneBonuses    map[int]int  `json:"milestone_bonuses"`
	CompletedMilestones []int        `json:"completed_milestones"`
	Completed           bool         `json:"completed"`
	CompletedAt         *time.Time   `json:"completed_at"`
	ChangeLog           []GoalChange `json:"change_log"`
	Lifecycle           Lifecycle    `json:"lifecycle"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

type GoalDeposit struct {
	ID                  int64     `json:"id"`
	GoalID              int64     `json:"goal_id"`
	ChildID             int64     `json:"child_id"`
	Amount              int       `json:"amount"`
	MilestonePercentage *int      `json:"milestone_percentage"`
	BonusPoints         int       `json:"bonus_points"`
	CreatedAt           time.Time `json:"created_at"`
}

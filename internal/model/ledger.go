package model

import "time"

type LedgerType string

const (
	LedgerTaskAward      LedgerType = "task_award"
	LedgerTaskReversal   LedgerType = "task_reversal"
	LedgerGoalDeposit    LedgerType = "goal_deposit"
	LedgerMilestoneBonus LedgerType = "milestone_bonus"
	LedgerRewardPurchase LedgerType = "reward_purchase"
	LedgerRewardRefund   LedgerType = "reward_refund"
	LedgerAdjustment     LedgerType = "adjustment"
)

// LedgerEntry records one change to a child's points balance.
type LedgerEntry struct {
	ID            int64      `json:"id"`
	ChildID       int64      `json:"child_id"`
	Amount        int        `json:"amount"`
	Type          LedgerType `json:"type"`
	ReferenceType string     `json:"reference_type"`
	ReferenceID   int64      `json:"reference_id"`
	Description   string     `json:"description"`
	BalanceAfter  int        `json:"balance_after"`
	CreatedAt     time.Time  `json:"created_at"`
}

package model

import "time"

type RewardCategory string

const (
	CategoryScreen     RewardCategory = "screen"
	CategoryAutonomy   RewardCategory = "autonomy"
	CategoryExperience RewardCategory = "experience"
	CategorySavings    RewardCategory = "savings"
	CategoryOther      RewardCategory = "other"
)

func (c RewardCategory) Valid() bool {
	switch c {
	case CategoryScreen, CategoryAutonomy, CategoryExperience, CategorySavings, CategoryOther:
		return true
	}
	return false
}

type Reward struct {
	ID            int64          `json:"id"`
	FamilyID      int64          `json:"family_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	PointsCost    int            `json:"points_cost"`
	Category      RewardCategory `json:"category"`
	ScreenMinutes *int           `json:"screen_minutes"`
	WeeklyLimit   *int           `json:"weekly_limit"`
	Active        bool           `json:"active"`
	Tier          string         `json:"tier"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type TicketStatus string

const (
	TicketActive       TicketStatus = "active"
	TicketUseRequested TicketStatus = "use_requested"
	TicketInUse        TicketStatus = "in_use"
	TicketUsed         TicketStatus = "used"
	TicketCancelled    TicketStatus = "cancelled"
)

// RewardPurchase is a ticket: one redeemable instance of a reward.
type RewardPurchase struct {
	ID             int64          `json:"id"`
	RewardID       int64          `json:"reward_id"`
	ChildID        int64          `json:"child_id"`
	Category       RewardCategory `json:"category"`
	Status         TicketStatus   `json:"status"`
	PointsSpent    int            `json:"points_spent"`
	Code           string         `json:"code"`
	PurchasedAt    time.Time      `json:"purchased_at"`
	UseRequestedAt *time.Time     `json:"use_requested_at"`
	UseExpiresAt   *time.Time     `json:"use_expires_at"`
	StartedAt      *time.Time     `json:"started_at"`
	PausedAt       *time.Time     `json:"paused_at"`
	ElapsedSeconds int            `json:"elapsed_seconds"`
	FulfilledAt    *time.Time     `json:"fulfilled_at"`
	UsedAt         *time.Time     `json:"used_at"`
	CancelledAt    *time.Time     `json:"cancelled_at"`
	IsGift         bool           `json:"is_gift"`
	GiftMessage    string         `json:"gift_message"`
}

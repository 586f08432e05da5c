package model

import "time"

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyOneTime Frequency = "one_time"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyOneTime:
		return true
	}
	return false
}

type ApprovalType string

const (
	ApprovalAuto      ApprovalType = "auto"
	ApprovalParent    ApprovalType = "parent"
	ApprovalTimer     ApprovalType = "timer"
	ApprovalChecklist ApprovalType = "checklist"
)

func (a ApprovalType) Valid() bool {
	switch a {
	case ApprovalAuto, ApprovalParent, ApprovalTimer, ApprovalChecklist:
		return true
	}
	return false
}

type Task struct {
	ID             int64        `json:"id"`
	FamilyID       int64        `json:"family_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Points         int          `json:"points"`
	Frequency      Frequency    `json:"frequency"`
	ApprovalType   ApprovalType `json:"approval_type"`
	TimerMinutes   *int         `json:"timer_minutes"`
	ChecklistItems []string     `json:"checklist_items"`
	Active         bool         `json:"active"`
	Lifecycle      Lifecycle    `json:"lifecycle"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type InstanceStatus string

const (
	InstancePending   InstanceStatus = "pending"
	InstanceSubmitted InstanceStatus = "submitted"
	InstanceCompleted InstanceStatus = "completed"
)

// TaskInstance is a task auto-assigned to a child for a scheduled day.
type TaskInstance struct {
	ID           int64          `json:"id"`
	TaskID       int64          `json:"task_id"`
	ChildID      int64          `json:"child_id"`
	ScheduledFor string         `json:"scheduled_for"`
	Status       InstanceStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type CompletionStatus string

const (
	CompletionPending      CompletionStatus = "pending"
	CompletionApproved     CompletionStatus = "approved"
	CompletionAutoApproved CompletionStatus = "auto_approved"
	CompletionFixRequested CompletionStatus = "fix_requested"
)

// Evidence is the persisted form of a submission's proof of work.
type Evidence struct {
	TimerCompleted *bool  `json:"timer_completed,omitempty"`
	Checklist      []bool `json:"checklist,omitempty"`
	PhotoURL       string `json:"photo_url,omitempty"`
	Note           string `json:"note,omitempty"`
}

type TaskCompletion struct {
	ID              int64            `json:"id"`
	TaskID          int64            `json:"task_id"`
	ChildID         int64            `json:"child_id"`
	InstanceID      *int64           `json:"instance_id"`
	CompletionDate  string           `json:"completion_date"`
	Status          CompletionStatus `json:"status"`
	Evidence        Evidence         `json:"evidence"`
	PointsAwarded   *int             `json:"points_awarded"`
	RequestedAt     time.Time        `json:"requested_at"`
	ApprovedAt      *time.Time       `json:"approved_at"`
	CompletedAt     *time.Time       `json:"completed_at"`
	AutoApproveAt   *time.Time       `json:"auto_approve_at"`
	FixRequest      string           `json:"fix_request"`
	FixRequestCount int              `json:"fix_request_count"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

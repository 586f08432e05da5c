// Package completion defines the task completion state machine and the
// evidence accepted for each approval type.
package completion

import (
	"fmt"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/model"
)

// Action is an event applied to a completion.
type Action string

const (
	// ActionApprove is a parent approving a pending completion.
	ActionApprove Action = "approve"
	// ActionAutoApprove is the review deadline passing on a pending completion.
	ActionAutoApprove Action = "auto_approve"
	// ActionRequestFix returns a pending completion to the child.
	ActionRequestFix Action = "request_fix"
	// ActionResubmitForReview resubmits a parent-reviewed task.
	ActionResubmitForReview Action = "resubmit_for_review"
	// ActionResubmitApproved resubmits a task whose evidence approves itself.
	ActionResubmitApproved Action = "resubmit_approved"
)

var transitions = map[model.CompletionStatus]map[Action]model.CompletionStatus{
	model.CompletionPending: {
		ActionApprove:     model.CompletionApproved,
		ActionAutoApprove: model.CompletionAutoApproved,
		ActionRequestFix:  model.CompletionFixRequested,
	},
	model.CompletionFixRequested: {
		ActionResubmitForReview: model.CompletionPending,
		ActionResubmitApproved:  model.CompletionAutoApproved,
	},
	model.CompletionApproved:     {},
	model.CompletionAutoApproved: {},
}

// ValidStatuses returns all completion statuses.
func ValidStatuses() []model.CompletionStatus {
	return []model.CompletionStatus{
		model.CompletionPending,
		model.CompletionApproved,
		model.CompletionAutoApproved,
		model.CompletionFixRequested,
	}
}

// Transition returns the status reached by applying a to from, or a
// conflict error when the table has no such edge.
func Transition(from model.CompletionStatus, a Action) (model.CompletionStatus, error) {
	edges, ok := transitions[from]
	if !ok {
		return "", fmt.Errorf("unknown completion status %q", from)
	}
	to, ok := edges[a]
	if !ok {
		return "", apperr.Conflictf("cannot %s a completion that is %s", humanAction(a), from)
	}
	return to, nil
}

func humanAction(a Action) string {
	switch a {
	case ActionApprove, ActionAutoApprove:
		return "approve"
	case ActionRequestFix:
		return "request a fix for"
	default:
		return "resubmit"
	}
}

// IsApproved reports whether the status is terminal for the day.
func IsApproved(s model.CompletionStatus) bool {
	return s == model.CompletionApproved || s == model.CompletionAutoApproved
}

// AutoApproves reports whether submissions of this type skip parent review.
func AutoApproves(t model.ApprovalType) bool {
	return t != model.ApprovalParent
}

// InitialStatus is the status of a fresh submission.
func InitialStatus(t model.ApprovalType) model.CompletionStatus {
	if AutoApproves(t) {
		return model.CompletionAutoApproved
	}
	return model.CompletionPending
}

// ResubmitAction picks the resubmission edge for an approval type.
func ResubmitAction(t model.ApprovalType) Action {
	if AutoApproves(t) {
		return ActionResubmitApproved
	}
	return ActionResubmitForReview
}

// InstanceStatusFor mirrors a completion outcome onto its scheduled instance.
func InstanceStatusFor(s model.CompletionStatus) model.InstanceStatus {
	if IsApproved(s) {
		return model.InstanceCompleted
	}
	return model.InstanceSubmitted
}

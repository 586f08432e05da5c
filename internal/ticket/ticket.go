// Package ticket defines the reward ticket lifecycle.
//
// Screen-time tickets go active -> use_requested -> in_use -> used, with
// pause and resume while in use. Other categories go straight from active to
// used when a parent fulfils them. Only active, non-gift tickets can be
// cancelled; expired use requests are refunded by the sweep.
package ticket

import (
	"fmt"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/model"
)

type Action string

const (
	ActionRequestUse Action = "request_use"
	ActionApproveUse Action = "approve_use"
	ActionDenyUse    Action = "deny_use"
	ActionPause      Action = "pause"
	ActionResume     Action = "resume"
	ActionFinish     Action = "finish"
	ActionFulfill    Action = "fulfill"
	ActionCancel     Action = "cancel"
	ActionExpire     Action = "expire"
)

var transitions = map[model.TicketStatus]map[Action]model.TicketStatus{
	model.TicketActive: {
		ActionRequestUse: model.TicketUseRequested,
		ActionFulfill:    model.TicketUsed,
		ActionCancel:     model.TicketCancelled,
	},
	model.TicketUseRequested: {
		ActionApproveUse: model.TicketInUse,
		ActionDenyUse:    model.TicketActive,
		ActionExpire:     model.TicketCancelled,
	},
	model.TicketInUse: {
		ActionPause:  model.TicketInUse,
		ActionResume: model.TicketInUse,
		ActionFinish: model.TicketUsed,
	},
	model.TicketUsed:      {},
	model.TicketCancelled: {},
}

var screenOnly = map[Action]bool{
	ActionRequestUse: true,
	ActionApproveUse: true,
	ActionDenyUse:    true,
	ActionPause:      true,
	ActionResume:     true,
	ActionFinish:     true,
	ActionExpire:     true,
}

// ValidStatuses returns all ticket statuses.
func ValidStatuses() []model.TicketStatus {
	return []model.TicketStatus{
		model.TicketActive,
		model.TicketUseRequested,
		model.TicketInUse,
		model.TicketUsed,
		model.TicketCancelled,
	}
}

// Next returns the status reached by applying a, checking category and gift
// rules as well as the transition table.
func Next(t model.RewardPurchase, a Action) (model.TicketStatus, error) {
	edges, ok := transitions[t.Status]
	if !ok {
		return "", fmt.Errorf("unknown ticket status %q", t.Status)
	}
	to, ok := edges[a]
	if !ok {
		return "", apperr.Conflictf("cannot %s a ticket that is %s", a, t.Status)
	}

	isScreen := t.Category == model.CategoryScreen
	switch {
	case screenOnly[a] && !isScreen:
		return "", apperr.Conflictf("%s only applies to screen-time tickets", a)
	case a == ActionFulfill && isScreen:
		return "", apperr.Conflict("screen-time tickets are used by running their timer")
	case a == ActionCancel && t.IsGift:
		return "", apperr.Conflict("gifted tickets cannot be cancelled")
	case a == ActionPause && t.PausedAt != nil:
		return "", apperr.Conflict("ticket is already paused")
	case a == ActionResume && t.PausedAt == nil:
		return "", apperr.Conflict("ticket is not paused")
	}
	return to, nil
}

// Apply returns t after action a at now. useTTL sets the deadline of a new
// use request. StartedAt marks the start of the current running segment.
func Apply(t model.RewardPurchase, a Action, now time.Time, useTTL time.Duration) (model.RewardPurchase, error) {
	to, err := Next(t, a)
	if err != nil {
		return t, err
	}

	switch a {
	case ActionRequestUse:
		expires := now.Add(useTTL)
		t.UseRequestedAt = &now
		t.UseExpiresAt = &expires
	case ActionApproveUse:
		t.StartedAt = &now
		t.PausedAt = nil
		t.UseExpiresAt = nil
	case ActionDenyUse:
		t.UseRequestedAt = nil
		t.UseExpiresAt = nil
	case ActionPause:
		t.ElapsedSeconds += runningSeconds(t, now)
		t.PausedAt = &now
	case ActionResume:
		t.StartedAt = &now
		t.PausedAt = nil
	case ActionFinish:
		if t.PausedAt == nil {
			t.ElapsedSeconds += runningSeconds(t, now)
		}
		t.PausedAt = nil
		t.UsedAt = &now
	case ActionFulfill:
		t.FulfilledAt = &now
		t.UsedAt = &now
	case ActionCancel, ActionExpire:
		t.CancelledAt = &now
		t.UseExpiresAt = nil
	}
	t.Status = to
	return t, nil
}

func runningSeconds(t model.RewardPurchase, now time.Time) int {
	if t.StartedAt == nil || t.PausedAt != nil {
		return 0
	}
	secs := int(now.Sub(*t.StartedAt) / time.Second)
	return max(secs, 0)
}

// Elapsed returns the seconds of screen time used so far.
func Elapsed(t model.RewardPurchase, now time.Time) int {
	if t.Status != model.TicketInUse {
		return t.ElapsedSeconds
	}
	return t.ElapsedSeconds + runningSeconds(t, now)
}

// Remaining returns the seconds left of an allotment of minutes.
func Remaining(t model.RewardPurchase, minutes int, now time.Time) int {
	return max(minutes*60-Elapsed(t, now), 0)
}

// Refund is the points returned to the child when a reaches the ticket.
func Refund(t model.RewardPurchase, a Action) int {
	if a == ActionCancel || a == ActionExpire {
		return t.PointsSpent
	}
	return 0
}

package ticket

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/model"
)

var t0 = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func screenTicket() model.RewardPurchase {
	return model.RewardPurchase{
		ID:          1,
		Category:    model.CategoryScreen,
		Status:      model.TicketActive,
		PointsSpent: 120,
	}
}

func TestScreenLifecycle(t *testing.T) {
	tk := screenTicket()
	var err error

	tk, err = Apply(tk, ActionRequestUse, t0, time.Hour)
	if err != nil {
		t.Fatalf("request use: %v", err)
	}
	if tk.Status != model.TicketUseRequested || tk.UseExpiresAt == nil || !tk.UseExpiresAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("after request = %+v", tk)
	}

	tk, err = Apply(tk, ActionApproveUse, t0.Add(time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("approve use: %v", err)
	}
	if tk.Status != model.TicketInUse || tk.UseExpiresAt != nil {
		t.Fatalf("after approve = %+v", tk)
	}

	// 10 minutes running, paused 5, then 3 more.
	tk, err = Apply(tk, ActionPause, t0.Add(11*time.Minute), 0)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if tk.ElapsedSeconds != 600 {
		t.Errorf("elapsed after pause = %d, want 600", tk.ElapsedSeconds)
	}
	if got := Elapsed(tk, t0.Add(16*time.Minute)); got != 600 {
		t.Errorf("elapsed while paused = %d, want 600", got)
	}

	tk, err = Apply(tk, ActionResume, t0.Add(16*time.Minute), 0)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := Remaining(tk, 30, t0.Add(19*time.Minute)); got != 30*60-780 {
		t.Errorf("remaining = %d, want %d", got, 30*60-780)
	}

	tk, err = Apply(tk, ActionFinish, t0.Add(19*time.Minute), 0)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if tk.Status != model.TicketUsed || tk.ElapsedSeconds != 780 || tk.UsedAt == nil {
		t.Errorf("after finish = %+v", tk)
	}
}

func TestDenyReturnsToActive(t *testing.T) {
	tk, _ := Apply(screenTicket(), ActionRequestUse, t0, time.Hour)
	tk, err := Apply(tk, ActionDenyUse, t0, 0)
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if tk.Status != model.TicketActive || tk.UseRequestedAt != nil || tk.UseExpiresAt != nil {
		t.Errorf("after deny = %+v", tk)
	}
}

func TestPauseResumeGuards(t *testing.T) {
	tk, _ := Apply(screenTicket(), ActionRequestUse, t0, time.Hour)
	tk, _ = Apply(tk, ActionApproveUse, t0, 0)

	if _, err := Apply(tk, ActionResume, t0, 0); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("resume running err = %v, want conflict", err)
	}
	tk, _ = Apply(tk, ActionPause, t0.Add(time.Minute), 0)
	if _, err := Apply(tk, ActionPause, t0.Add(2*time.Minute), 0); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("double pause err = %v, want conflict", err)
	}
}

func TestCategoryRules(t *testing.T) {
	other := model.RewardPurchase{Category: model.CategoryExperience, Status: model.TicketActive}

	if _, err := Next(other, ActionRequestUse); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("request use on experience err = %v, want conflict", err)
	}
	if _, err := Next(screenTicket(), ActionFulfill); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("fulfill screen err = %v, want conflict", err)
	}

	done, err := Apply(other, ActionFulfill, t0, 0)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if done.Status != model.TicketUsed || done.FulfilledAt == nil {
		t.Errorf("after fulfill = %+v", done)
	}
}

func TestCancel(t *testing.T) {
	tk := screenTicket()
	cancelled, err := Apply(tk, ActionCancel, t0, 0)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.TicketCancelled || cancelled.CancelledAt == nil {
		t.Errorf("after cancel = %+v", cancelled)
	}
	if got := Refund(tk, ActionCancel); got != 120 {
		t.Errorf("refund = %d, want 120", got)
	}

	gift := tk
	gift.IsGift = true
	if _, err := Next(gift, ActionCancel); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("cancel gift err = %v, want conflict", err)
	}

	requested, _ := Apply(tk, ActionRequestUse, t0, time.Hour)
	if _, err := Next(requested, ActionCancel); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("cancel requested err = %v, want conflict", err)
	}
}

func TestExpire(t *testing.T) {
	requested, _ := Apply(screenTicket(), ActionRequestUse, t0, time.Hour)
	expired, err := Apply(requested, ActionExpire, t0.Add(2*time.Hour), 0)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired.Status != model.TicketCancelled {
		t.Errorf("expired status = %s", expired.Status)
	}
	if got := Refund(requested, ActionExpire); got != 120 {
		t.Errorf("expire refund = %d", got)
	}
	if got := Refund(requested, ActionFinish); got != 0 {
		t.Errorf("finish refund = %d", got)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []model.TicketStatus{model.TicketUsed, model.TicketCancelled} {
		tk := screenTicket()
		tk.Status = s
		for _, a := range []Action{ActionRequestUse, ActionCancel, ActionFinish, ActionExpire} {
			if _, err := Next(tk, a); !errors.Is(err, apperr.ErrConflict) {
				t.Errorf("%s on %s err = %v, want conflict", a, s, err)
			}
		}
	}
	for _, s := range ValidStatuses() {
		if _, ok := transitions[s]; !ok {
			t.Errorf("status %s missing from transition table", s)
		}
	}
}

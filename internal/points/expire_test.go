package points

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/familyxp/internal/model"
)

func TestProcessExpiredAutoApproves(t *testing.T) {
	svc, clk, rec := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	task := createTask(t, svc, f.ID, model.Task{Title: "Homework", Points: 25, ApprovalType: model.ApprovalParent})

	sub, err := svc.SubmitTask(ctx, SubmitInput{TaskID: task.ID, ChildID: child.ID})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	clk.Advance(23 * time.Hour)
	res, err := svc.ProcessExpired(ctx)
	if err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if res.Total() != 0 {
		t.Errorf("early sweep = %+v, want nothing", res)
	}

	clk.Advance(time.Hour)
	res, err = svc.ProcessExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.AutoApproved != 1 {
		t.Errorf("auto approved = %d, want 1", res.AutoApproved)
	}
	c, err := svc.GetCompletion(ctx, sub.Completion.ID)
	if err != nil {
		t.Fatalf("get completion: %v", err)
	}
	if c.Status != model.CompletionAutoApproved || c.PointsAwarded == nil || *c.PointsAwarded != 25 {
		t.Errorf("completion = %+v", c)
	}
	if b := balance(t, svc, child.ID); b != 25 {
		t.Errorf("balance = %d, want 25", b)
	}
	if !rec.has("completion", "auto_approved") {
		t.Error("expected auto_approved notification")
	}

	res, err = svc.ProcessExpired(ctx)
	if err != nil {
		t.Fatalf("repeat sweep: %v", err)
	}
	if res.Total() != 0 {
		t.Errorf("repeat sweep = %+v, want nothing", res)
	}
}

func TestProcessExpiredSkipsFixRequested(t *testing.T) {
	svc, clk, _ := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	task := createTask(t, svc, f.ID, model.Task{Title: "Homework", Points: 25, ApprovalType: model.ApprovalParent})

	sub, err := svc.SubmitTask(ctx, SubmitInput{TaskID: task.ID, ChildID: child.ID})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.RequestFix(ctx, sub.Completion.ID, "show your work"); err != nil {
		t.Fatalf("request fix: %v", err)
	}
	clk.Advance(48 * time.Hour)
	res, err := svc.ProcessExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Total() != 0 {
		t.Errorf("sweep = %+v, want nothing", res)
	}
}

func TestProcessExpiredRefundsUseRequest(t *testing.T) {
	svc, clk, _ := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 100)
	r := createReward(t, svc, f.ID, model.Reward{PointsCost: 100, Category: model.CategoryScreen, ScreenMinutes: intPtr(30)})

	bought, err := svc.PurchaseReward(ctx, r.ID, child.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := svc.RequestUse(ctx, bought.Ticket.ID); err != nil {
		t.Fatalf("request use: %v", err)
	}

	clk.Advance(25 * time.Hour)
	res, err := svc.ProcessExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Refunded != 1 {
		t.Errorf("refunded = %d, want 1", res.Refunded)
	}
	tk, err := svc.GetTicket(ctx, bought.Ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if tk.Status != model.TicketCancelled || tk.CancelledAt == nil {
		t.Errorf("ticket = %+v", tk)
	}
	if b := balance(t, svc, child.ID); b != 100 {
		t.Errorf("balance = %d, want 100", b)
	}
}

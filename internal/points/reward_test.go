package points

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/model"
)

func createReward(t *testing.T, svc *Service, familyID int64, r model.Reward) *model.Reward {
	t.Helper()
	r.FamilyID = familyID
	if r.Title == "" {
		r.Title = "Movie night"
	}
	if r.Category == "" {
		r.Category = model.CategoryExperience
	}
	created, err := svc.CreateReward(context.Background(), r)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	return created
}

func TestCreateRewardValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	f, _ := seedFamily(t, svc)

	bad := []model.Reward{
		{FamilyID: f.ID, Title: "Tablet", PointsCost: 100, Category: model.CategoryScreen},
		{FamilyID: f.ID, Title: "Treat", PointsCost: 0, Category: model.CategoryOther},
		{FamilyID: f.ID, Title: "Treat", PointsCost: 50, Category: "candy"},
		{FamilyID: f.ID, Title: "Treat", PointsCost: 50, Category: model.CategoryOther, WeeklyLimit: intPtr(0)},
	}
	for _, r := range bad {
		if _, err := svc.CreateReward(ctx, r); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("CreateReward(%+v) err = %v, want validation", r, err)
		}
	}

	r := createReward(t, svc, f.ID, model.Reward{PointsCost: 150, ScreenMinutes: intPtr(30)})
	if r.Tier != "small" || r.ScreenMinutes != nil {
		t.Errorf("reward = %+v", r)
	}
}

func TestQuote(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	f, _ := seedFamily(t, svc)

	q, err := svc.Quote(ctx, f.ID, 250, "en-US")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Tier.Name != "medium" || q.Value != "2.50" {
		t.Errorf("quote = %+v", q)
	}
	if !strings.Contains(q.Currency, "2.50") {
		t.Errorf("currency = %q", q.Currency)
	}
	if _, err := svc.Quote(ctx, f.ID, 0, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("zero points err = %v, want validation", err)
	}
}

func TestPurchaseAndCancel(t *testing.T) {
	svc, _, rec := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 300)
	r := createReward(t, svc, f.ID, model.Reward{PointsCost: 200})

	res, err := svc.PurchaseReward(ctx, r.ID, child.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if res.NewBalance != 100 || res.Ticket.Status != model.TicketActive || res.Ticket.Code == "" {
		t.Errorf("purchase = %+v / %+v", res, res.Ticket)
	}
	if _, err := svc.PurchaseReward(ctx, r.ID, child.ID); !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Errorf("second purchase err = %v, want insufficient funds", err)
	}

	out, err := svc.CancelTicket(ctx, res.Ticket.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Refunded != 200 || out.NewBalance == nil || *out.NewBalance != 300 {
		t.Errorf("cancel = %+v", out)
	}
	if !rec.has("ticket", "cancel") {
		t.Error("expected cancel notification")
	}
	active, err := svc.ListActiveTickets(ctx, child.ID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active tickets = %+v, want none", active)
	}
	if _, err := svc.CancelTicket(ctx, res.Ticket.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("double cancel err = %v, want conflict", err)
	}
	if b := balance(t, svc, child.ID); b != 300 {
		t.Errorf("balance = %d, want 300", b)
	}
}

func TestInactiveRewardCannotBePurchased(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 300)
	r := createReward(t, svc, f.ID, model.Reward{PointsCost: 100})

	r.Active = false
	if _, err := svc.Stores().Rewards.Update(ctx, *r); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.PurchaseReward(ctx, r.ID, child.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("purchase inactive err = %v, want conflict", err)
	}
}

func TestWeeklyLimit(t *testing.T) {
	svc, clk, _ := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 1000)
	r := createReward(t, svc, f.ID, model.Reward{PointsCost: 100, WeeklyLimit: intPtr(1)})

	first, err := svc.PurchaseReward(ctx, r.ID, child.ID)
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if _, err := svc.PurchaseReward(ctx, r.ID, child.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second purchase err = %v, want conflict", err)
	}

	if _, err := svc.CancelTicket(ctx, first.Ticket.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.PurchaseReward(ctx, r.ID, child.ID); err != nil {
		t.Fatalf("purchase after cancel: %v", err)
	}

	// Gifts do not count against the limit.
	if _, err := svc.GiftReward(ctx, r.ID, child.ID, "for helping grandma"); err != nil {
		t.Fatalf("gift: %v", err)
	}

	clk.Advance(7 * 24 * time.Hour)
	if _, err := svc.PurchaseReward(ctx, r.ID, child.ID); err != nil {
		t.Errorf("purchase next week: %v", err)
	}
}

func TestGiftReward(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	r := createReward(t, svc, f.ID, model.Reward{PointsCost: 500})

	gift, err := svc.GiftReward(ctx, r.ID, child.ID, " well done ")
	if err != nil {
		t.Fatalf("gift: %v", err)
	}
	if !gift.IsGift || gift.PointsSpent != 0 || gift.GiftMessage != "well done" {
		t.Errorf("gift = %+v", gift)
	}
	if b := balance(t, svc, child.ID); b != 0 {
		t.Errorf("balance = %d, want 0", b)
	}
	if _, err := svc.CancelTicket(ctx, gift.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("cancel gift err = %v, want conflict", err)
	}
	done, err := svc.FulfillTicket(ctx, gift.ID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if done.Ticket.Status != model.TicketUsed || done.Refunded != 0 {
		t.Errorf("fulfilled = %+v", done)
	}
}

func TestScreenTicketLifecycle(t *testing.T) {
	svc, clk, _ := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 200)
	r := createReward(t, svc, f.ID, model.Reward{
		Title:         "Tablet time",
		PointsCost:    150,
		Category:      model.CategoryScreen,
		ScreenMinutes: intPtr(30),
	})

	bought, err := svc.PurchaseReward(ctx, r.ID, child.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	id := bought.Ticket.ID
	if bought.Ticket.Category != model.CategoryScreen {
		t.Errorf("category = %s", bought.Ticket.Category)
	}
	if _, err := svc.FulfillTicket(ctx, id); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("fulfill screen err = %v, want conflict", err)
	}

	req, err := svc.RequestUse(ctx, id)
	if err != nil {
		t.Fatalf("request use: %v", err)
	}
	if req.Ticket.UseExpiresAt == nil || !req.Ticket.UseExpiresAt.Equal(start.Add(24*time.Hour)) {
		t.Errorf("use expires at = %v", req.Ticket.UseExpiresAt)
	}
	if _, err := svc.CancelTicket(ctx, id); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("cancel requested err = %v, want conflict", err)
	}
	if _, err := svc.ApproveUse(ctx, id); err != nil {
		t.Fatalf("approve use: %v", err)
	}

	clk.Advance(10 * time.Minute)
	if _, err := svc.PauseUse(ctx, id); err != nil {
		t.Fatalf("pause: %v", err)
	}
	clk.Advance(5 * time.Minute)
	if _, err := svc.ResumeUse(ctx, id); err != nil {
		t.Fatalf("resume: %v", err)
	}
	clk.Advance(3 * time.Minute)
	done, err := svc.FinishUse(ctx, id)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.Ticket.Status != model.TicketUsed || done.Ticket.ElapsedSeconds != 780 {
		t.Errorf("finished = %+v", done.Ticket)
	}

	stored, err := svc.GetTicket(ctx, id)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if stored.Status != model.TicketUsed || stored.ElapsedSeconds != 780 || stored.UsedAt == nil {
		t.Errorf("stored = %+v", stored)
	}
	if b := balance(t, svc, child.ID); b != 50 {
		t.Errorf("balance = %d, want 50", b)
	}
}

func TestDenyUseKeepsTicket(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	f, child := seedFamily(t, svc)
	fund(t, svc, child.ID, 200)
	r := createReward(t, svc, f.ID, model.Reward{PointsCost: 100, Category: model.CategoryScreen, ScreenMinutes: intPtr(20)})

	bought, err := svc.PurchaseReward(ctx, r.ID, child.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := svc.RequestUse(ctx, bought.Ticket.ID); err != nil {
		t.Fatalf("request use: %v", err)
	}
	denied, err := svc.DenyUse(ctx, bought.Ticket.ID)
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if denied.Ticket.Status != model.TicketActive || denied.Refunded != 0 {
		t.Errorf("denied = %+v", denied)
	}
	if b := balance(t, svc, child.ID); b != 100 {
		t.Errorf("balance = %d, want 100", b)
	}
}

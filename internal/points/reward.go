package points

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/model"
	"github.com/dukerupert/familyxp/internal/store"
	"github.com/dukerupert/familyxp/internal/ticket"
	"github.com/dukerupert/familyxp/internal/tier"
)

func (s *Service) validateReward(r *model.Reward) error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return apperr.Validation("title is required")
	}
	if r.PointsCost <= 0 {
		return apperr.Validation("points cost must be positive")
	}
	if !r.Category.Valid() {
		return apperr.Validationf("unknown category %q", r.Category)
	}
	if r.Category == model.CategoryScreen {
		if r.ScreenMinutes == nil || *r.ScreenMinutes <= 0 {
			return apperr.Validation("screen rewards need positive screen_minutes")
		}
	} else {
		r.ScreenMinutes = nil
	}
	if r.WeeklyLimit != nil && *r.WeeklyLimit <= 0 {
		return apperr.Validation("weekly limit must be positive")
	}
	r.Tier = s.tiers.ForPoints(r.PointsCost).Name
	return nil
}

func (s *Service) CreateReward(ctx context.Context, r model.Reward) (*model.Reward, error) {
	if err := s.validateReward(&r); err != nil {
		return nil, err
	}
	if _, err := s.GetFamily(ctx, r.FamilyID); err != nil {
		return nil, err
	}
	r.Active = true
	created, err := s.Stores().Rewards.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	s.notify(created.FamilyID, "reward", "created", created.ID, nil)
	return created, nil
}

func (s *Service) UpdateReward(ctx context.Context, r model.Reward) (*model.Reward, error) {
	if err := s.validateReward(&r); err != nil {
		return nil, err
	}
	cur, err := s.GetReward(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.FamilyID = cur.FamilyID
	updated, err := s.Stores().Rewards.Update(ctx, r)
	if err != nil {
		return nil, err
	}
	s.notify(updated.FamilyID, "reward", "updated", updated.ID, nil)
	return updated, nil
}

func (s *Service) GetReward(ctx context.Context, id int64) (*model.Reward, error) {
	r, err := s.Stores().Rewards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("reward not found")
	}
	return r, nil
}

func (s *Service) ListRewards(ctx context.Context, familyID int64, activeOnly bool) ([]model.Reward, error) {
	return s.Stores().Rewards.ListByFamily(ctx, familyID, activeOnly)
}

// PriceQuote is the guidance shown to a parent pricing a reward or goal.
type PriceQuote struct {
	Points   int           `json:"points"`
	Tier     tier.Tier     `json:"tier"`
	Warning  *tier.Warning `json:"warning"`
	Effort   tier.Effort   `json:"effort"`
	Value    string        `json:"value"`
	Currency string        `json:"currency"`
}

// Quote classifies a price and values it at the family's exchange rate.
func (s *Service) Quote(ctx context.Context, familyID int64, points int, locale string) (*PriceQuote, error) {
	if points <= 0 {
		return nil, apperr.Validation("points must be positive")
	}
	rate := s.exchange.DefaultRate()
	if familyID != 0 {
		f, err := s.GetFamily(ctx, familyID)
		if err != nil {
			return nil, err
		}
		rate = f.ExchangeRate
	}
	t := s.tiers.ForPoints(points)
	return &PriceQuote{
		Points:   points,
		Tier:     t,
		Warning:  tier.PriceWarning(points, t),
		Effort:   s.tiers.EffortEquivalents(points),
		Value:    s.exchange.DollarValue(points, rate).StringFixed(2),
		Currency: s.exchange.FormatPointsAsCurrency(points, rate, locale),
	}, nil
}

type PurchaseResult struct {
	Ticket     *model.RewardPurchase `json:"ticket"`
	NewBalance int                   `json:"new_balance"`
}

// PurchaseReward spends a child's points on a ticket for an active reward of
// the child's family, respecting the reward's weekly limit.
func (s *Service) PurchaseReward(ctx context.Context, rewardID, childID int64) (*PurchaseResult, error) {
	now := s.clock()
	res := &PurchaseResult{}
	var familyID int64
	err := s.tx(ctx, func(st *store.Stores) error {
		r, child, err := rewardForChild(ctx, st, rewardID, childID)
		if err != nil {
			return err
		}
		familyID = child.FamilyID
		if !r.Active {
			return apperr.Conflict("reward is not available")
		}
		if r.WeeklyLimit != nil {
			n, err := st.Tickets.CountPurchasedSince(ctx, r.ID, child.ID, s.weekStart(now))
			if err != nil {
				return err
			}
			if n >= *r.WeeklyLimit {
				return apperr.Conflictf("weekly limit of %d reached for this reward", *r.WeeklyLimit)
			}
		}
		if child.PointsBalance < r.PointsCost {
			return apperr.InsufficientFunds("not enough points for this reward")
		}

		t := &model.RewardPurchase{
			RewardID:    r.ID,
			ChildID:     child.ID,
			Category:    r.Category,
			Status:      model.TicketActive,
			PointsSpent: r.PointsCost,
			Code:        uuid.NewString(),
			PurchasedAt: now,
		}
		if err := st.Tickets.Create(ctx, t); err != nil {
			return err
		}
		entry, err := st.Ledger.AddPoints(ctx, model.LedgerEntry{
			ChildID: child.ID, Amount: -r.PointsCost, Type: model.LedgerRewardPurchase,
			ReferenceType: "reward_purchase", ReferenceID: t.ID, Description: r.Title, CreatedAt: now,
		})
		if err != nil {
			return err
		}
		res.Ticket = t
		res.NewBalance = entry.BalanceAfter
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Ticket("purchase")
	s.notify(familyID, "ticket", "purchased", res.Ticket.ID, map[string]any{"child_id": childID, "balance": res.NewBalance})
	return res, nil
}

// GiftReward gives a child a ticket without spending their points.
func (s *Service) GiftReward(ctx context.Context, rewardID, childID int64, message string) (*model.RewardPurchase, error) {
	now := s.clock()
	var t *model.RewardPurchase
	var familyID int64
	err := s.tx(ctx, func(st *store.Stores) error {
		r, child, err := rewardForChild(ctx, st, rewardID, childID)
		if err != nil {
			return err
		}
		familyID = child.FamilyID
		t = &model.RewardPurchase{
			RewardID:    r.ID,
			ChildID:     child.ID,
			Category:    r.Category,
			Status:      model.TicketActive,
			Code:        uuid.NewString(),
			PurchasedAt: now,
			IsGift:      true,
			GiftMessage: strings.TrimSpace(message),
		}
		return st.Tickets.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Ticket("gift")
	s.notify(familyID, "ticket", "gifted", t.ID, map[string]any{"child_id": childID})
	return t, nil
}

func rewardForChild(ctx context.Context, st *store.Stores, rewardID, childID int64) (*model.Reward, *model.Child, error) {
	r, err := st.Rewards.GetByID(ctx, rewardID)
	if err != nil {
		return nil, nil, err
	}
	if r == nil {
		return nil, nil, apperr.NotFound("reward not found")
	}
	child, err := activeChild(ctx, st, childID)
	if err != nil {
		return nil, nil, err
	}
	if child.FamilyID != r.FamilyID {
		return nil, nil, apperr.NotFound("reward not found")
	}
	return r, child, nil
}

func (s *Service) GetTicket(ctx context.Context, id int64) (*model.RewardPurchase, error) {
	t, err := s.Stores().Tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("ticket not found")
	}
	return t, nil
}

// ListActiveTickets returns a child's unredeemed and in-progress tickets.
func (s *Service) ListActiveTickets(ctx context.Context, childID int64) ([]model.RewardPurchase, error) {
	return s.Stores().Tickets.ListActiveByChild(ctx, childID)
}

type TicketResult struct {
	Ticket     *model.RewardPurchase `json:"ticket"`
	Refunded   int                   `json:"refunded"`
	NewBalance *int                  `json:"new_balance,omitempty"`
}

// transitionTicket applies a lifecycle action and any refund it implies in
// one transaction.
func (s *Service) transitionTicket(ctx context.Context, id int64, a ticket.Action) (*TicketResult, error) {
	now := s.clock()
	var res *TicketResult
	var familyID int64
	err := s.tx(ctx, func(st *store.Stores) error {
		cur, err := st.Tickets.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.NotFound("ticket not found")
		}
		res, familyID, err = s.applyTicket(ctx, st, cur, a, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ticketChanged(familyID, a, res)
	return res, nil
}

func (s *Service) applyTicket(ctx context.Context, st *store.Stores, cur *model.RewardPurchase, a ticket.Action, now time.Time) (*TicketResult, int64, error) {
	next, err := ticket.Apply(*cur, a, now, s.approval.UseRequestTTL)
	if err != nil {
		return nil, 0, err
	}
	ok, err := st.Tickets.Save(ctx, &next, cur.Status)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, apperr.Conflict("ticket changed, try again")
	}
	var familyID int64
	child, err := st.Children.GetByID(ctx, cur.ChildID)
	if err != nil {
		return nil, 0, err
	}
	if child != nil {
		familyID = child.FamilyID
	}

	res := &TicketResult{Ticket: &next}
	if refund := ticket.Refund(*cur, a); refund > 0 {
		entry, err := st.Ledger.AddPoints(ctx, model.LedgerEntry{
			ChildID: cur.ChildID, Amount: refund, Type: model.LedgerRewardRefund,
			ReferenceType: "reward_purchase", ReferenceID: cur.ID, Description: "ticket " + string(a), CreatedAt: now,
		})
		if err != nil {
			return nil, 0, err
		}
		res.Refunded = refund
		res.NewBalance = &entry.BalanceAfter
	}
	return res, familyID, nil
}

func (s *Service) ticketChanged(familyID int64, a ticket.Action, res *TicketResult) {
	s.metrics.Ticket(string(a))
	s.notify(familyID, "ticket", string(a), res.Ticket.ID, map[string]any{
		"child_id": res.Ticket.ChildID,
		"status":   res.Ticket.Status,
		"refunded": res.Refunded,
	})
}

// CancelTicket cancels an active bought ticket and refunds its points.
func (s *Service) CancelTicket(ctx context.Context, id int64) (*TicketResult, error) {
	return s.transitionTicket(ctx, id, ticket.ActionCancel)
}

// RequestUse asks to start a screen-time ticket. The request expires after
// the configured window.
func (s *Service) RequestUse(ctx context.Context, id int64) (*TicketResult, error) {
	return s.transitionTicket(ctx, id, ticket.ActionRequestUse)
}

func (s *Service) ApproveUse(ctx context.Context, id int64) (*TicketResult, error) {
	return s.transitionTicket(ctx, id, ticket.ActionApproveUse)
}

func (s *Service) DenyUse(ctx context.Context, id int64) (*TicketResult, error) {
	return s.transitionTicket(ctx, id, ticket.ActionDenyUse)
}

func (s *Service) PauseUse(ctx context.Context, id int64) (*TicketResult, error) {
	return s.transitionTicket(ctx, id, ticket.ActionPause)
}

func (s *Service) ResumeUse(ctx context.Context, id int64) (*TicketResult, error) {
	return s.transitionTicket(ctx, id, ticket.ActionResume)
}

// FinishUse ends a screen-time session, normally when its timer runs out.
func (s *Service) FinishUse(ctx context.Context, id int64) (*TicketResult, error) {
	return s.transitionTicket(ctx, id, ticket.ActionFinish)
}

// FulfillTicket marks a non-screen ticket as delivered by a parent.
func (s *Service) FulfillTicket(ctx context.Context, id int64) (*TicketResult, error) {
	return s.transitionTicket(ctx, id, ticket.ActionFulfill)
}

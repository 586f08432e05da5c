package points

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/completion"
	"github.com/dukerupert/familyxp/internal/model"
	"github.com/dukerupert/familyxp/internal/store"
	"github.com/dukerupert/familyxp/internal/ticket"
)

// SweepResult counts the records resolved by one expiry pass.
type SweepResult struct {
	AutoApproved int `json:"auto_approved"`
	Refunded     int `json:"refunded"`
}

func (r SweepResult) Total() int { return r.AutoApproved + r.Refunded }

// ProcessExpired auto-approves pending completions past their review
// deadline and refunds screen-time use requests that were never answered.
// Each record is resolved in its own transaction; records that moved on
// since they were listed are skipped. Failures are collected and returned
// together with the counts of what succeeded.
func (s *Service) ProcessExpired(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var errs error
	now := s.clock()
	st := s.Stores()

	due, err := st.Completions.ListDueForAutoApproval(ctx, now)
	if err != nil {
		return res, err
	}
	failed := 0
	for _, id := range due {
		if err := ctx.Err(); err != nil {
			return res, multierr.Append(errs, err)
		}
		c, familyID, err := s.approve(ctx, id, completion.ActionAutoApprove, true)
		if err != nil {
			failed++
			errs = multierr.Append(errs, fmt.Errorf("auto-approve completion %d: %w", id, err))
			continue
		}
		if c == nil {
			continue
		}
		res.AutoApproved++
		s.notify(familyID, "completion", "auto_approved", c.ID, map[string]any{"child_id": c.ChildID, "points": c.PointsAwarded})
	}
	s.metrics.Swept("completion", res.AutoApproved, failed)

	expired, err := st.Tickets.ListExpiredUseRequests(ctx, now)
	if err != nil {
		return res, multierr.Append(errs, err)
	}
	failed = 0
	for _, id := range expired {
		if err := ctx.Err(); err != nil {
			return res, multierr.Append(errs, err)
		}
		ok, err := s.expireTicket(ctx, id)
		if err != nil {
			failed++
			errs = multierr.Append(errs, fmt.Errorf("expire ticket %d: %w", id, err))
			continue
		}
		if ok {
			res.Refunded++
		}
	}
	s.metrics.Swept("ticket", res.Refunded, failed)

	if res.Total() > 0 || errs != nil {
		s.logger.Info("expiry sweep", "auto_approved", res.AutoApproved, "refunded", res.Refunded,
			"errors", len(multierr.Errors(errs)))
	}
	return res, errs
}

// expireTicket cancels and refunds a use request whose deadline passed. It
// reports false when the ticket was already resolved.
func (s *Service) expireTicket(ctx context.Context, id int64) (bool, error) {
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
		if cur.Status != model.TicketUseRequested || cur.UseExpiresAt == nil || cur.UseExpiresAt.After(now) {
			return nil
		}
		res, familyID, err = s.applyTicket(ctx, st, cur, ticket.ActionExpire, now)
		return err
	})
	if err != nil || res == nil {
		return false, err
	}
	s.ticketChanged(familyID, ticket.ActionExpire, res)
	return true, nil
}

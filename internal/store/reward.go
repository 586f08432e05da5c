package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyxp/internal/model"
)

type RewardStore struct {
	db DBTX
}

func NewRewardStore(db DBTX) *RewardStore {
	return &RewardStore{db: db}
}

const rewardCols = `id, family_id, title, description, points_cost, category, screen_minutes, weekly_limit, active, tier, created_at, updated_at`

func scanReward(sc scanner) (*model.Reward, error) {
	var r model.Reward
	var screen, weekly sql.NullInt64
	var active int
	err := sc.Scan(&r.ID, &r.FamilyID, &r.Title, &r.Description, &r.PointsCost, &r.Category,
		&screen, &weekly, &active, &r.Tier, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ScreenMinutes = intPtr(screen)
	r.WeeklyLimit = intPtr(weekly)
	r.Active = active != 0
	return &r, nil
}

func (s *RewardStore) Create(ctx context.Context, r model.Reward) (*model.Reward, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (family_id, title, description, points_cost, category, screen_minutes, weekly_limit, active, tier)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FamilyID, r.Title, r.Description, r.PointsCost, r.Category,
		nullInt(r.ScreenMinutes), nullInt(r.WeeklyLimit), boolInt(r.Active), r.Tier,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListByFamily returns a family's rewards, active first, then by cost.
func (s *RewardStore) ListByFamily(ctx context.Context, familyID int64, activeOnly bool) ([]model.Reward, error) {
	q := `SELECT ` + rewardCols + ` FROM rewards WHERE family_id = ?`
	if activeOnly {
		q += ` AND active = 1`
	}
	q += ` ORDER BY active DESC, points_cost ASC, title ASC`

	rows, err := s.db.QueryContext(ctx, q, familyID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(ctx context.Context, r model.Reward) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET title = ?, description = ?, points_cost = ?, category = ?, screen_minutes = ?,
		 weekly_limit = ?, active = ?, tier = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		r.Title, r.Description, r.PointsCost, r.Category, nullInt(r.ScreenMinutes),
		nullInt(r.WeeklyLimit), boolInt(r.Active), r.Tier, r.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(ctx, r.ID)
}

type TicketStore struct {
	db DBTX
}

func NewTicketStore(db DBTX) *TicketStore {
	return &TicketStore{db: db}
}

const ticketCols = `p.id, p.reward_id, p.child_id, r.category, p.status, p.points_spent, p.code, p.purchased_at,
	p.use_requested_at, p.use_expires_at, p.started_at, p.paused_at, p.elapsed_seconds,
	p.fulfilled_at, p.used_at, p.cancelled_at, p.is_gift, p.gift_message`

const ticketFrom = ` FROM reward_purchases p JOIN rewards r ON r.id = p.reward_id`

func scanTicket(sc scanner) (*model.RewardPurchase, error) {
	var t model.RewardPurchase
	var requested, expires, started, paused, fulfilled, used, cancelled sql.NullTime
	var gift int
	err := sc.Scan(&t.ID, &t.RewardID, &t.ChildID, &t.Category, &t.Status, &t.PointsSpent, &t.Code, &t.PurchasedAt,
		&requested, &expires, &started, &paused, &t.ElapsedSeconds,
		&fulfilled, &used, &cancelled, &gift, &t.GiftMessage)
	if err != nil {
		return nil, err
	}
	t.PurchasedAt = t.PurchasedAt.UTC()
	t.UseRequestedAt = timePtr(requested)
	t.UseExpiresAt = timePtr(expires)
	t.StartedAt = timePtr(started)
	t.PausedAt = timePtr(paused)
	t.FulfilledAt = timePtr(fulfilled)
	t.UsedAt = timePtr(used)
	t.CancelledAt = timePtr(cancelled)
	t.IsGift = gift != 0
	return &t, nil
}

// Create inserts t and sets its ID.
func (s *TicketStore) Create(ctx context.Context, t *model.RewardPurchase) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO reward_purchases (reward_id, child_id, status, points_spent, code, purchased_at, is_gift, gift_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RewardID, t.ChildID, t.Status, t.PointsSpent, t.Code, ts(t.PurchasedAt), boolInt(t.IsGift), t.GiftMessage,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id
	return nil
}

func (s *TicketStore) GetByID(ctx context.Context, id int64) (*model.RewardPurchase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketCols+ticketFrom+` WHERE p.id = ?`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// Save writes the lifecycle columns of t. It only applies while the stored
// status still equals from, and reports whether it did.
func (s *TicketStore) Save(ctx context.Context, t *model.RewardPurchase, from model.TicketStatus) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reward_purchases SET status = ?, use_requested_at = ?, use_expires_at = ?, started_at = ?,
		 paused_at = ?, elapsed_seconds = ?, fulfilled_at = ?, used_at = ?, cancelled_at = ?
		 WHERE id = ? AND status = ?`,
		t.Status, nullTime(t.UseRequestedAt), nullTime(t.UseExpiresAt), nullTime(t.StartedAt),
		nullTime(t.PausedAt), t.ElapsedSeconds, nullTime(t.FulfilledAt), nullTime(t.UsedAt), nullTime(t.CancelledAt),
		t.ID, from,
	)
	if err != nil {
		return false, fmt.Errorf("update ticket: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ListActiveByChild returns tickets that can still be redeemed, newest first.
func (s *TicketStore) ListActiveByChild(ctx context.Context, childID int64) ([]model.RewardPurchase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketCols+ticketFrom+`
		 WHERE p.child_id = ? AND p.status IN ('active', 'use_requested', 'in_use')
		 ORDER BY p.purchased_at DESC, p.id DESC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.RewardPurchase
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// CountPurchasedSince counts a child's bought (not gifted, not cancelled)
// tickets for a reward since a moment.
func (s *TicketStore) CountPurchasedSince(ctx context.Context, rewardID, childID int64, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reward_purchases
		 WHERE reward_id = ? AND child_id = ? AND is_gift = 0 AND status != 'cancelled' AND purchased_at >= ?`,
		rewardID, childID, ts(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count purchases: %w", err)
	}
	return n, nil
}

// ListExpiredUseRequests returns the IDs of use requests whose deadline is at
// or before now.
func (s *TicketStore) ListExpiredUseRequests(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM reward_purchases WHERE status = 'use_requested' AND use_expires_at IS NOT NULL AND use_expires_at <= ? ORDER BY id ASC`,
		ts(now),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired use requests: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ticket id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/familyxp/internal/model"
)

type GoalStore struct {
	db DBTX
}

func NewGoalStore(db DBTX) *GoalStore {
	return &GoalStore{db: db}
}

const goalCols = `id, child_id, title, target_points, current_points, tier, milestone_bonuses,
	completed_milestones, completed, completed_at, change_log, deleted_at, created_at, updated_at`

func scanGoal(sc scanner) (*model.Goal, error) {
	var g model.Goal
	var bonuses, milestones, changeLog string
	var completed int
	var completedAt, deletedAt sql.NullTime
	err := sc.Scan(&g.ID, &g.ChildID, &g.Title, &g.TargetPoints, &g.CurrentPoints, &g.Tier, &bonuses,
		&milestones, &completed, &completedAt, &changeLog, &deletedAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if g.MilestoneBonuses, err = decodeBonuses(bonuses); err != nil {
		return nil, err
	}
	if err := decodeJSON(milestones, &g.CompletedMilestones); err != nil {
		return nil, fmt.Errorf("decode completed milestones: %w", err)
	}
	if err := decodeJSON(changeLog, &g.ChangeLog); err != nil {
		return nil, fmt.Errorf("decode change log: %w", err)
	}
	g.Completed = completed != 0
	g.CompletedAt = timePtr(completedAt)
	g.Lifecycle = lifecycle(deletedAt)
	return &g, nil
}

// Inert thresholds are not stored.
func encodeBonuses(b map[int]int) (string, error) {
	m := make(map[int]int, len(b))
	for pct, bonus := range b {
		if bonus > 0 {
			m[pct] = bonus
		}
	}
	return encodeJSON(m)
}

func decodeBonuses(s string) (map[int]int, error) {
	b := map[int]int{}
	if err := decodeJSON(s, &b); err != nil {
		return nil, fmt.Errorf("decode milestone bonuses: %w", err)
	}
	return b, nil
}

func goalJSON(g *model.Goal) (bonuses, milestones, changeLog string, err error) {
	if bonuses, err = encodeBonuses(g.MilestoneBonuses); err != nil {
		return "", "", "", err
	}
	done := append([]int{}, g.CompletedMilestones...)
	sort.Ints(done)
	if milestones, err = encodeJSON(done); err != nil {
		return "", "", "", err
	}
	log := g.ChangeLog
	if log == nil {
		log = []model.GoalChange{}
	}
	if changeLog, err = encodeJSON(log); err != nil {
		return "", "", "", err
	}
	return bonuses, milestones, changeLog, nil
}

func (s *GoalStore) Create(ctx context.Context, g model.Goal) (*model.Goal, error) {
	bonuses, milestones, changeLog, err := goalJSON(&g)
	if err != nil {
		return nil, fmt.Errorf("encode goal: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (child_id, title, target_points, current_points, tier, milestone_bonuses, completed_milestones, change_log)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ChildID, g.Title, g.TargetPoints, g.CurrentPoints, g.Tier, bonuses, milestones, changeLog,
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *GoalStore) GetByID(ctx context.Context, id int64) (*model.Goal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+goalCols+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// ListByChild returns the child's non-archived goals, open goals first.
func (s *GoalStore) ListByChild(ctx context.Context, childID int64) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+goalCols+` FROM goals WHERE child_id = ? AND deleted_at IS NULL ORDER BY completed ASC, created_at ASC, id ASC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// Save writes the mutable columns of g.
func (s *GoalStore) Save(ctx context.Context, g *model.Goal) error {
	bonuses, milestones, changeLog, err := goalJSON(g)
	if err != nil {
		return fmt.Errorf("encode goal: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE goals SET title = ?, target_points = ?, current_points = ?, tier = ?, milestone_bonuses = ?,
		 completed_milestones = ?, completed = ?, completed_at = ?, change_log = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		g.Title, g.TargetPoints, g.CurrentPoints, g.Tier, bonuses,
		milestones, boolInt(g.Completed), nullTime(g.CompletedAt), changeLog, g.ID,
	)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return nil
}

func (s *GoalStore) Archive(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE goals SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		ts(at), id,
	)
	if err != nil {
		return fmt.Errorf("archive goal: %w", err)
	}
	return nil
}

// AddDeposit records one deposit into a goal and sets d.ID.
func (s *GoalStore) AddDeposit(ctx context.Context, d *model.GoalDeposit) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO goal_deposits (goal_id, child_id, amount, milestone_percentage, bonus_points, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.GoalID, d.ChildID, d.Amount, nullInt(d.MilestonePercentage), d.BonusPoints, ts(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert goal deposit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return nil
}

func (s *GoalStore) ListDeposits(ctx context.Context, goalID int64) ([]model.GoalDeposit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, goal_id, child_id, amount, milestone_percentage, bonus_points, created_at
		 FROM goal_deposits WHERE goal_id = ? ORDER BY id ASC`,
		goalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list goal deposits: %w", err)
	}
	defer rows.Close()

	var deposits []model.GoalDeposit
	for rows.Next() {
		var d model.GoalDeposit
		var pct sql.NullInt64
		if err := rows.Scan(&d.ID, &d.GoalID, &d.ChildID, &d.Amount, &pct, &d.BonusPoints, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan goal deposit: %w", err)
		}
		d.MilestonePercentage = intPtr(pct)
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

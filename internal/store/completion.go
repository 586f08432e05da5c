package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/model"
)

type CompletionStore struct {
	db DBTX
}

func NewCompletionStore(db DBTX) *CompletionStore {
	return &CompletionStore{db: db}
}

const completionCols = `c.id, c.task_id, c.child_id, c.instance_id, c.completion_date, c.status, c.evidence,
	c.points_awarded, c.requested_at, c.approved_at, c.completed_at, c.auto_approve_at,
	c.fix_request, c.fix_request_count, c.created_at, c.updated_at`

func scanCompletion(sc scanner) (*model.TaskCompletion, error) {
	var c model.TaskCompletion
	var instanceID sql.NullInt64
	var evidence string
	var points sql.NullInt64
	var approvedAt, completedAt, autoApproveAt sql.NullTime
	err := sc.Scan(&c.ID, &c.TaskID, &c.ChildID, &instanceID, &c.CompletionDate, &c.Status, &evidence,
		&points, &c.RequestedAt, &approvedAt, &completedAt, &autoApproveAt,
		&c.FixRequest, &c.FixRequestCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if instanceID.Valid {
		c.InstanceID = &instanceID.Int64
	}
	if err := decodeJSON(evidence, &c.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	c.PointsAwarded = intPtr(points)
	c.ApprovedAt = timePtr(approvedAt)
	c.CompletedAt = timePtr(completedAt)
	c.AutoApproveAt = timePtr(autoApproveAt)
	return &c, nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// Create inserts c and sets its ID. A second completion for the same task,
// child and day is a conflict.
func (s *CompletionStore) Create(ctx context.Context, c *model.TaskCompletion) error {
	evidence, err := encodeJSON(c.Evidence)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_completions (task_id, child_id, instance_id, completion_date, status, evidence,
		 points_awarded, requested_at, approved_at, completed_at, auto_approve_at, fix_request, fix_request_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TaskID, c.ChildID, nullID(c.InstanceID), c.CompletionDate, c.Status, evidence,
		nullInt(c.PointsAwarded), ts(c.RequestedAt), nullTime(c.ApprovedAt), nullTime(c.CompletedAt),
		nullTime(c.AutoApproveAt), c.FixRequest, c.FixRequestCount,
	)
	if isUnique(err) {
		return apperr.Conflict("already submitted today")
	}
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// Save writes every mutable column of c.
func (s *CompletionStore) Save(ctx context.Context, c *model.TaskCompletion) error {
	evidence, err := encodeJSON(c.Evidence)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE task_completions SET instance_id = ?, status = ?, evidence = ?, points_awarded = ?,
		 requested_at = ?, approved_at = ?, completed_at = ?, auto_approve_at = ?,
		 fix_request = ?, fix_request_count = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		nullID(c.InstanceID), c.Status, evidence, nullInt(c.PointsAwarded),
		ts(c.RequestedAt), nullTime(c.ApprovedAt), nullTime(c.CompletedAt), nullTime(c.AutoApproveAt),
		c.FixRequest, c.FixRequestCount, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update completion: %w", err)
	}
	return nil
}

func (s *CompletionStore) GetByID(ctx context.Context, id int64) (*model.TaskCompletion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionCols+` FROM task_completions c WHERE c.id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// GetForDay returns the completion of a task by a child on a day, if any.
func (s *CompletionStore) GetForDay(ctx context.Context, taskID, childID int64, day string) (*model.TaskCompletion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+completionCols+` FROM task_completions c WHERE c.task_id = ? AND c.child_id = ? AND c.completion_date = ?`,
		taskID, childID, day,
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion for day: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_completions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}

func (s *CompletionStore) list(ctx context.Context, query string, args ...any) ([]model.TaskCompletion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.TaskCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

func (s *CompletionStore) ListByChildDay(ctx context.Context, childID int64, day string) ([]model.TaskCompletion, error) {
	return s.list(ctx,
		`SELECT `+completionCols+` FROM task_completions c WHERE c.child_id = ? AND c.completion_date = ? ORDER BY c.id ASC`,
		childID, day,
	)
}

// ListPendingByFamily returns completions awaiting parent review, oldest first.
func (s *CompletionStore) ListPendingByFamily(ctx context.Context, familyID int64) ([]model.TaskCompletion, error) {
	return s.list(ctx,
		`SELECT `+completionCols+` FROM task_completions c
		 JOIN children ch ON ch.id = c.child_id
		 WHERE ch.family_id = ? AND c.status = 'pending'
		 ORDER BY c.requested_at ASC, c.id ASC`,
		familyID,
	)
}

// ListDueForAutoApproval returns the IDs of pending completions whose review
// deadline is at or before now.
func (s *CompletionStore) ListDueForAutoApproval(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM task_completions WHERE status = 'pending' AND auto_approve_at IS NOT NULL AND auto_approve_at <= ? ORDER BY id ASC`,
		ts(now),
	)
	if err != nil {
		return nil, fmt.Errorf("list due completions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completion id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

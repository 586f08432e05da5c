package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyxp/internal/model"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, family_id, title, description, points, frequency, approval_type, timer_minutes, checklist_items, active, deleted_at, created_at, updated_at`

func scanTask(sc scanner) (*model.Task, error) {
	var t model.Task
	var timer sql.NullInt64
	var checklist string
	var active int
	var deletedAt sql.NullTime
	err := sc.Scan(&t.ID, &t.FamilyID, &t.Title, &t.Description, &t.Points, &t.Frequency, &t.ApprovalType,
		&timer, &checklist, &active, &deletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.TimerMinutes = intPtr(timer)
	if err := decodeJSON(checklist, &t.ChecklistItems); err != nil {
		return nil, fmt.Errorf("decode checklist: %w", err)
	}
	t.Active = active != 0
	t.Lifecycle = lifecycle(deletedAt)
	return &t, nil
}

func (s *TaskStore) Create(ctx context.Context, t model.Task) (*model.Task, error) {
	checklist, err := encodeJSON(nonNilStrings(t.ChecklistItems))
	if err != nil {
		return nil, fmt.Errorf("encode checklist: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (family_id, title, description, points, frequency, approval_type, timer_minutes, checklist_items, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.FamilyID, t.Title, t.Description, t.Points, t.Frequency, t.ApprovalType,
		nullInt(t.TimerMinutes), checklist, boolInt(t.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListByFamily returns non-archived tasks, active first, then by title.
func (s *TaskStore) ListByFamily(ctx context.Context, familyID int64, activeOnly bool) ([]model.Task, error) {
	q := `SELECT ` + taskCols + ` FROM tasks WHERE family_id = ? AND deleted_at IS NULL`
	if activeOnly {
		q += ` AND active = 1`
	}
	q += ` ORDER BY active DESC, title ASC`

	rows, err := s.db.QueryContext(ctx, q, familyID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(ctx context.Context, t model.Task) (*model.Task, error) {
	checklist, err := encodeJSON(nonNilStrings(t.ChecklistItems))
	if err != nil {
		return nil, fmt.Errorf("encode checklist: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, points = ?, frequency = ?, approval_type = ?,
		 timer_minutes = ?, checklist_items = ?, active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		t.Title, t.Description, t.Points, t.Frequency, t.ApprovalType,
		nullInt(t.TimerMinutes), checklist, boolInt(t.Active), t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(ctx, t.ID)
}

func (s *TaskStore) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		boolInt(active), id,
	)
	if err != nil {
		return fmt.Errorf("set task active: %w", err)
	}
	return nil
}

func (s *TaskStore) Archive(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET deleted_at = ?, active = 0 WHERE id = ? AND deleted_at IS NULL`,
		ts(at), id,
	)
	if err != nil {
		return fmt.Errorf("archive task: %w", err)
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type InstanceStore struct {
	db DBTX
}

func NewInstanceStore(db DBTX) *InstanceStore {
	return &InstanceStore{db: db}
}

const instanceCols = `id, task_id, child_id, scheduled_for, status, created_at, updated_at`

func scanInstance(sc scanner) (*model.TaskInstance, error) {
	var i model.TaskInstance
	if err := sc.Scan(&i.ID, &i.TaskID, &i.ChildID, &i.ScheduledFor, &i.Status, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

// Create schedules a task for a child on a day (YYYY-MM-DD). Scheduling the
// same task twice for a day returns the existing instance.
func (s *InstanceStore) Create(ctx context.Context, taskID, childID int64, day string) (*model.TaskInstance, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_instances (task_id, child_id, scheduled_for) VALUES (?, ?, ?)
		 ON CONFLICT (task_id, child_id, scheduled_for) DO NOTHING`,
		taskID, childID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task instance: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceCols+` FROM task_instances WHERE task_id = ? AND child_id = ? AND scheduled_for = ?`,
		taskID, childID, day,
	)
	i, err := scanInstance(row)
	if err != nil {
		return nil, fmt.Errorf("get task instance: %w", err)
	}
	return i, nil
}

func (s *InstanceStore) GetByID(ctx context.Context, id int64) (*model.TaskInstance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceCols+` FROM task_instances WHERE id = ?`, id)
	i, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task instance: %w", err)
	}
	return i, nil
}

func (s *InstanceStore) ListByChildDay(ctx context.Context, childID int64, day string) ([]model.TaskInstance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instanceCols+` FROM task_instances WHERE child_id = ? AND scheduled_for = ? ORDER BY id ASC`,
		childID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("list task instances: %w", err)
	}
	defer rows.Close()

	var instances []model.TaskInstance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task instance: %w", err)
		}
		instances = append(instances, *i)
	}
	return instances, rows.Err()
}

// Claim moves a pending instance to status. It reports false when the
// instance was not pending.
func (s *InstanceStore) Claim(ctx context.Context, id int64, status model.InstanceStatus) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE task_instances SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'pending'`,
		status, id,
	)
	if err != nil {
		return false, fmt.Errorf("claim task instance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *InstanceStore) SetStatus(ctx context.Context, id int64, status model.InstanceStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_instances SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("set task instance status: %w", err)
	}
	return nil
}
